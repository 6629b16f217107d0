// Package wingcfg holds the small set of JSON-loadable options a dial
// needs: which console to reach and how long to wait on it. This is not
// the CLI layer (flag parsing is out of scope), just the
// load-a-struct-from-JSON idiom used for dial configuration.
package wingcfg

import (
	"encoding/json"
	"os"
	"time"
)

// Options configures session.Dial and discovery.Scan.
type Options struct {
	// Host is the console's address. Empty triggers a discovery scan.
	Host string `json:"host"`
	// Port is the console's TCP control port that Dial connects to.
	// Discovery always probes UDP port 2222 regardless of this value.
	Port int `json:"port"`

	// DataKeepAlive is the interval between TCP keepalive frames.
	DataKeepAlive time.Duration `json:"dataKeepAliveMillis"`
	// MetersKeepAlive is the interval between UDP meter keepalive frames.
	// Pass it to meter.NewSubsystem when constructing a meter subsystem for
	// this console, since meter ownership is independent of Dial.
	MetersKeepAlive time.Duration `json:"metersKeepAliveMillis"`
	// DiscoveryTimeout bounds each broadcast read attempt during a scan; it
	// is passed straight through to discovery.Scan by Dial.
	DiscoveryTimeout time.Duration `json:"discoveryTimeoutMillis"`
}

// Default returns the options a dial uses unless overridden: port 2222,
// a 7s data keepalive, a 3s meters keepalive, a 500ms discovery timeout.
func Default() Options {
	return Options{
		Port:             2222,
		DataKeepAlive:    7 * time.Second,
		MetersKeepAlive:  3 * time.Second,
		DiscoveryTimeout: 500 * time.Millisecond,
	}
}

// jsonOptions mirrors Options but with millisecond integer fields, since
// time.Duration's JSON form is just an int64 of nanoseconds and a config
// file author should not have to do that arithmetic by hand.
type jsonOptions struct {
	Host                   string `json:"host"`
	Port                   int    `json:"port"`
	DataKeepAliveMillis    int64  `json:"dataKeepAliveMillis"`
	MetersKeepAliveMillis  int64  `json:"metersKeepAliveMillis"`
	DiscoveryTimeoutMillis int64  `json:"discoveryTimeoutMillis"`
}

// Load reads Options from a JSON file at path, starting from Default and
// overriding only the fields present in the file.
func Load(path string) (Options, error) {
	opts := Default()

	file, err := os.Open(path)
	if err != nil {
		return opts, err
	}
	defer file.Close()

	var raw jsonOptions
	raw.Host = opts.Host
	raw.Port = opts.Port
	raw.DataKeepAliveMillis = opts.DataKeepAlive.Milliseconds()
	raw.MetersKeepAliveMillis = opts.MetersKeepAlive.Milliseconds()
	raw.DiscoveryTimeoutMillis = opts.DiscoveryTimeout.Milliseconds()

	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return opts, err
	}

	opts.Host = raw.Host
	opts.Port = raw.Port
	opts.DataKeepAlive = time.Duration(raw.DataKeepAliveMillis) * time.Millisecond
	opts.MetersKeepAlive = time.Duration(raw.MetersKeepAliveMillis) * time.Millisecond
	opts.DiscoveryTimeout = time.Duration(raw.DiscoveryTimeoutMillis) * time.Millisecond
	return opts, nil
}
