// Package wingstats provides optional, ambient observability: atomic
// counters a meter subsystem can be wired to, and a periodic CSV logger
// that snapshots them.
package wingstats

import (
	"encoding/csv"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"
)

// MeterCounters tracks meter-subsystem activity. The zero value is ready
// to use; all methods are safe for concurrent use.
type MeterCounters struct {
	Datagrams  uint64
	Samples    uint64
	KeepAlives uint64
}

// AddDatagram records one received meter datagram carrying the given
// number of decoded samples.
func (c *MeterCounters) AddDatagram(samples int) {
	atomic.AddUint64(&c.Datagrams, 1)
	atomic.AddUint64(&c.Samples, uint64(samples))
}

// AddKeepAlive records one meter keepalive frame sent.
func (c *MeterCounters) AddKeepAlive() {
	atomic.AddUint64(&c.KeepAlives, 1)
}

func (c *MeterCounters) header() []string {
	return []string{"Datagrams", "Samples", "KeepAlives"}
}

func (c *MeterCounters) row() []string {
	return []string{
		strconv.FormatUint(atomic.LoadUint64(&c.Datagrams), 10),
		strconv.FormatUint(atomic.LoadUint64(&c.Samples), 10),
		strconv.FormatUint(atomic.LoadUint64(&c.KeepAlives), 10),
	}
}

// CSVLogger appends a timestamped snapshot of counters to a (possibly
// date-formatted, via time.Format verbs in path) CSV file every interval,
// until stop is closed. It writes a header row the first time the target
// file is empty.
func CSVLogger(stop <-chan struct{}, path string, interval time.Duration, counters *MeterCounters) {
	if path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := appendRow(path, counters); err != nil {
				log.Println("wingstats:", err)
			}
		}
	}
}

func appendRow(path string, counters *MeterCounters) error {
	dir, name := filepath.Split(path)
	fullPath := dir + time.Now().Format(name)

	f, err := os.OpenFile(fullPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(append([]string{"Unix"}, counters.header()...)); err != nil {
			return err
		}
	}
	if err := w.Write(append([]string{strconv.FormatInt(time.Now().Unix(), 10)}, counters.row()...)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
