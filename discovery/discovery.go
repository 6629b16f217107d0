// Package discovery implements the UDP broadcast probe used to find
// consoles on the local network when a caller dials without a known host.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/kongr45gpen/gowing/wingerr"
)

const (
	probePayload      = "WING?"
	consolePort       = 2222
	maxFailedAttempts = 10
	defaultPerAttempt = 500 * time.Millisecond
)

// Info is one console's reply to a discovery probe.
type Info struct {
	IP       string
	Name     string
	Model    string
	Serial   string
	Firmware string
}

// Scan broadcasts a discovery probe and collects replies, reading until
// maxFailedAttempts reads in total have timed out or errored. A read that
// succeeds but doesn't parse as a console reply does not count against that
// budget. If stopOnFirst is set, Scan returns as soon as one well-formed
// reply arrives. perAttempt bounds each individual read; a value <= 0 uses
// defaultPerAttempt.
func Scan(ctx context.Context, stopOnFirst bool, perAttempt time.Duration) ([]Info, error) {
	if perAttempt <= 0 {
		perAttempt = defaultPerAttempt
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, wingerr.New(wingerr.Io, err)
	}
	defer conn.Close()

	if err := enableBroadcast(conn); err != nil {
		return nil, wingerr.New(wingerr.Io, err)
	}

	broadcastAddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("255.255.255.255:%d", consolePort))
	if err != nil {
		return nil, wingerr.New(wingerr.Io, err)
	}
	if _, err := conn.WriteTo([]byte(probePayload), broadcastAddr); err != nil {
		return nil, wingerr.New(wingerr.Io, err)
	}

	var results []Info
	buf := make([]byte, 1024)
	for attempts := 0; attempts < maxFailedAttempts; {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(perAttempt)); err != nil {
			return results, wingerr.New(wingerr.Io, err)
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			attempts++
			continue
		}

		info, ok := parseReply(string(buf[:n]))
		if !ok {
			continue
		}
		results = append(results, info)
		if stopOnFirst {
			return results, nil
		}
	}
	return results, nil
}

func parseReply(reply string) (Info, bool) {
	tokens := strings.Split(reply, ",")
	if len(tokens) < 6 || tokens[0] != "WING" {
		return Info{}, false
	}
	return Info{
		IP:       tokens[1],
		Name:     tokens[2],
		Model:    tokens[3],
		Serial:   tokens[4],
		Firmware: tokens[5],
	}, true
}

func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
