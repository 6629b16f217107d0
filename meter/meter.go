// Package meter implements the UDP meter telemetry subsystem: subscribing
// to a set of meters over the TCP control connection and receiving their
// sample stream on a dedicated ephemeral UDP socket.
package meter

import (
	"net"
	"sync"
	"time"

	"github.com/kongr45gpen/gowing/session"
	"github.com/kongr45gpen/gowing/wingerr"
	"github.com/kongr45gpen/gowing/wingstats"
)

const defaultMetersKeepAlive = 3 * time.Second

// Writer is the subset of session.Session a Subsystem needs: the ability
// to send a complete frame over the TCP control connection. Taking an
// interface instead of the concrete type keeps meter unit-testable with a
// fake writer.
type Writer interface {
	Write(frame []byte) error
}

// SelectorKind identifies which meter bank a Selector names.
type SelectorKind int

const (
	Channel SelectorKind = iota
	Aux
	Bus
	Main
	Matrix
	Dca
	Fx
	Source
	Output
	Monitor
	Rta
	Channel2
	Aux2
	Bus2
	Main2
	Matrix2
)

var selectorTags = map[SelectorKind]byte{
	Channel:  0xA0,
	Aux:      0xA1,
	Bus:      0xA2,
	Main:     0xA3,
	Matrix:   0xA4,
	Dca:      0xA5,
	Fx:       0xA6,
	Source:   0xA7,
	Output:   0xA8,
	Monitor:  0xA9,
	Rta:      0xAA,
	Channel2: 0xAB,
	Aux2:     0xAC,
	Bus2:     0xAD,
	Main2:    0xAE,
	Matrix2:  0xAF,
}

// Selector names one meter bank, and, for indexed banks, which channel in
// it. Monitor and Rta carry no index.
type Selector struct {
	Kind  SelectorKind
	Index uint8
}

// Subsystem owns the ephemeral UDP socket and subscription bookkeeping for
// meter telemetry. It has its own lock over its state and socket,
// independent of the TCP session's reader/writer locks.
type Subsystem struct {
	mu sync.Mutex

	conn        *net.UDPConn
	port        uint16
	nextMeterID uint16

	keepAlive time.Duration
	deadline  *session.Deadline

	// Stats, if set, is fed datagram/sample counts as they're decoded.
	Stats *wingstats.MeterCounters
}

// NewSubsystem builds an unsubscribed meter subsystem. keepAlive sets the
// interval between meter keepalive frames once a subscription exists; a
// value <= 0 uses defaultMetersKeepAlive.
func NewSubsystem(keepAlive time.Duration) *Subsystem {
	if keepAlive <= 0 {
		keepAlive = defaultMetersKeepAlive
	}
	return &Subsystem{keepAlive: keepAlive}
}

// RequestMeter subscribes to the given meter selectors, allocating the UDP
// socket on first use, and returns the meter id the console will tag
// datagrams with. w is used to send the subscription frame over the TCP
// control connection.
func (m *Subsystem) RequestMeter(w Writer, selectors []Selector) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextMeterID++
	id := m.nextMeterID

	if m.conn == nil {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
		if err != nil {
			return 0, wingerr.New(wingerr.Io, err)
		}
		m.conn = conn
		m.port = uint16(conn.LocalAddr().(*net.UDPAddr).Port)
		m.deadline = session.NewDeadline(m.keepAlive)
	} else if err := m.keepAliveMetersLocked(w); err != nil {
		return 0, err
	}

	buf := []byte{
		0xDF, 0xD3, 0xD3, byte(m.port >> 8), byte(m.port),
		0xD4, byte(id >> 8), byte(id), byte(m.port >> 8), byte(m.port),
		0xDC,
	}
	for _, sel := range selectors {
		tag, ok := selectorTags[sel.Kind]
		if !ok {
			return 0, wingerr.New(wingerr.InvalidData, nil)
		}
		buf = append(buf, tag)
		if sel.Kind != Monitor && sel.Kind != Rta {
			buf = append(buf, sel.Index)
		}
	}
	buf = append(buf, 0xDE, 0xDF, 0xD1)

	if err := w.Write(buf); err != nil {
		return 0, err
	}
	return id, nil
}

// KeepAliveMeters sends the meter keepalive frame for every allocated
// meter id, if the meters deadline has passed. Callers that drain
// ReadMeters on their own schedule, or don't call it at all, must call
// this themselves to keep their subscriptions alive.
func (m *Subsystem) KeepAliveMeters(w Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keepAliveMetersLocked(w)
}

// keepAliveMetersLocked sends the meter keepalive frame for every
// allocated meter id if the meters deadline has passed. Callers must hold
// m.mu.
func (m *Subsystem) keepAliveMetersLocked(w Writer) error {
	if m.deadline == nil || !m.deadline.Due() {
		return nil
	}
	for id := m.nextMeterID; id > 0; id-- {
		frame := []byte{0xDF, 0xD3, 0xD4, byte(id >> 8), byte(id), byte(m.port >> 8), byte(m.port), 0xDF, 0xD1}
		if err := w.Write(frame); err != nil {
			return err
		}
	}
	m.deadline.Reset()
	if m.Stats != nil {
		m.Stats.AddKeepAlive()
	}
	return nil
}

// ReadMeters blocks until a meter datagram arrives, firing meter
// keepalives as their deadline comes due in the meantime. It returns the
// meter id the datagram is tagged with and its decoded samples.
func (m *Subsystem) ReadMeters(w Writer) (uint16, []int16, error) {
	for {
		m.mu.Lock()
		if m.conn == nil {
			m.mu.Unlock()
			return 0, nil, wingerr.New(wingerr.Io, nil)
		}
		if err := m.keepAliveMetersLocked(w); err != nil {
			m.mu.Unlock()
			return 0, nil, err
		}
		conn := m.conn
		remaining := m.deadline.Remaining()
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		m.mu.Unlock()

		if err := conn.SetReadDeadline(time.Now().Add(remaining)); err != nil {
			return 0, nil, wingerr.New(wingerr.Io, err)
		}

		buf := make([]byte, 8192)
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if isWouldBlock(err) {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return 0, nil, wingerr.New(wingerr.ConnectionError, err)
		}
		if n < 4 {
			continue
		}

		meterID := uint16(buf[0])<<8 | uint16(buf[1])
		samples := make([]int16, 0, (n-4)/2)
		for i := 4; i+1 < n; i += 2 {
			samples = append(samples, int16(uint16(buf[i])<<8|uint16(buf[i+1])))
		}

		if m.Stats != nil {
			m.Stats.AddDatagram(len(samples))
		}
		return meterID, samples, nil
	}
}

// Close releases the meter socket, if one was ever allocated.
func (m *Subsystem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}

func isWouldBlock(err error) bool {
	type wouldBlocker interface{ Temporary() bool }
	wb, ok := err.(wouldBlocker)
	return ok && wb.Temporary()
}
