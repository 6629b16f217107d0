// Package session implements the Wing console session engine: the TCP
// handshake, the escape-byte dispatch loop, outbound node requests and
// setters, and the keepalive obligations that keep the console from
// dropping an idle connection.
package session

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/kongr45gpen/gowing/discovery"
	"github.com/kongr45gpen/gowing/nodedef"
	"github.com/kongr45gpen/gowing/wingcfg"
	"github.com/kongr45gpen/gowing/wingerr"
	"github.com/kongr45gpen/gowing/wire"
)

const rxBufSize = 2048

// handshake is the byte sequence sent immediately after connecting, and
// reused as the data keepalive frame.
var handshake = []byte{0xDF, 0xD1}

// Session is one connected conversation with a console. Reads and writes
// are safe to call concurrently from different goroutines; two sessions
// never share a connection.
type Session struct {
	conn net.Conn

	readMu  sync.Mutex
	writeMu sync.Mutex

	dec   *wire.Decoder
	rxBuf [rxBufSize]byte

	// currentNodeID is only ever touched from within Read, under readMu.
	currentNodeID int32

	dataDeadline *Deadline
}

// Dial connects to a console and performs the initial handshake. If
// opts.Host is empty, it first runs a discovery scan and dials the first
// console found, returning a DiscoveryError if none answer.
func Dial(ctx context.Context, opts wingcfg.Options) (*Session, error) {
	host := opts.Host
	if host == "" {
		infos, err := discovery.Scan(ctx, true, opts.DiscoveryTimeout)
		if err != nil {
			return nil, err
		}
		if len(infos) == 0 {
			return nil, wingerr.New(wingerr.DiscoveryError, nil)
		}
		host = infos[0].IP
	}

	port := opts.Port
	if port == 0 {
		port = 2222
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, itoa(port)))
	if err != nil {
		return nil, wingerr.New(wingerr.Io, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	dataKeepAlive := opts.DataKeepAlive
	if dataKeepAlive == 0 {
		dataKeepAlive = 7 * time.Second
	}

	s := &Session{
		conn:         conn,
		dataDeadline: NewDeadline(dataKeepAlive),
	}
	s.dec = wire.NewDecoder(s.refill)

	if err := s.Write(handshake); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Write sends a complete, self-delimited frame over the connection under
// the writer lock. Callers must never pass a partial frame: the writer
// lock guarantees frames never interleave, not that a frame is well-formed.
func (s *Session) Write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(frame); err != nil {
		return wingerr.New(wingerr.Io, err)
	}
	return nil
}

// Close performs a best-effort bidirectional shutdown, ignoring errors, the
// same policy as the session's upstream origin.
func (s *Session) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if tcpConn, ok := s.conn.(*net.TCPConn); ok {
		_ = tcpConn.CloseRead()
		_ = tcpConn.CloseWrite()
	}
	return s.conn.Close()
}

// KeepAlive sends the data keepalive handshake frame if the data deadline
// has passed. It is called automatically by the reader's refill loop, but
// may also be invoked directly by a caller that is about to issue a
// request after a long idle period.
func (s *Session) KeepAlive() error {
	return s.keepAliveIfDue()
}

func (s *Session) keepAliveIfDue() error {
	if !s.dataDeadline.Due() {
		return nil
	}
	if err := s.Write(handshake); err != nil {
		return err
	}
	s.dataDeadline.Reset()
	return nil
}

// refill is the wire.Refill the session's Decoder calls whenever its
// buffer is exhausted: it fires the data keepalive if due, sets a read
// deadline equal to the time remaining until the next one is due, and
// retries on timeout. A would-block sleeps briefly and loops; a
// zero-length read or an EOF (remote close) is reported as a
// ConnectionError.
func (s *Session) refill() ([]byte, error) {
	for {
		if err := s.keepAliveIfDue(); err != nil {
			return nil, err
		}

		timeout := s.dataDeadline.Remaining()
		if timeout <= 0 {
			timeout = time.Millisecond
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, wingerr.New(wingerr.Io, err)
		}

		n, err := s.conn.Read(s.rxBuf[:])
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if isWouldBlock(err) {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			if err == io.EOF {
				return nil, wingerr.New(wingerr.ConnectionError, err)
			}
			return nil, wingerr.New(wingerr.Io, err)
		}
		if n == 0 {
			return nil, wingerr.New(wingerr.ConnectionError, nil)
		}
		return s.rxBuf[:n], nil
	}
}

// Read pulls and dispatches the next response from the wire: a value
// update, a node definition, or a request-end marker. It owns the reader
// lock for the whole call, matching the "one reader at a time" invariant.
func (s *Session) Read() (wire.Response, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	for {
		channel, cmd, err := s.dec.Next()
		if err != nil {
			return wire.Response{}, err
		}

		switch {
		case cmd <= 0x3F:
			return wire.NewNodeData(channel, s.currentNodeID, wire.IntegerValue(int32(cmd))), nil

		case cmd <= 0x7F:
			// discarded node-index byte
			continue

		case cmd <= 0xBF:
			n := int(cmd-0x80) + 1
			str, err := s.dec.ReadString(n)
			if err != nil {
				return wire.Response{}, err
			}
			return wire.NewNodeData(channel, s.currentNodeID, wire.StringValue(str)), nil

		case cmd <= 0xCF:
			n := int(cmd-0xC0) + 1
			str, err := s.dec.ReadString(n)
			if err != nil {
				return wire.Response{}, err
			}
			return wire.NewNodeData(channel, s.currentNodeID, wire.StringValue(str)), nil

		case cmd == 0xD0:
			return wire.NewNodeData(channel, s.currentNodeID, wire.StringValue("")), nil

		case cmd == 0xD1:
			n, err := s.dec.ReadU8()
			if err != nil {
				return wire.Response{}, err
			}
			str, err := s.dec.ReadString(int(n) + 1)
			if err != nil {
				return wire.Response{}, err
			}
			return wire.NewNodeData(channel, s.currentNodeID, wire.StringValue(str)), nil

		case cmd == 0xD2:
			if _, err := s.dec.ReadU16(); err != nil {
				return wire.Response{}, err
			}
			continue

		case cmd == 0xD3:
			v, err := s.dec.ReadI16()
			if err != nil {
				return wire.Response{}, err
			}
			return wire.NewNodeData(channel, s.currentNodeID, wire.ShortValue(v)), nil

		case cmd == 0xD4:
			v, err := s.dec.ReadI32()
			if err != nil {
				return wire.Response{}, err
			}
			return wire.NewNodeData(channel, s.currentNodeID, wire.IntegerValue(v)), nil

		case cmd == 0xD5 || cmd == 0xD6:
			v, err := s.dec.ReadF32()
			if err != nil {
				return wire.Response{}, err
			}
			return wire.NewNodeData(channel, s.currentNodeID, wire.FloatValue(v)), nil

		case cmd == 0xD7:
			id, err := s.dec.ReadI32()
			if err != nil {
				return wire.Response{}, err
			}
			s.currentNodeID = id
			continue

		case cmd == 0xD9:
			// "step" carries a signed byte argument; discarded like the
			// rest of the navigation family.
			if _, err := s.dec.ReadI8(); err != nil {
				return wire.Response{}, err
			}
			continue

		case cmd >= 0xD8 && cmd <= 0xDD:
			// click / goto-root / go-up / request markers: discarded, no
			// argument to consume.
			continue

		case cmd == 0xDE:
			return wire.RequestEndResponse(), nil

		case cmd == 0xDF:
			def, err := s.readNodeDef()
			if err != nil {
				return wire.Response{}, err
			}
			return wire.NewNodeDef(def), nil

		default:
			return wire.Response{}, wingerr.New(wingerr.InvalidData, nil)
		}
	}
}

// readNodeDef pulls a definition block's bytes through the decoder and
// parses them. The definition length is a 16-bit count; if that count is
// zero, a 32-bit count follows and is used instead (spec.md's own open
// question about the 16-vs-32-bit length is resolved this way: the 16-bit
// zero is a sentinel for "read the wide count next", not a zero-length
// definition).
func (s *Session) readNodeDef() (nodedef.Def, error) {
	length16, err := s.dec.ReadU16()
	if err != nil {
		return nodedef.Def{}, err
	}

	length := uint32(length16)
	if length16 == 0 {
		length, err = s.dec.ReadU32()
		if err != nil {
			return nodedef.Def{}, err
		}
	}

	s.dec.ResetRaw()
	for i := uint32(0); i < length; i++ {
		if _, _, err := s.dec.Next(); err != nil {
			return nodedef.Def{}, err
		}
	}
	return nodedef.Parse(s.dec.RawBytes())
}

// RequestNodeDefinition asks the console for the definition of node id, or
// the root node's definition if id is zero.
func (s *Session) RequestNodeDefinition(id int32) error {
	if id == 0 {
		return s.Write([]byte{0xDA, 0xDD})
	}
	suffix := byte(0xDD)
	return s.Write(wire.AppendNodeID(nil, id, 0xD7, &suffix))
}

// RequestNodeData asks the console for the current value of node id, or
// the root node's value if id is zero.
func (s *Session) RequestNodeData(id int32) error {
	if id == 0 {
		return s.Write([]byte{0xDA, 0xDC})
	}
	suffix := byte(0xDC)
	return s.Write(wire.AppendNodeID(nil, id, 0xD7, &suffix))
}

// SetInt sets node id to the integer value v.
func (s *Session) SetInt(id int32, v int32) error {
	return s.Write(wire.AppendSetInt(nil, id, v))
}

// SetFloat sets node id to the float value v.
func (s *Session) SetFloat(id int32, v float32) error {
	return s.Write(wire.AppendSetFloat(nil, id, v))
}

// SetString sets node id to the string value v.
func (s *Session) SetString(id int32, v string) error {
	buf, err := wire.AppendSetString(nil, id, v)
	if err != nil {
		return err
	}
	return s.Write(buf)
}

func isWouldBlock(err error) bool {
	type wouldBlocker interface{ Temporary() bool }
	wb, ok := err.(wouldBlocker)
	return ok && wb.Temporary()
}
