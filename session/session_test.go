package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kongr45gpen/gowing/wire"
)

func newTestSession(conn net.Conn, dataKeepAlive time.Duration) *Session {
	s := &Session{conn: conn, dataDeadline: NewDeadline(dataKeepAlive)}
	s.dec = wire.NewDecoder(s.refill)
	return s
}

func TestWrite_SendsCompleteFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, time.Hour)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	require.NoError(t, s.Write([]byte{0xDF, 0xD1}))
	got := <-done
	require.Equal(t, []byte{0xDF, 0xD1}, got)
}

func TestRead_InlineIntegerScenario(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, time.Hour)

	go func() {
		// channel switch to 2, set current_node_id=5, inline integer 7
		server.Write([]byte{0xDF, 0xD2, 0xD7, 0x00, 0x00, 0x00, 0x05, 0x07})
	}()

	resp, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, wire.RespNodeData, resp.Kind)
	require.EqualValues(t, 2, resp.Channel)
	require.EqualValues(t, 5, resp.NodeID)
	require.EqualValues(t, 7, resp.Value.Int())
}

func TestRead_ShortStringScenario(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, time.Hour)

	go func() {
		server.Write([]byte{
			0xDF, 0xD0,
			0xD7, 0x00, 0x00, 0x00, 0x09,
			0x81, 'H', 'I',
		})
	}()

	resp, err := s.Read()
	require.NoError(t, err)
	require.EqualValues(t, 0, resp.Channel)
	require.EqualValues(t, 9, resp.NodeID)
	require.Equal(t, "HI", resp.Value.String())
}

func TestRead_RequestEnd(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, time.Hour)
	go func() { server.Write([]byte{0xDE}) }()

	resp, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, wire.RespRequestEnd, resp.Kind)
}

func TestRead_NodeDefinitionScenario(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, time.Hour)

	var raw []byte
	raw = append(raw, 0, 0, 0, 42) // id
	raw = append(raw, 0, 0, 0, 1)  // parent id
	raw = append(raw, 0, 0)        // index
	raw = append(raw, 0)           // type = TypeNode
	raw = append(raw, 0)           // unit
	raw = append(raw, 0)           // flags
	raw = append(raw, 3, 'g', 'r', 'p')
	raw = append(raw, 5, 'G', 'r', 'o', 'u', 'p')

	// channel switch to 0, then an escape followed by a non-control byte:
	// the decoder emits a synthetic 0xDF (definition block) and replays the
	// length's high byte.
	frame := []byte{0xDF, 0xD0, 0xDF, byte(len(raw) >> 8), byte(len(raw))}
	frame = append(frame, raw...)

	go func() { server.Write(frame) }()

	resp, err := s.Read()
	require.NoError(t, err)
	require.Equal(t, wire.RespNodeDef, resp.Kind)
	require.EqualValues(t, 42, resp.Def.ID)
	require.Equal(t, "grp", resp.Def.Name)
	require.Equal(t, "Group", resp.Def.LongName)
}

func TestRequestNodeDefinition_RootUsesGotoRootForm(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, time.Hour)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	require.NoError(t, s.RequestNodeDefinition(0))
	require.Equal(t, []byte{0xDA, 0xDD}, <-done)
}

func TestRequestNodeData_NonRootUsesNodeIDForm(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, time.Hour)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	require.NoError(t, s.RequestNodeData(9))
	require.Equal(t, []byte{0xD7, 0, 0, 0, 9, 0xDC}, <-done)
}

func TestKeepAlive_FiresOnceDue(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, 10*time.Millisecond)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.KeepAlive())
	require.Equal(t, []byte{0xDF, 0xD1}, <-done)
}

func TestKeepAlive_NoOpWhenNotDue(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := newTestSession(client, time.Hour)
	require.NoError(t, s.KeepAlive())

	_ = server // nothing should have been written; a blocking read would hang the test
}
