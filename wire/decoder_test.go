package wire

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// byteFeeder turns a fixed byte slice into a Refill that serves it as a
// single chunk and then reports io.EOF.
func byteFeeder(data []byte) Refill {
	served := false
	return func() ([]byte, error) {
		if served {
			return nil, io.EOF
		}
		served = true
		return data, nil
	}
}

func decodeAll(t *testing.T, data []byte) []struct {
	channel int8
	b       byte
} {
	t.Helper()
	dec := NewDecoder(byteFeeder(data))
	var out []struct {
		channel int8
		b       byte
	}
	for {
		ch, b, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		out = append(out, struct {
			channel int8
			b       byte
		}{ch, b})
	}
	return out
}

func TestDecoder_PlainBytesPassThrough(t *testing.T) {
	out := decodeAll(t, []byte{0x01, 0x02, 0x03})
	require.Len(t, out, 3)
	require.EqualValues(t, -1, out[0].channel)
	require.Equal(t, byte(0x01), out[0].b)
	require.Equal(t, byte(0x03), out[2].b)
}

func TestDecoder_DoubledEscapeIsLiteral(t *testing.T) {
	out := decodeAll(t, []byte{0xDF, 0xDF, 0x01})
	require.Len(t, out, 2)
	require.Equal(t, byte(0xDF), out[0].b)
	require.Equal(t, byte(0x01), out[1].b)
}

func TestDecoder_AlternateLiteralEscapeForm(t *testing.T) {
	out := decodeAll(t, []byte{0xDF, 0xDE})
	require.Len(t, out, 1)
	require.Equal(t, byte(0xDF), out[0].b)
}

func TestDecoder_ChannelSwitch(t *testing.T) {
	out := decodeAll(t, []byte{0xDF, 0xD2, 0x07, 0xDF, 0xD0, 0x08})
	require.Len(t, out, 2)
	require.EqualValues(t, 2, out[0].channel)
	require.Equal(t, byte(0x07), out[0].b)
	require.EqualValues(t, 0, out[1].channel)
	require.Equal(t, byte(0x08), out[1].b)
}

// TestDecoder_MidChannelEscapeSynthesizesEndOfSubstream covers the pushback
// path: an escape sequence arriving mid-channel (not a literal-escape form
// and not a channel switch) must close the current sub-stream with a
// synthetic 0xDF, then replay the byte that interrupted it as the start of
// the next read.
func TestDecoder_MidChannelEscapeSynthesizesEndOfSubstream(t *testing.T) {
	dec := NewDecoder(byteFeeder([]byte{0xDF, 0xD3, 0x01, 0xDF, 0x09}))

	ch, b, err := dec.Next()
	require.NoError(t, err)
	require.EqualValues(t, 3, ch)
	require.Equal(t, byte(0x01), b)

	ch, b, err = dec.Next()
	require.NoError(t, err)
	require.EqualValues(t, 3, ch)
	require.Equal(t, byte(0xDF), b, "escape followed by a non-control byte synthesizes an end-of-substream 0xDF")

	ch, b, err = dec.Next()
	require.NoError(t, err)
	require.EqualValues(t, 3, ch)
	require.Equal(t, byte(0x09), b, "the interrupting byte is replayed as ordinary data next")
}

func TestDecoder_RawAccumulatesEmittedBytesOnly(t *testing.T) {
	dec := NewDecoder(byteFeeder([]byte{0xDF, 0xD2, 0x07, 0x08}))
	dec.ResetRaw()
	_, _, err := dec.Next()
	require.NoError(t, err)
	_, _, err = dec.Next()
	require.NoError(t, err)
	require.Equal(t, []byte{0x07, 0x08}, dec.RawBytes(), "the channel-switch control bytes never appear in raw")
}

func TestDecoder_ConnectionErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	dec := NewDecoder(func() ([]byte, error) { return nil, boom })
	_, _, err := dec.Next()
	require.ErrorIs(t, err, boom)
}

// Scenario: receive a short string on channel 0, id 9.
func TestDecoder_ReceiveShortStringScenario(t *testing.T) {
	dec := NewDecoder(byteFeeder([]byte{
		0xDF, 0xD0, // channel 0
		0xD7, 0x00, 0x00, 0x00, 0x09, // current_node_id = 9
		0x81, 0x48, 0x49, // short string, length 2: "HI"
	}))

	ch, cmd, err := dec.Next()
	require.NoError(t, err)
	require.EqualValues(t, 0, ch)
	require.Equal(t, byte(0xD7), cmd)

	id, err := dec.ReadI32()
	require.NoError(t, err)
	require.EqualValues(t, 9, id)

	_, cmd, err = dec.Next()
	require.NoError(t, err)
	require.Equal(t, byte(0x81), cmd)

	s, err := dec.ReadString(int(cmd-0x80) + 1)
	require.NoError(t, err)
	require.Equal(t, "HI", s)
}
