package wire

import (
	"math"
	"unicode/utf8"

	"github.com/kongr45gpen/gowing/wingerr"
)

func (d *Decoder) readRawByte() (byte, error) {
	_, b, err := d.Next()
	return b, err
}

// ReadU8 reads one unescaped byte as an unsigned 8-bit value.
func (d *Decoder) ReadU8() (uint8, error) {
	return d.readRawByte()
}

// ReadI8 reads one unescaped byte as a signed 8-bit value.
func (d *Decoder) ReadI8() (int8, error) {
	b, err := d.readRawByte()
	return int8(b), err
}

// ReadU16 reads a big-endian unsigned 16-bit value.
func (d *Decoder) ReadU16() (uint16, error) {
	hi, err := d.readRawByte()
	if err != nil {
		return 0, err
	}
	lo, err := d.readRawByte()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// ReadI16 reads a big-endian signed 16-bit value.
func (d *Decoder) ReadI16() (int16, error) {
	v, err := d.ReadU16()
	return int16(v), err
}

// ReadU32 reads a big-endian unsigned 32-bit value.
func (d *Decoder) ReadU32() (uint32, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := d.readRawByte()
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint32(b)
	}
	return v, nil
}

// ReadI32 reads a big-endian signed 32-bit value.
func (d *Decoder) ReadI32() (int32, error) {
	v, err := d.ReadU32()
	return int32(v), err
}

// ReadF32 reads a big-endian IEEE-754 32-bit float.
func (d *Decoder) ReadF32() (float32, error) {
	bits, err := d.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// ReadString reads n unescaped bytes and validates them as utf8.
func (d *Decoder) ReadString(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		b, err := d.readRawByte()
		if err != nil {
			return "", err
		}
		buf[i] = b
	}
	if !utf8.Valid(buf) {
		return "", wingerr.New(wingerr.InvalidData, nil)
	}
	return string(buf), nil
}

// AppendNodeID appends a node id to buf as a prefix byte followed by the
// id's four big-endian bytes, each escaped (a literal 0xDF byte is followed
// by 0xDE) as the sender must for any 0xDF that lands in a position that
// isn't itself a channel-switch or escape control. If suffix is non-nil, it
// is appended unescaped after the id.
func AppendNodeID(buf []byte, id int32, prefix byte, suffix *byte) []byte {
	buf = append(buf, prefix)
	idBytes := [4]byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	for _, b := range idBytes {
		buf = append(buf, b)
		if b == escapeByte {
			buf = append(buf, 0xDE)
		}
	}
	if suffix != nil {
		buf = append(buf, *suffix)
	}
	return buf
}

// AppendSetInt appends a set_int(id, v) frame: the id (prefixed 0xD7, no
// suffix) followed by the smallest encoding that fits v — an inline byte
// for 0..0x3F, 0xD3 + big-endian i16 for the 16-bit range, else
// 0xD4 + big-endian i32.
func AppendSetInt(buf []byte, id int32, v int32) []byte {
	buf = AppendNodeID(buf, id, 0xD7, nil)
	switch {
	case v >= 0 && v <= 0x3F:
		buf = append(buf, byte(v))
	case v >= -32768 && v <= 32767:
		buf = append(buf, 0xD3, byte(v>>8), byte(v))
	default:
		buf = append(buf, 0xD4, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	return buf
}

// AppendSetFloat appends a set_float(id, v) frame: the id (prefixed 0xD7,
// suffixed 0xD5) followed by v's big-endian IEEE-754 bytes.
func AppendSetFloat(buf []byte, id int32, v float32) []byte {
	suffix := byte(0xD5)
	buf = AppendNodeID(buf, id, 0xD7, &suffix)
	bits := math.Float32bits(v)
	return append(buf, byte(bits>>24), byte(bits>>16), byte(bits>>8), byte(bits))
}

// AppendSetString appends a set_string(id, s) frame: the id (prefixed
// 0xD7, no suffix), a length marker, then the raw (unescaped) string
// bytes. Strings up to 64 bytes use an inline length byte (0x7F+len);
// strings up to 256 bytes use 0xD1 followed by len-1; strings longer than
// 256 bytes are outside the wire contract and return an error rather than
// emit a malformed frame.
func AppendSetString(buf []byte, id int32, s string) ([]byte, error) {
	buf = AppendNodeID(buf, id, 0xD7, nil)
	n := len(s)
	switch {
	case n == 0:
		buf = append(buf, 0xD0)
	case n <= 64:
		buf = append(buf, 0x7F+byte(n))
	case n <= 256:
		buf = append(buf, 0xD1, byte(n-1))
	default:
		return nil, wingerr.New(wingerr.InvalidData, nil)
	}
	return append(buf, s...), nil
}
