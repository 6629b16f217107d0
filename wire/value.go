package wire

import "strconv"

// Kind identifies which variant of NodeValue is populated.
type Kind int

const (
	KindInteger Kind = iota
	KindShort
	KindFloat
	KindString
)

// NodeValue is a tagged union over the four payload shapes a node can carry
// on the wire: a 32-bit integer, a 16-bit integer, a 32-bit float, or a
// length-prefixed string. Every variant yields a string/float/int
// projection, with lossy best-effort conversion across kinds.
type NodeValue struct {
	kind Kind
	i    int32
	s16  int16
	f    float32
	str  string
}

// Kind reports which variant v actually holds.
func (v NodeValue) Kind() Kind { return v.kind }

// IntegerValue builds a NodeValue holding a 32-bit integer.
func IntegerValue(i int32) NodeValue { return NodeValue{kind: KindInteger, i: i} }

// ShortValue builds a NodeValue holding a 16-bit integer.
func ShortValue(i int16) NodeValue { return NodeValue{kind: KindShort, s16: i} }

// FloatValue builds a NodeValue holding a 32-bit float.
func FloatValue(f float32) NodeValue { return NodeValue{kind: KindFloat, f: f} }

// StringValue builds a NodeValue holding a string.
func StringValue(s string) NodeValue { return NodeValue{kind: KindString, str: s} }

// Int projects v onto an int32, converting from whichever variant it holds.
func (v NodeValue) Int() int32 {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindShort:
		return int32(v.s16)
	case KindFloat:
		return int32(v.f)
	case KindString:
		n, _ := strconv.ParseInt(v.str, 10, 32)
		return int32(n)
	default:
		return 0
	}
}

// Float projects v onto a float32, converting from whichever variant it holds.
func (v NodeValue) Float() float32 {
	switch v.kind {
	case KindInteger:
		return float32(v.i)
	case KindShort:
		return float32(v.s16)
	case KindFloat:
		return v.f
	case KindString:
		f, _ := strconv.ParseFloat(v.str, 32)
		return float32(f)
	default:
		return 0
	}
}

// String projects v onto a string, converting from whichever variant it holds.
func (v NodeValue) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(int64(v.i), 10)
	case KindShort:
		return strconv.FormatInt(int64(v.s16), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	case KindString:
		return v.str
	default:
		return ""
	}
}
