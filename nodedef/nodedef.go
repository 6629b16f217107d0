// Package nodedef parses the node-definition blocks the console sends in
// response to a definition request (wire opcode 0xDF), and reads the same
// shape back out of a persisted binary dump. A definition describes one
// addressable node: its type, unit, display names, and (depending on type)
// a numeric range, a string length limit, or an enumeration table.
//
// Non-goal, carried from the wire protocol design: this package decodes
// the shape of a definition; it never assigns meaning to a node's name or
// its place in the tree. That is left entirely to the caller.
package nodedef

import (
	"math"
	"unicode/utf8"

	"github.com/kongr45gpen/gowing/wingerr"
)

// NodeType identifies what shape of value a node carries.
type NodeType uint8

const (
	TypeNode NodeType = iota
	TypeString
	TypeStringEnum
	TypeInteger
	TypeLinearFloat
	TypeLogarithmicFloat
	TypeFaderLevel
	TypeFloatEnum
)

// Unit is an opaque, console-defined unit code (dB, Hz, percent, ...); this
// package stores it verbatim without interpreting it.
type Unit uint8

// StringEnumItem is one entry of a TypeStringEnum's value table.
type StringEnumItem struct {
	Value    string
	LongName string
}

// FloatEnumItem is one entry of a TypeFloatEnum's value table.
type FloatEnumItem struct {
	Value    float32
	LongName string
}

// Def is a fully parsed node definition. Raw retains the exact bytes it
// was parsed from, so a caller that only needs to forward or persist a
// definition never has to re-encode one.
type Def struct {
	ID       int32
	ParentID int32
	Index    uint16
	Type     NodeType
	Unit     Unit
	ReadOnly bool
	Name     string
	LongName string

	// Populated only for TypeInteger.
	MinInt, MaxInt int32

	// Populated only for TypeLinearFloat, TypeLogarithmicFloat, TypeFaderLevel.
	MinFloat, MaxFloat float32
	Steps              int32

	// Populated only for TypeString.
	MaxStringLen uint16

	// Populated only for TypeStringEnum.
	StringEnum []StringEnumItem

	// Populated only for TypeFloatEnum.
	FloatEnum []FloatEnumItem

	// Raw holds the exact bytes this Def was parsed from.
	Raw []byte
}

type cursor struct {
	b []byte
	i int
}

func (c *cursor) u8() (uint8, error) {
	if c.i >= len(c.b) {
		return 0, wingerr.New(wingerr.InvalidData, nil)
	}
	v := c.b[c.i]
	c.i++
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	hi, err := c.u8()
	if err != nil {
		return 0, err
	}
	lo, err := c.u8()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func (c *cursor) i32() (int32, error) {
	var v uint32
	for n := 0; n < 4; n++ {
		b, err := c.u8()
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint32(b)
	}
	return int32(v), nil
}

func (c *cursor) f32() (float32, error) {
	v, err := c.i32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

func (c *cursor) str(n int) (string, error) {
	if c.i+n > len(c.b) {
		return "", wingerr.New(wingerr.InvalidData, nil)
	}
	s := c.b[c.i : c.i+n]
	c.i += n
	if !utf8.Valid(s) {
		return "", wingerr.New(wingerr.InvalidData, nil)
	}
	return string(s), nil
}

func (c *cursor) lenPrefixedStr() (string, error) {
	n, err := c.u8()
	if err != nil {
		return "", err
	}
	return c.str(int(n))
}

// Parse decodes a node definition from raw, already-unescaped bytes (the
// accumulated raw buffer the dispatcher collects while pulling a
// definition block through the frame decoder).
//
// Layout: id(i32) parent_id(i32) index(u16) type(u8) unit(u8) flags(u8)
// name(u8-len-prefixed utf8) long_name(u8-len-prefixed utf8), followed by
// a type-specific block:
//
//	TypeInteger:                    min(i32) max(i32)
//	TypeLinearFloat/Log/FaderLevel: min(f32) max(f32) steps(i32)
//	TypeString:                     max_len(u16)
//	TypeStringEnum:                 count(u16), count * (value u8-len-prefixed, long_name u8-len-prefixed)
//	TypeFloatEnum:                  count(u16), count * (value f32, long_name u8-len-prefixed)
//	TypeNode:                       nothing further
func Parse(raw []byte) (Def, error) {
	c := &cursor{b: raw}

	var def Def
	def.Raw = raw

	var err error
	if def.ID, err = c.i32(); err != nil {
		return Def{}, err
	}
	if def.ParentID, err = c.i32(); err != nil {
		return Def{}, err
	}
	if def.Index, err = c.u16(); err != nil {
		return Def{}, err
	}
	typeCode, err := c.u8()
	if err != nil {
		return Def{}, err
	}
	def.Type = NodeType(typeCode)
	unitCode, err := c.u8()
	if err != nil {
		return Def{}, err
	}
	def.Unit = Unit(unitCode)
	flags, err := c.u8()
	if err != nil {
		return Def{}, err
	}
	def.ReadOnly = flags&0x01 != 0

	if def.Name, err = c.lenPrefixedStr(); err != nil {
		return Def{}, err
	}
	if def.LongName, err = c.lenPrefixedStr(); err != nil {
		return Def{}, err
	}

	switch def.Type {
	case TypeInteger:
		if def.MinInt, err = c.i32(); err != nil {
			return Def{}, err
		}
		if def.MaxInt, err = c.i32(); err != nil {
			return Def{}, err
		}
	case TypeLinearFloat, TypeLogarithmicFloat, TypeFaderLevel:
		if def.MinFloat, err = c.f32(); err != nil {
			return Def{}, err
		}
		if def.MaxFloat, err = c.f32(); err != nil {
			return Def{}, err
		}
		if def.Steps, err = c.i32(); err != nil {
			return Def{}, err
		}
	case TypeString:
		if def.MaxStringLen, err = c.u16(); err != nil {
			return Def{}, err
		}
	case TypeStringEnum:
		count, err := c.u16()
		if err != nil {
			return Def{}, err
		}
		def.StringEnum = make([]StringEnumItem, 0, count)
		for i := uint16(0); i < count; i++ {
			value, err := c.lenPrefixedStr()
			if err != nil {
				return Def{}, err
			}
			longName, err := c.lenPrefixedStr()
			if err != nil {
				return Def{}, err
			}
			def.StringEnum = append(def.StringEnum, StringEnumItem{Value: value, LongName: longName})
		}
	case TypeFloatEnum:
		count, err := c.u16()
		if err != nil {
			return Def{}, err
		}
		def.FloatEnum = make([]FloatEnumItem, 0, count)
		for i := uint16(0); i < count; i++ {
			value, err := c.f32()
			if err != nil {
				return Def{}, err
			}
			longName, err := c.lenPrefixedStr()
			if err != nil {
				return Def{}, err
			}
			def.FloatEnum = append(def.FloatEnum, FloatEnumItem{Value: value, LongName: longName})
		}
	case TypeNode:
		// no further fields
	default:
		return Def{}, wingerr.New(wingerr.InvalidData, nil)
	}

	return def, nil
}
