// Package table reads the persisted name<->definition binary dump the
// library consumes at startup. The dump itself, and the tool that
// generates it from the console's schema, are external to this library;
// this package only knows how to read the format back.
package table

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/kongr45gpen/gowing/nodedef"
	"github.com/kongr45gpen/gowing/wingerr"
)

// Table is an immutable name<->definition map built once from a binary
// dump. Once Load returns, a Table is safe to share across goroutines
// without further locking.
type Table struct {
	nameToDef map[string]nodedef.Def
	idToNames map[int32][]string
}

// Load reads records from r until EOF: each record is
// <is_fake:u8><namelen:u16 BE><name><deflen:u16 BE><raw def bytes>.
func Load(r io.Reader) (*Table, error) {
	t := &Table{
		nameToDef: make(map[string]nodedef.Def),
		idToNames: make(map[int32][]string),
	}

	br := bufio.NewReader(r)
	for {
		if _, err := br.Peek(1); err == io.EOF {
			break
		} else if err != nil {
			return nil, wingerr.New(wingerr.Io, err)
		}

		// is_fake is retained on the record shape for parity with the
		// generator's output but is not interpreted by this reader.
		var isFake uint8
		if err := binary.Read(br, binary.BigEndian, &isFake); err != nil {
			return nil, wingerr.New(wingerr.Io, err)
		}

		name, err := readLenPrefixed16(br)
		if err != nil {
			return nil, err
		}

		rawLen, err := readU16(br)
		if err != nil {
			return nil, err
		}
		raw := make([]byte, rawLen)
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, wingerr.New(wingerr.Io, err)
		}

		def, err := nodedef.Parse(raw)
		if err != nil {
			return nil, err
		}

		t.nameToDef[name] = def
		t.idToNames[def.ID] = append(t.idToNames[def.ID], name)
	}
	return t, nil
}

// LoadEmbedded builds a Table from an in-memory dump, e.g. one the caller
// has //go:embedded from a build-time generated file.
func LoadEmbedded(data []byte) (*Table, error) {
	return Load(bytes.NewReader(data))
}

// NameToDef looks up a node's definition by its fully-qualified name.
func (t *Table) NameToDef(fullname string) (nodedef.Def, bool) {
	d, ok := t.nameToDef[fullname]
	return d, ok
}

// IDToNames looks up the names that map to a given node id. A single id
// can have more than one name when it came from a string-enum expansion.
func (t *Table) IDToNames(id int32) ([]string, bool) {
	names, ok := t.idToNames[id]
	return names, ok
}

func readU16(r io.Reader) (uint16, error) {
	var v uint16
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, wingerr.New(wingerr.Io, err)
	}
	return v, nil
}

func readLenPrefixed16(r io.Reader) (string, error) {
	n, err := readU16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", wingerr.New(wingerr.Io, err)
	}
	if !utf8.Valid(buf) {
		return "", wingerr.New(wingerr.InvalidData, nil)
	}
	return string(buf), nil
}
