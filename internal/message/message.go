// Package message parses and encodes the HDF5 header messages that make
// up an object header. Messages the package does not interpret are kept
// as [Unknown] so they survive a round trip through a header.
package message

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

// Type is a header message type code.
type Type uint16

const (
	TypeNIL                      Type = 0x00
	TypeDataspace                Type = 0x01
	TypeLinkInfo                 Type = 0x02
	TypeDatatype                 Type = 0x03
	TypeFillValue                Type = 0x05
	TypeLink                     Type = 0x06
	TypeDataLayout               Type = 0x08
	TypeGroupInfo                Type = 0x0A
	TypeFilterPipeline           Type = 0x0B
	TypeAttribute                Type = 0x0C
	TypeObjectHeaderContinuation Type = 0x10
	TypeSymbolTable              Type = 0x11
)

// UndefinedAddress encodes as all ones at any offset width.
const UndefinedAddress = ^uint64(0)

type Message interface {
	Type() Type
}

// Serializable messages can be written into a new object header.
type Serializable interface {
	Message
	Serialize(w *binpkg.Writer) error
	SerializedSize(w *binpkg.Writer) int
}

// Parse decodes the body of a message of type typ.
func Parse(typ Type, data []byte, flags uint8, r *binpkg.Reader) (Message, error) {
	switch typ {
	case TypeDataspace:
		return parseDataspace(data, r)
	case TypeDatatype:
		return parseDatatype(data, r)
	case TypeDataLayout:
		return parseDataLayout(data, r)
	case TypeFilterPipeline:
		return parseFilterPipeline(data, r)
	case TypeAttribute:
		return parseAttribute(data, r)
	case TypeLink:
		return parseLink(data, r)
	case TypeSymbolTable:
		return parseSymbolTable(data, r)
	case TypeObjectHeaderContinuation:
		return ParseContinuation(data, r)
	}
	return &Unknown{typ: typ, data: data}, nil
}

// Unknown holds the raw body of a message type this package skips.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at another block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

func ParseContinuation(data []byte, r *binpkg.Reader) (*Continuation, error) {
	c := newCursor("continuation", data, r)
	m := &Continuation{Offset: c.offset(), Length: c.length()}
	return m, c.err
}

// SymbolTable locates the B-tree and local heap of an old-style group.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func parseSymbolTable(data []byte, r *binpkg.Reader) (*SymbolTable, error) {
	c := newCursor("symbol table", data, r)
	m := &SymbolTable{BTreeAddress: c.offset(), LocalHeapAddress: c.offset()}
	return m, c.err
}

// cursor walks a message body. The first out-of-range read sets err and
// every later read returns zero values.
type cursor struct {
	what  string
	data  []byte
	off   int
	order binary.ByteOrder
	osize int
	lsize int
	err   error
}

func newCursor(what string, data []byte, r *binpkg.Reader) *cursor {
	return &cursor{what: what, data: data, order: r.ByteOrder(), osize: r.OffsetSize(), lsize: r.LengthSize()}
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.data) {
		c.err = fmt.Errorf("%s message truncated at byte %d", c.what, c.off)
		return nil
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) uint(n int) uint64 {
	b := c.take(n)
	if b == nil {
		return 0
	}
	switch n {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(c.order.Uint16(b))
	case 4:
		return uint64(c.order.Uint32(b))
	case 8:
		return c.order.Uint64(b)
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (c *cursor) u8() uint8      { return uint8(c.uint(1)) }
func (c *cursor) u16() uint16    { return uint16(c.uint(2)) }
func (c *cursor) u32() uint32    { return uint32(c.uint(4)) }
func (c *cursor) offset() uint64 { return c.uint(c.osize) }
func (c *cursor) length() uint64 { return c.uint(c.lsize) }

// align skips to the next multiple of n from the start of the body.
func (c *cursor) align(n int) {
	if r := c.off % n; r != 0 {
		c.take(n - r)
	}
}

// str reads an n-byte field and cuts it at the first NUL.
func (c *cursor) str(n int) string {
	b := c.take(n)
	for i, ch := range b {
		if ch == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// rest returns a copy of the unread bytes.
func (c *cursor) rest() []byte {
	if c.err != nil || c.off >= len(c.data) {
		return nil
	}
	return append([]byte(nil), c.data[c.off:]...)
}

// encoder is implemented by every message this package writes.
type encoder interface {
	encode(offsetSize, lengthSize int) []byte
}

func serialize(w *binpkg.Writer, e encoder) error {
	return w.WriteBytes(e.encode(w.OffsetSize(), w.LengthSize()))
}

func serializedSize(w *binpkg.Writer, e encoder) int {
	return len(e.encode(w.OffsetSize(), w.LengthSize()))
}

func appendUint(b []byte, v uint64, size int) []byte {
	for i := range size {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

// lengthWidth is the smallest of 1, 2, 4 or 8 bytes that holds n.
func lengthWidth(n uint64) int {
	switch {
	case n <= 0xFF:
		return 1
	case n <= 0xFFFF:
		return 2
	case n <= 0xFFFFFFFF:
		return 4
	}
	return 8
}
