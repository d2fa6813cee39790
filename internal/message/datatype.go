package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

type ByteOrder uint8

const (
	OrderLE ByteOrder = 0
	OrderBE ByteOrder = 1
)

type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype is the datatype message (type 0x0003). Numbers and strings
// are decoded field by field. Other classes keep their property bytes
// unparsed in Properties.
type Datatype struct {
	Class     DatatypeClass
	ClassBits uint32
	Size      uint32

	ByteOrder    ByteOrder
	Signed       bool
	BitOffset    uint16
	BitPrecision uint16

	StringPadding  StringPadding
	CharSet        CharacterSet
	IsVarLenString bool
	VarLenType     *Datatype

	Properties []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

func (m *Datatype) Serialize(w *binpkg.Writer) error    { return serialize(w, m) }
func (m *Datatype) SerializedSize(w *binpkg.Writer) int { return serializedSize(w, m) }

// IsString reports whether elements are fixed or variable-length strings.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.IsVarLenString)
}

func parseDatatype(data []byte, r *binpkg.Reader) (*Datatype, error) {
	c := newCursor("datatype", data, r)
	head := c.u8()
	bits := c.uint(3)
	m := &Datatype{
		Class:     DatatypeClass(head & 0x0F),
		ClassBits: uint32(bits),
		Size:      c.u32(),
	}
	if c.err != nil {
		return nil, c.err
	}

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		m.ByteOrder = ByteOrder(bits & 0x01)
		m.Signed = m.Class == ClassFixedPoint && bits&0x08 != 0
		m.BitOffset = c.u16()
		m.BitPrecision = c.u16()
	case ClassFloatPoint:
		if bits&0x40 != 0 {
			return nil, fmt.Errorf("unsupported float byte order %#x", bits&0x41)
		}
		m.ByteOrder = ByteOrder(bits & 0x01)
		m.Properties = append([]byte(nil), c.take(12)...)
	case ClassString:
		m.StringPadding = StringPadding(bits & 0x0F)
		m.CharSet = CharacterSet(bits >> 4 & 0x0F)
	case ClassVarLen:
		m.IsVarLenString = bits&0x0F == 1
		m.StringPadding = StringPadding(bits >> 4 & 0x0F)
		m.CharSet = CharacterSet(bits >> 8 & 0x0F)
		if base := c.rest(); len(base) > 0 {
			m.VarLenType, _ = parseDatatype(base, r)
		}
	default:
		m.Properties = c.rest()
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

// encode writes a version 1 datatype.
func (m *Datatype) encode(offsetSize, lengthSize int) []byte {
	b := []byte{uint8(m.Class) | 1<<4}
	b = appendUint(b, uint64(m.ClassBits), 3)
	b = appendUint(b, uint64(m.Size), 4)

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		b = appendUint(b, uint64(m.BitOffset), 2)
		b = appendUint(b, uint64(m.BitPrecision), 2)
	case ClassFloatPoint:
		props := m.Properties
		if len(props) < 12 {
			props = ieeeProperties(m.Size)
		}
		b = append(b, props[:12]...)
	case ClassString:
	case ClassVarLen:
		if m.VarLenType != nil {
			b = append(b, m.VarLenType.encode(offsetSize, lengthSize)...)
		}
	default:
		b = append(b, m.Properties...)
	}
	return b
}

// ieeeProperties returns bit offset, precision, exponent location and
// size, mantissa location and size, and exponent bias for an IEEE float.
func ieeeProperties(size uint32) []byte {
	switch size {
	case 4:
		return []byte{0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0}
	case 8:
		return []byte{0, 0, 64, 0, 52, 11, 0, 52, 0xff, 0x03, 0, 0}
	}
	return make([]byte, 12)
}

func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	bits := uint32(order)
	if signed {
		bits |= 0x08
	}
	return &Datatype{
		Class:        ClassFixedPoint,
		ClassBits:    bits,
		Size:         size,
		ByteOrder:    order,
		Signed:       signed,
		BitPrecision: uint16(size * 8),
	}
}

// NewFloatDatatype returns an IEEE float with the sign in the top bit and
// normalized mantissas, which is how h5py writes them.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	const mantissaNormalized = 1 << 5
	sign := size*8 - 1
	return &Datatype{
		Class:      ClassFloatPoint,
		ClassBits:  uint32(order) | mantissaNormalized | sign<<8,
		Size:       size,
		ByteOrder:  order,
		Properties: ieeeProperties(size),
	}
}

func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Class:         ClassString,
		ClassBits:     uint32(padding) | uint32(charset)<<4,
		Size:          size,
		StringPadding: padding,
		CharSet:       charset,
	}
}

// NewVarLenStringDatatype returns a variable-length string whose elements
// are global heap references.
func NewVarLenStringDatatype(charset CharacterSet) *Datatype {
	return &Datatype{
		Class:          ClassVarLen,
		ClassBits:      1 | uint32(charset)<<8,
		Size:           16,
		CharSet:        charset,
		IsVarLenString: true,
		VarLenType:     NewStringDatatype(1, PadNullTerm, charset),
	}
}
