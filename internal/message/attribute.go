package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

// Attribute is the attribute message (type 0x000C). Data holds the raw
// encoded value.
type Attribute struct {
	Version   uint8
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

func (m *Attribute) Serialize(w *binpkg.Writer) error    { return serialize(w, m) }
func (m *Attribute) SerializedSize(w *binpkg.Writer) int { return serializedSize(w, m) }

func NewAttribute(name string, dt *Datatype, space *Dataspace, data []byte) *Attribute {
	return &Attribute{Version: 3, Name: name, Datatype: dt, Dataspace: space, Data: data}
}

// parseAttribute reads versions 1 to 3. Version 1 pads the name,
// datatype and dataspace fields to 8 bytes and version 3 adds a name
// encoding byte.
func parseAttribute(data []byte, r *binpkg.Reader) (*Attribute, error) {
	c := newCursor("attribute", data, r)
	m := &Attribute{Version: c.u8()}
	if c.err == nil && (m.Version < 1 || m.Version > 3) {
		return nil, fmt.Errorf("unsupported attribute version %d", m.Version)
	}
	c.u8() // flags
	nameSize, dtSize, dsSize := int(c.u16()), int(c.u16()), int(c.u16())
	if m.Version == 3 {
		c.u8()
	}
	pad := func() {
		if m.Version == 1 {
			c.align(8)
		}
	}

	m.Name = c.str(nameSize)
	pad()
	dtBytes := c.take(dtSize)
	pad()
	dsBytes := c.take(dsSize)
	pad()
	m.Data = c.rest()
	if c.err != nil {
		return nil, c.err
	}

	var err error
	if m.Datatype, err = parseDatatype(dtBytes, r); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	if m.Dataspace, err = parseDataspace(dsBytes, r); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	return m, nil
}

// encode writes a version 3 attribute with an ASCII name.
func (m *Attribute) encode(offsetSize, lengthSize int) []byte {
	dt := m.Datatype.encode(offsetSize, lengthSize)
	ds := m.Dataspace.encode(offsetSize, lengthSize)
	b := []byte{3, 0}
	b = appendUint(b, uint64(len(m.Name)+1), 2)
	b = appendUint(b, uint64(len(dt)), 2)
	b = appendUint(b, uint64(len(ds)), 2)
	b = append(b, byte(CharsetASCII))
	b = append(b, m.Name...)
	b = append(b, 0)
	b = append(b, dt...)
	b = append(b, ds...)
	return append(b, m.Data...)
}
