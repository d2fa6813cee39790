package message

import (
	"bytes"
	"fmt"
	"math/bits"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// link message flags
const (
	linkNameWidth      = 0x03
	linkHasOrder       = 0x04
	linkHasType        = 0x08
	linkHasNameCharset = 0x10
)

// Link is the link message (type 0x0006) of a new-style group.
type Link struct {
	LinkType LinkType
	Name     string

	ObjectAddress uint64
	SoftLinkValue string
	ExternalFile  string
	ExternalPath  string
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) Serialize(w *binpkg.Writer) error    { return serialize(w, m) }
func (m *Link) SerializedSize(w *binpkg.Writer) int { return serializedSize(w, m) }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

func parseLink(data []byte, r *binpkg.Reader) (*Link, error) {
	c := newCursor("link", data, r)
	if v := c.u8(); c.err == nil && v != 1 {
		return nil, fmt.Errorf("unsupported link version %d", v)
	}
	flags := c.u8()
	m := &Link{}
	if flags&linkHasType != 0 {
		m.LinkType = LinkType(c.u8())
	}
	if flags&linkHasOrder != 0 {
		c.take(8)
	}
	if flags&linkHasNameCharset != 0 {
		c.take(1)
	}
	nameLen := c.uint(1 << (flags & linkNameWidth))
	m.Name = string(c.take(int(nameLen)))

	switch m.LinkType {
	case LinkTypeHard:
		m.ObjectAddress = c.offset()
	case LinkTypeSoft:
		m.SoftLinkValue = string(c.take(int(c.u16())))
	case LinkTypeExternal:
		info := c.take(int(c.u16()))
		if c.err == nil && len(info) < 3 {
			return nil, fmt.Errorf("external link %q: value too short", m.Name)
		}
		if c.err == nil {
			parts := bytes.SplitN(info[1:], []byte{0}, 3)
			m.ExternalFile = string(parts[0])
			if len(parts) > 1 {
				m.ExternalPath = string(parts[1])
			}
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

// encode writes a version 1 link. Hard links omit the type field.
func (m *Link) encode(offsetSize, lengthSize int) []byte {
	width := lengthWidth(uint64(len(m.Name)))
	flags := uint8(bits.TrailingZeros(uint(width)))
	if m.LinkType != LinkTypeHard {
		flags |= linkHasType
	}
	b := []byte{1, flags}
	if m.LinkType != LinkTypeHard {
		b = append(b, uint8(m.LinkType))
	}
	b = appendUint(b, uint64(len(m.Name)), width)
	b = append(b, m.Name...)

	switch m.LinkType {
	case LinkTypeHard:
		b = appendUint(b, m.ObjectAddress, offsetSize)
	case LinkTypeSoft:
		b = appendUint(b, uint64(len(m.SoftLinkValue)), 2)
		b = append(b, m.SoftLinkValue...)
	case LinkTypeExternal:
		b = appendUint(b, uint64(len(m.ExternalFile)+len(m.ExternalPath)+3), 2)
		b = append(b, 0)
		b = append(b, m.ExternalFile...)
		b = append(b, 0)
		b = append(b, m.ExternalPath...)
		b = append(b, 0)
	}
	return b
}

func NewHardLink(name string, addr uint64) *Link {
	return &Link{LinkType: LinkTypeHard, Name: name, ObjectAddress: addr}
}

func NewSoftLink(name, target string) *Link {
	return &Link{LinkType: LinkTypeSoft, Name: name, SoftLinkValue: target}
}

// LinkInfo is the link info message of a group whose links are stored
// compactly in its header. Both addresses stay undefined until links
// move to dense storage, which this package never does.
type LinkInfo struct {
	FractalHeapAddr    uint64
	NameIndexBTreeAddr uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

func (m *LinkInfo) Serialize(w *binpkg.Writer) error    { return serialize(w, m) }
func (m *LinkInfo) SerializedSize(w *binpkg.Writer) int { return serializedSize(w, m) }

func (m *LinkInfo) encode(offsetSize, lengthSize int) []byte {
	b := []byte{0, 0}
	b = appendUint(b, m.FractalHeapAddr, offsetSize)
	return appendUint(b, m.NameIndexBTreeAddr, offsetSize)
}

func NewLinkInfo() *LinkInfo {
	return &LinkInfo{FractalHeapAddr: UndefinedAddress, NameIndexBTreeAddr: UndefinedAddress}
}

// GroupInfo is a group info message with default storage thresholds.
type GroupInfo struct{}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) Serialize(w *binpkg.Writer) error    { return serialize(w, m) }
func (m *GroupInfo) SerializedSize(w *binpkg.Writer) int { return serializedSize(w, m) }

func (m *GroupInfo) encode(offsetSize, lengthSize int) []byte { return []byte{0, 0} }

func NewGroupInfo() *GroupInfo { return &GroupInfo{} }
