package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Unlimited marks a dimension that may grow without bound.
const Unlimited = ^uint64(0)

// Dataspace is the dataspace message (type 0x0001). MaxDims is nil when
// the file does not record maximum dimensions.
type Dataspace struct {
	Version    uint8
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

func (m *Dataspace) Serialize(w *binpkg.Writer) error    { return serialize(w, m) }
func (m *Dataspace) SerializedSize(w *binpkg.Writer) int { return serializedSize(w, m) }

// NumElements is 1 for a scalar, 0 for a null space and the product of
// the dimensions otherwise.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	}
	return 0
}

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }

func parseDataspace(data []byte, r *binpkg.Reader) (*Dataspace, error) {
	c := newCursor("dataspace", data, r)
	m := &Dataspace{Version: c.u8(), Rank: int(c.u8())}
	flags := c.u8()
	switch m.Version {
	case 1:
		c.take(5)
		m.SpaceType = DataspaceSimple
		if m.Rank == 0 {
			m.SpaceType = DataspaceScalar
		}
	case 2:
		m.SpaceType = DataspaceType(c.u8())
	default:
		if c.err == nil {
			return nil, fmt.Errorf("unsupported dataspace version %d", m.Version)
		}
	}
	if m.SpaceType == DataspaceSimple {
		m.Dimensions = make([]uint64, m.Rank)
		for i := range m.Dimensions {
			m.Dimensions[i] = c.length()
		}
		if flags&0x01 != 0 {
			m.MaxDims = make([]uint64, m.Rank)
			for i := range m.MaxDims {
				m.MaxDims[i] = c.length()
				if c.lsize < 8 && m.MaxDims[i] == 1<<(8*c.lsize)-1 {
					m.MaxDims[i] = Unlimited
				}
			}
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

// encode writes a version 2 dataspace.
func (m *Dataspace) encode(offsetSize, lengthSize int) []byte {
	var flags uint8
	if len(m.MaxDims) > 0 {
		flags |= 0x01
	}
	b := []byte{2, uint8(m.Rank), flags, uint8(m.SpaceType)}
	for _, d := range m.Dimensions {
		b = appendUint(b, d, lengthSize)
	}
	if flags&0x01 != 0 {
		for _, d := range m.MaxDims {
			b = appendUint(b, d, lengthSize)
		}
	}
	return b
}

func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{Version: 2, Rank: len(dims), SpaceType: DataspaceSimple, Dimensions: dims, MaxDims: maxDims}
}

func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}
