package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

// Filter IDs. The last two are registered third-party filters.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
	FilterLZ4         uint16 = 32004
	FilterZstd        uint16 = 32015
)

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether a reader may skip the filter when it is
// not available.
func (f *FilterInfo) IsOptional() bool { return f.Flags&0x01 != 0 }

// FilterPipeline is the filter pipeline message (type 0x000B).
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func (m *FilterPipeline) Serialize(w *binpkg.Writer) error    { return serialize(w, m) }
func (m *FilterPipeline) SerializedSize(w *binpkg.Writer) int { return serializedSize(w, m) }

func parseFilterPipeline(data []byte, r *binpkg.Reader) (*FilterPipeline, error) {
	c := newCursor("filter pipeline", data, r)
	m := &FilterPipeline{Version: c.u8()}
	n := int(c.u8())
	switch {
	case c.err != nil:
		return nil, c.err
	case m.Version == 1:
		c.take(6)
	case m.Version != 2:
		return nil, fmt.Errorf("unsupported filter pipeline version %d", m.Version)
	}

	m.Filters = make([]FilterInfo, n)
	for i := range m.Filters {
		f := &m.Filters[i]
		f.ID = c.u16()
		var nameLen int
		if m.Version == 1 || f.ID >= 256 {
			nameLen = int(c.u16())
		}
		f.Flags = c.u16()
		nvals := int(c.u16())
		if nameLen > 0 {
			f.Name = c.str(nameLen)
			if m.Version == 1 {
				c.take((8 - nameLen%8) % 8)
			}
		}
		f.ClientData = make([]uint32, nvals)
		for j := range f.ClientData {
			f.ClientData[j] = c.u32()
		}
		if m.Version == 1 && nvals%2 != 0 {
			c.take(4)
		}
		if c.err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, c.err)
		}
	}
	return m, nil
}

// encode writes a version 2 pipeline. Names are only kept for
// filters outside the reserved ID range, which must carry one.
func (m *FilterPipeline) encode(offsetSize, lengthSize int) []byte {
	b := []byte{2, uint8(len(m.Filters))}
	for _, f := range m.Filters {
		b = appendUint(b, uint64(f.ID), 2)
		var name []byte
		if f.ID >= 256 {
			name = append([]byte(f.Name), 0)
			b = appendUint(b, uint64(len(name)), 2)
		}
		b = appendUint(b, uint64(f.Flags), 2)
		b = appendUint(b, uint64(len(f.ClientData)), 2)
		b = append(b, name...)
		for _, v := range f.ClientData {
			b = appendUint(b, uint64(v), 4)
		}
	}
	return b
}

func NewFilterPipeline(filters ...FilterInfo) *FilterPipeline {
	return &FilterPipeline{Version: 2, Filters: filters}
}
