package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

// LayoutClass is the storage class of a dataset.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// ChunkIndexType selects how a version 4 layout finds its chunks. Older
// layouts always use a version 1 B-tree.
type ChunkIndexType uint8

const (
	ChunkIndexSingleChunk     ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

// Version 4 chunked layout flags.
const (
	layoutFlagPartialEdgeUnfiltered = 0x01
	layoutFlagSingleFiltered        = 0x02
)

// DataLayout is the data layout message (type 0x0008).
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	Address uint64
	Size    uint64

	// ChunkDims has one entry per dataset dimension plus a trailing
	// element size.
	ChunkDims          []uint32
	ChunkIndexAddr     uint64
	ChunkIndexType     ChunkIndexType
	ChunkFlags         uint8
	DimensionSizeBytes uint8

	// FilteredChunkSize and FilterMask describe a filtered single chunk.
	FilteredChunkSize uint32
	FilterMask        uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

func (m *DataLayout) IsCompact() bool    { return m.Class == LayoutCompact }
func (m *DataLayout) IsContiguous() bool { return m.Class == LayoutContiguous }
func (m *DataLayout) IsChunked() bool    { return m.Class == LayoutChunked }

func parseDataLayout(data []byte, r *binpkg.Reader) (*DataLayout, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("data layout message too short")
	}
	m := &DataLayout{Version: data[0]}
	c := newCursor("data layout", data, r)
	c.off = 1

	switch m.Version {
	case 1, 2:
		parseLayoutV1(c, m)
	case 3, 4:
		parseLayoutV3(c, m)
	default:
		return nil, fmt.Errorf("unsupported data layout version: %d", m.Version)
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}

func parseLayoutV1(c *cursor, m *DataLayout) {
	rank := int(c.u8())
	m.Class = LayoutClass(c.u8())
	c.take(5) // reserved

	if m.Class != LayoutCompact {
		m.Address = c.offset()
		m.ChunkIndexAddr = m.Address
	}
	dims := make([]uint32, rank)
	for i := range dims {
		dims[i] = uint32(c.uint(4))
	}

	switch m.Class {
	case LayoutChunked:
		m.ChunkDims = dims
		m.DimensionSizeBytes = 4
	case LayoutCompact:
		size := int(c.uint(4))
		m.CompactData = append([]byte(nil), c.take(size)...)
	}
}

func parseLayoutV3(c *cursor, m *DataLayout) {
	m.Class = LayoutClass(c.u8())
	switch m.Class {
	case LayoutCompact:
		size := int(c.uint(2))
		m.CompactData = append([]byte(nil), c.take(size)...)

	case LayoutContiguous:
		m.Address = c.offset()
		m.Size = c.length()

	case LayoutChunked:
		if m.Version == 3 {
			rank := int(c.u8())
			m.ChunkIndexAddr = c.offset()
			m.ChunkDims = make([]uint32, rank)
			for i := range m.ChunkDims {
				m.ChunkDims[i] = uint32(c.uint(4))
			}
			m.DimensionSizeBytes = 4
			return
		}

		m.ChunkFlags = c.u8()
		rank := int(c.u8())
		m.DimensionSizeBytes = c.u8()
		m.ChunkDims = make([]uint32, rank)
		for i := range m.ChunkDims {
			m.ChunkDims[i] = uint32(c.uint(int(m.DimensionSizeBytes)))
		}
		m.ChunkIndexType = ChunkIndexType(c.u8())
		switch m.ChunkIndexType {
		case ChunkIndexSingleChunk:
			if m.ChunkFlags&layoutFlagSingleFiltered != 0 {
				m.FilteredChunkSize = uint32(c.length())
				m.FilterMask = uint32(c.uint(4))
			}
		case ChunkIndexFixedArray:
			c.take(1) // page bits
		case ChunkIndexExtensibleArray:
			c.take(5) // max bits, index elements, min pointers, min elements, page bits
		case ChunkIndexBTreeV2:
			c.take(6) // node size, split and merge percentages
		}
		m.ChunkIndexAddr = c.offset()

	case LayoutVirtual:
		m.Address = c.offset()
		c.take(4) // global heap index
	}
}
