package message

import (
	"github.com/robert-malhotra/go-omx/internal/binary"
)

// Serialize writes the layout as version 3, or version 4 when chunked.
func (m *DataLayout) Serialize(w *binary.Writer) error {
	return serialize(w, m)
}

func (m *DataLayout) SerializedSize(w *binary.Writer) int {
	return serializedSize(w, m)
}

func (m *DataLayout) encode(offsetSize, lengthSize int) []byte {
	version := uint8(3)
	if m.Class == LayoutChunked {
		version = 4
	}
	b := []byte{version, uint8(m.Class)}

	switch m.Class {
	case LayoutCompact:
		b = appendUint(b, uint64(len(m.CompactData)), 2)
		b = append(b, m.CompactData...)
	case LayoutContiguous:
		b = appendUint(b, m.Address, offsetSize)
		b = appendUint(b, m.Size, lengthSize)
	case LayoutChunked:
		var flags uint8
		if m.singleFiltered() {
			flags |= layoutFlagSingleFiltered
		}
		width := dimensionWidth(m.ChunkDims)
		b = append(b, flags, uint8(len(m.ChunkDims)), uint8(width))
		for _, d := range m.ChunkDims {
			b = appendUint(b, uint64(d), width)
		}
		b = append(b, uint8(m.ChunkIndexType))
		if m.singleFiltered() {
			b = appendUint(b, uint64(m.FilteredChunkSize), lengthSize)
			b = appendUint(b, uint64(m.FilterMask), 4)
		}
		b = appendUint(b, m.ChunkIndexAddr, offsetSize)
	}
	return b
}

// dimensionWidth is the narrowest encoding that holds every chunk
// dimension.
func dimensionWidth(dims []uint32) int {
	width := 1
	for _, d := range dims {
		width = max(width, lengthWidth(uint64(d)))
	}
	return width
}

// NewCompactLayout stores data inside the object header.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

// NewContiguousLayout points at size bytes stored at address.
func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewFilteredChunkLayout describes a dataset stored as one filtered chunk
// of filteredSize bytes at addr. The chunk covers the whole dataset.
func NewFilteredChunkLayout(dims []uint64, elementSize uint32, addr uint64, filteredSize uint32) *DataLayout {
	chunkDims := make([]uint32, len(dims)+1)
	for i, d := range dims {
		chunkDims[i] = uint32(d)
	}
	chunkDims[len(dims)] = elementSize
	m := &DataLayout{
		Version:           4,
		Class:             LayoutChunked,
		ChunkDims:         chunkDims,
		ChunkIndexType:    ChunkIndexSingleChunk,
		ChunkIndexAddr:    addr,
		FilteredChunkSize: filteredSize,
	}
	m.DimensionSizeBytes = uint8(dimensionWidth(chunkDims))
	return m
}

func (m *DataLayout) singleFiltered() bool {
	return m.ChunkIndexType == ChunkIndexSingleChunk && m.FilteredChunkSize > 0
}
