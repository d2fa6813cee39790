package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/btree"
	"github.com/robert-malhotra/go-omx/internal/filter"
	"github.com/robert-malhotra/go-omx/internal/message"
)

type chunked struct {
	lm       *message.DataLayout
	r        *binary.Reader
	pipeline *filter.Pipeline

	dims      []uint64
	chunkDims []uint64
	elemSize  uint64
	size      uint64

	// grid is the chunk count per dimension over the maximum extent;
	// linear chunk indexes count through it in order, slowest first.
	grid  []uint64
	order []int
}

func newChunked(lm *message.DataLayout, space *message.Dataspace, dt *message.Datatype, fp *message.FilterPipeline, r *binary.Reader, size uint64) (*chunked, error) {
	dims := space.Dimensions
	if len(dims) == 0 {
		dims = []uint64{1}
	}
	if len(lm.ChunkDims) < len(dims) {
		return nil, fmt.Errorf("chunk rank %d below dataset rank %d", len(lm.ChunkDims), len(dims))
	}
	// Chunk dimensions may carry a trailing element size entry.
	chunkDims := make([]uint64, len(dims))
	for i := range chunkDims {
		if lm.ChunkDims[i] == 0 {
			return nil, fmt.Errorf("zero chunk dimension %d", i)
		}
		chunkDims[i] = uint64(lm.ChunkDims[i])
	}

	c := &chunked{lm: lm, r: r, dims: dims, chunkDims: chunkDims, elemSize: uint64(dt.Size), size: size}
	c.layoutGrid(space.MaxDims)
	if fp != nil {
		p, err := filter.NewPipeline(fp)
		if err != nil {
			return nil, fmt.Errorf("creating filter pipeline: %w", err)
		}
		if !p.Empty() {
			c.pipeline = p
		}
	}
	return c, nil
}

func (c *chunked) Read() ([]byte, error) {
	if c.size == 0 {
		return []byte{}, nil
	}
	if c.r.IsUndefinedOffset(c.lm.ChunkIndexAddr) || c.lm.ChunkIndexAddr == 0 {
		// Never written: every element is the fill value, zero here.
		return make([]byte, c.size), nil
	}

	if c.lm.Version < 4 {
		return c.readBTree()
	}
	switch c.lm.ChunkIndexType {
	case message.ChunkIndexSingleChunk:
		return c.readSingle()
	case message.ChunkIndexImplicit:
		return c.readImplicit()
	case message.ChunkIndexFixedArray:
		entries, err := c.fixedArray()
		if err != nil {
			return nil, fmt.Errorf("reading fixed array index: %w", err)
		}
		return c.readEntries(entries)
	case message.ChunkIndexExtensibleArray:
		entries, err := c.extensibleArray()
		if err != nil {
			return nil, fmt.Errorf("reading extensible array index: %w", err)
		}
		return c.readEntries(entries)
	case message.ChunkIndexBTreeV2:
		index, err := btree.ReadChunkIndexV2(c.r, c.lm.ChunkIndexAddr, c.chunkDims)
		if err != nil {
			return nil, fmt.Errorf("reading version 2 B-tree index: %w", err)
		}
		return c.readEntries(index.Entries)
	}
	return nil, fmt.Errorf("unknown chunk index type %d", c.lm.ChunkIndexType)
}

// layoutGrid sizes the chunk grid from the maximum dimensions. An
// unlimited dimension is moved to the front, the order extensible array
// indexes count in.
func (c *chunked) layoutGrid(maxDims []uint64) {
	rank := len(c.dims)
	c.grid = make([]uint64, rank)
	c.order = make([]int, 0, rank)
	unlimited := -1
	for d := range rank {
		extent := c.dims[d]
		if len(maxDims) == rank {
			switch {
			case maxDims[d] == message.Unlimited:
				if unlimited < 0 {
					unlimited = d
				}
			case maxDims[d] > extent:
				extent = maxDims[d]
			}
		}
		c.grid[d] = (extent + c.chunkDims[d] - 1) / c.chunkDims[d]
	}
	if unlimited >= 0 && c.lm.ChunkIndexType == message.ChunkIndexExtensibleArray {
		c.order = append(c.order, unlimited)
	}
	for d := range rank {
		if len(c.order) == 0 || c.order[0] != d {
			c.order = append(c.order, d)
		}
	}
}

// origin is the first element of the chunk at linear index i.
func (c *chunked) origin(i uint64) []uint64 {
	out := make([]uint64, len(c.dims))
	for k := len(c.order) - 1; k > 0; k-- {
		d := c.order[k]
		out[d] = i % c.grid[d] * c.chunkDims[d]
		i /= c.grid[d]
	}
	out[c.order[0]] = i * c.chunkDims[c.order[0]]
	return out
}

func (c *chunked) chunkCount() uint64 {
	n := uint64(1)
	for _, g := range c.grid {
		n *= g
	}
	return n
}

func (c *chunked) chunkBytes() uint64 {
	n := c.elemSize
	for _, d := range c.chunkDims {
		n *= d
	}
	return n
}

func (c *chunked) readChunk(addr uint64, size uint64, mask uint32) ([]byte, error) {
	data, err := c.r.At(int64(addr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading chunk at 0x%x: %w", addr, err)
	}
	if c.pipeline == nil {
		return data, nil
	}
	data, err = c.pipeline.Decode(data, mask)
	if err != nil {
		return nil, fmt.Errorf("decoding chunk at 0x%x: %w", addr, err)
	}
	return data, nil
}

func (c *chunked) readSingle() ([]byte, error) {
	stored := uint64(c.lm.FilteredChunkSize)
	if stored == 0 {
		stored = c.chunkBytes()
	}
	chunk, err := c.readChunk(c.lm.ChunkIndexAddr, stored, 0)
	if err != nil {
		return nil, err
	}
	out := make([]byte, c.size)
	c.place(out, chunk, make([]uint64, len(c.dims)))
	return out, nil
}

// readImplicit handles unfiltered chunks stored back to back in linear
// chunk order.
func (c *chunked) readImplicit() ([]byte, error) {
	out := make([]byte, c.size)
	per := c.chunkBytes()
	for i := range c.chunkCount() {
		chunk, err := c.readChunk(c.lm.ChunkIndexAddr+i*per, per, 0)
		if err != nil {
			return nil, err
		}
		c.place(out, chunk, c.origin(i))
	}
	return out, nil
}

func (c *chunked) readBTree() ([]byte, error) {
	index, err := btree.ReadChunkIndex(c.r, c.lm.ChunkIndexAddr, len(c.dims))
	if err != nil {
		return nil, fmt.Errorf("reading chunk index: %w", err)
	}
	return c.readEntries(index.Entries)
}

// readEntries decodes every listed chunk into a dataset-sized buffer. A
// zero size stands for an unfiltered full chunk.
func (c *chunked) readEntries(entries []btree.ChunkEntry) ([]byte, error) {
	out := make([]byte, c.size)
	for _, e := range entries {
		if e.Size == 0 {
			e.Size = uint32(c.chunkBytes())
		}
		if len(e.Offset) < len(c.dims) {
			return nil, fmt.Errorf("chunk key of rank %d in rank %d dataset", len(e.Offset), len(c.dims))
		}
		chunk, err := c.readChunk(e.Address, uint64(e.Size), e.FilterMask)
		if err != nil {
			return nil, err
		}
		c.place(out, chunk, e.Offset)
	}
	return out, nil
}

// place copies a decoded chunk whose first element sits at origin into
// out. Edge chunks are clipped to the dataset bounds.
func (c *chunked) place(out, chunk []byte, origin []uint64) {
	rank := len(c.dims)
	for d := range rank {
		if origin[d] >= c.dims[d] {
			return
		}
	}

	// Row length in the innermost dimension, clipped.
	rowElems := min(c.chunkDims[rank-1], c.dims[rank-1]-origin[rank-1])
	rowBytes := rowElems * c.elemSize

	idx := make([]uint64, rank-1)
	for {
		var src, dst uint64
		srcStride, dstStride := c.elemSize, c.elemSize
		for d := rank - 1; d >= 0; d-- {
			var i uint64
			if d < rank-1 {
				i = idx[d]
			}
			src += i * srcStride
			dst += (origin[d] + i) * dstStride
			srcStride *= c.chunkDims[d]
			dstStride *= c.dims[d]
		}
		if src+rowBytes <= uint64(len(chunk)) && dst+rowBytes <= uint64(len(out)) {
			copy(out[dst:dst+rowBytes], chunk[src:src+rowBytes])
		}

		d := rank - 2
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < c.chunkDims[d] && origin[d]+idx[d] < c.dims[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}
