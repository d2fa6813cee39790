package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/btree"
)

// Fixed and extensible array client IDs.
const (
	clientChunks         = 0
	clientFilteredChunks = 1
)

// element decodes one array element describing a chunk. Unfiltered
// elements hold only an address; filtered ones add the stored size and a
// filter mask.
type element struct {
	size     int
	filtered bool
	full     uint32
}

func newElement(client, size uint8, offsetSize int, full uint64) (element, error) {
	e := element{size: int(size), full: uint32(full)}
	switch client {
	case clientChunks:
		if e.size < offsetSize {
			return e, fmt.Errorf("chunk element of %d bytes", size)
		}
	case clientFilteredChunks:
		e.filtered = true
		if e.size <= offsetSize+4 || e.size > offsetSize+4+8 {
			return e, fmt.Errorf("filtered chunk element of %d bytes", size)
		}
	default:
		return e, fmt.Errorf("unknown array client %d", client)
	}
	return e, nil
}

func (e element) read(nr *binary.Reader) (addr uint64, size, mask uint32, err error) {
	start := nr.Pos()
	if addr, err = nr.ReadOffset(); err != nil {
		return 0, 0, 0, err
	}
	size = e.full
	if e.filtered {
		width := e.size - nr.OffsetSize() - 4
		n, err := nr.ReadUintN(width)
		if err != nil {
			return 0, 0, 0, err
		}
		size = uint32(n)
		if mask, err = nr.ReadUint32(); err != nil {
			return 0, 0, 0, err
		}
	}
	nr.Skip(start + int64(e.size) - nr.Pos())
	return addr, size, mask, nil
}

// arraySignature checks a structure signature and version byte and returns
// the client ID that follows.
func arraySignature(nr *binary.Reader, want string) (uint8, error) {
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return 0, fmt.Errorf("reading %s signature: %w", want, err)
	}
	if string(sig) != want {
		return 0, fmt.Errorf("invalid signature %q, want %q", sig, want)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return 0, err
	}
	if version != 0 {
		return 0, fmt.Errorf("unsupported %s version %d", want, version)
	}
	return nr.ReadUint8()
}

// appendEntry adds the chunk at linear index i unless it was never
// allocated.
func (c *chunked) appendEntry(out []btree.ChunkEntry, nr *binary.Reader, e element, i uint64) ([]btree.ChunkEntry, error) {
	addr, size, mask, err := e.read(nr)
	if err != nil {
		return nil, fmt.Errorf("reading chunk element %d: %w", i, err)
	}
	if addr == 0 || c.r.IsUndefinedOffset(addr) {
		return out, nil
	}
	return append(out, btree.ChunkEntry{Offset: c.origin(i), FilterMask: mask, Size: size, Address: addr}), nil
}

// fixedArray lists the chunks of a fixed array index. Large arrays are
// split into pages, each present only when its bit in the data block's
// page bitmap is set.
func (c *chunked) fixedArray() ([]btree.ChunkEntry, error) {
	nr := c.r.At(int64(c.lm.ChunkIndexAddr))
	client, err := arraySignature(nr, "FAHD")
	if err != nil {
		return nil, err
	}
	entrySize, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	pageBits, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	count, err := nr.ReadLength()
	if err != nil {
		return nil, err
	}
	block, err := nr.ReadOffset()
	if err != nil {
		return nil, err
	}
	e, err := newElement(client, entrySize, nr.OffsetSize(), c.chunkBytes())
	if err != nil {
		return nil, err
	}
	if c.r.IsUndefinedOffset(block) {
		return nil, nil
	}

	nr = c.r.At(int64(block))
	if _, err := arraySignature(nr, "FADB"); err != nil {
		return nil, err
	}
	nr.Skip(int64(nr.OffsetSize())) // header address

	var out []btree.ChunkEntry
	perPage := uint64(1) << pageBits
	if count <= perPage {
		for i := range count {
			if out, err = c.appendEntry(out, nr, e, i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	pages := (count + perPage - 1) / perPage
	bitmap, err := nr.ReadBytes(int((pages + 7) / 8))
	if err != nil {
		return nil, fmt.Errorf("reading page bitmap: %w", err)
	}
	first := nr.Pos() + 4 // data block checksum
	pageSize := int64(perPage)*int64(entrySize) + 4
	for p := range pages {
		if bitmap[p/8]&(0x80>>(p%8)) == 0 {
			continue
		}
		pr := c.r.At(first + int64(p)*pageSize)
		for i := p * perPage; i < min(count, (p+1)*perPage); i++ {
			if out, err = c.appendEntry(out, pr, e, i); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// extensibleArray lists the chunks of an extensible array index. Elements
// live first in the index block, then in data blocks whose sizes double
// every other super block. Paged data blocks are not read.
func (c *chunked) extensibleArray() ([]btree.ChunkEntry, error) {
	nr := c.r.At(int64(c.lm.ChunkIndexAddr))
	client, err := arraySignature(nr, "EAHD")
	if err != nil {
		return nil, err
	}
	params, err := nr.ReadBytes(6)
	if err != nil {
		return nil, err
	}
	elemSize, maxBits, indexElems := params[0], params[1], uint64(params[2])
	minElems, minPointers, pageBits := uint64(params[3]), uint64(params[4]), params[5]
	if minElems == 0 || minElems&(minElems-1) != 0 || minPointers == 0 || minPointers&(minPointers-1) != 0 {
		return nil, fmt.Errorf("extensible array with %d minimum elements and %d minimum pointers", minElems, minPointers)
	}
	nr.Skip(int64(4 * nr.LengthSize())) // super and data block statistics
	maxIndex, err := nr.ReadLength()
	if err != nil {
		return nil, err
	}
	nr.Skip(int64(nr.LengthSize())) // realized elements
	iblock, err := nr.ReadOffset()
	if err != nil {
		return nil, err
	}
	e, err := newElement(client, elemSize, nr.OffsetSize(), c.chunkBytes())
	if err != nil {
		return nil, err
	}
	if c.r.IsUndefinedOffset(iblock) || maxIndex == 0 {
		return nil, nil
	}

	nr = c.r.At(int64(iblock))
	if _, err := arraySignature(nr, "EAIB"); err != nil {
		return nil, err
	}
	nr.Skip(int64(nr.OffsetSize()))

	var out []btree.ChunkEntry
	var i uint64
	for ; i < min(indexElems, maxIndex); i++ {
		if out, err = c.appendEntry(out, nr, e, i); err != nil {
			return nil, err
		}
	}
	nr.Skip(int64(indexElems-i) * int64(elemSize))
	if i >= maxIndex {
		return out, nil
	}

	// Data blocks addressed from the index block cover the first
	// 2*log2(minPointers) super blocks.
	direct := 2 * (minPointers - 1)
	blocks := make([]uint64, direct)
	for k := range blocks {
		if blocks[k], err = nr.ReadOffset(); err != nil {
			return nil, err
		}
	}
	superBlocks := 1 + uint64(maxBits) - uint64(bits.TrailingZeros64(minElems))
	inIndex := 2 * uint64(bits.TrailingZeros64(minPointers))
	var supers []uint64
	for range superBlocks - min(inIndex, superBlocks) {
		addr, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		supers = append(supers, addr)
	}

	a := &eaReader{c: c, e: e, offBytes: (int(maxBits) + 7) / 8, pageElems: uint64(1) << pageBits, next: i, limit: maxIndex}
	k := 0
	for s := uint64(0); s < inIndex && a.next < a.limit; s++ {
		per := minElems << ((s + 1) / 2)
		for range uint64(1) << (s / 2) {
			if out, err = a.dataBlock(out, blocks[k], per); err != nil {
				return nil, err
			}
			k++
		}
	}
	for j, addr := range supers {
		if a.next >= a.limit {
			break
		}
		s := inIndex + uint64(j)
		if out, err = a.superBlock(out, addr, uint64(1)<<(s/2), minElems<<((s+1)/2)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type eaReader struct {
	c         *chunked
	e         element
	offBytes  int
	pageElems uint64
	next      uint64
	limit     uint64
}

func (a *eaReader) dataBlock(out []btree.ChunkEntry, addr, elems uint64) ([]btree.ChunkEntry, error) {
	if a.c.r.IsUndefinedOffset(addr) || addr == 0 {
		a.next += elems
		return out, nil
	}
	if elems > a.pageElems {
		return nil, fmt.Errorf("paged extensible array data block at 0x%x", addr)
	}
	nr := a.c.r.At(int64(addr))
	if _, err := arraySignature(nr, "EADB"); err != nil {
		return nil, err
	}
	nr.Skip(int64(nr.OffsetSize() + a.offBytes))
	end := a.next + elems
	var err error
	for ; a.next < min(end, a.limit); a.next++ {
		if out, err = a.c.appendEntry(out, nr, a.e, a.next); err != nil {
			return nil, err
		}
	}
	a.next = end
	return out, nil
}

func (a *eaReader) superBlock(out []btree.ChunkEntry, addr, blocks, elems uint64) ([]btree.ChunkEntry, error) {
	if a.c.r.IsUndefinedOffset(addr) || addr == 0 {
		a.next += blocks * elems
		return out, nil
	}
	if elems > a.pageElems {
		return nil, fmt.Errorf("paged extensible array data blocks under super block 0x%x", addr)
	}
	nr := a.c.r.At(int64(addr))
	if _, err := arraySignature(nr, "EASB"); err != nil {
		return nil, err
	}
	nr.Skip(int64(nr.OffsetSize() + a.offBytes))
	for range blocks {
		dblock, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		if a.next >= a.limit {
			break
		}
		if out, err = a.dataBlock(out, dblock, elems); err != nil {
			return nil, err
		}
	}
	return out, nil
}
