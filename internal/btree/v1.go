package btree

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/heap"
)

const (
	groupNode = 0
	chunkNode = 1

	// maxDepth bounds recursion through corrupt or cyclic trees.
	maxDepth = 32
)

// ChunkEntry locates one stored chunk.
type ChunkEntry struct {
	// Offset is the chunk's first element, one coordinate per dimension.
	Offset []uint64
	// FilterMask has bit i set when filter i was skipped for this chunk.
	FilterMask uint32
	Size       uint32
	Address    uint64
}

// ChunkIndex is every allocated chunk of a dataset.
type ChunkIndex struct {
	NDims   int
	Entries []ChunkEntry
}

// GroupEntry is one member of a symbol table group.
type GroupEntry struct {
	Name          string
	ObjectAddress uint64
	// LinkType is 0 for hard links and 1 for soft links.
	LinkType      uint32
	SoftLinkValue string
}

type nodeHeader struct {
	level   uint8
	entries uint16
}

func readNodeHeader(nr *binpkg.Reader, wantType uint8) (nodeHeader, error) {
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nodeHeader{}, fmt.Errorf("reading B-tree signature: %w", err)
	}
	if string(sig) != "TREE" {
		return nodeHeader{}, fmt.Errorf("invalid B-tree signature %q", sig)
	}
	typ, err := nr.ReadUint8()
	if err != nil {
		return nodeHeader{}, err
	}
	if typ != wantType {
		return nodeHeader{}, fmt.Errorf("unexpected B-tree node type %d, want %d", typ, wantType)
	}
	var h nodeHeader
	if h.level, err = nr.ReadUint8(); err != nil {
		return nodeHeader{}, err
	}
	if h.entries, err = nr.ReadUint16(); err != nil {
		return nodeHeader{}, err
	}
	// Left and right siblings are not needed for a full walk.
	nr.Skip(int64(2 * nr.OffsetSize()))
	return h, nil
}

// ReadChunkIndex collects the chunks of a rank-ndims dataset. Chunks never
// written are absent.
func ReadChunkIndex(r *binpkg.Reader, addr uint64, ndims int) (*ChunkIndex, error) {
	idx := &ChunkIndex{NDims: ndims}
	if err := walkChunks(r, addr, ndims, 0, idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func walkChunks(r *binpkg.Reader, addr uint64, ndims, depth int, idx *ChunkIndex) error {
	if depth > maxDepth {
		return fmt.Errorf("chunk B-tree deeper than %d levels", maxDepth)
	}
	nr := r.At(int64(addr))
	h, err := readNodeHeader(nr, chunkNode)
	if err != nil {
		return err
	}

	// Keys and children alternate; the trailing key bounds the last child.
	// A key holds the chunk size, filter mask and ndims+1 coordinates, the
	// last being the element offset, always zero.
	keySize := 8 + 8*(ndims+1)
	for i := 0; i < int(h.entries); i++ {
		key, err := nr.ReadBytes(keySize)
		if err != nil {
			return fmt.Errorf("reading chunk key %d: %w", i, err)
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return fmt.Errorf("reading chunk child %d: %w", i, err)
		}

		if h.level > 0 {
			if err := walkChunks(r, child, ndims, depth+1, idx); err != nil {
				return err
			}
			continue
		}
		size := binary.LittleEndian.Uint32(key[0:])
		if size == 0 || r.IsUndefinedOffset(child) {
			continue
		}
		offset := make([]uint64, ndims)
		for d := range offset {
			offset[d] = binary.LittleEndian.Uint64(key[8+8*d:])
		}
		idx.Entries = append(idx.Entries, ChunkEntry{
			Offset:     offset,
			FilterMask: binary.LittleEndian.Uint32(key[4:]),
			Size:       size,
			Address:    child,
		})
	}
	return nil
}

// ReadGroupEntries lists the members of a group B-tree whose names live in
// names. Empty slots are skipped.
func ReadGroupEntries(r *binpkg.Reader, addr uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	var out []GroupEntry
	if err := walkGroup(r, addr, names, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkGroup(r *binpkg.Reader, addr uint64, names *heap.LocalHeap, depth int, out *[]GroupEntry) error {
	if depth > maxDepth {
		return fmt.Errorf("group B-tree deeper than %d levels", maxDepth)
	}
	nr := r.At(int64(addr))
	h, err := readNodeHeader(nr, groupNode)
	if err != nil {
		return err
	}
	for i := 0; i < int(h.entries); i++ {
		if _, err := nr.ReadLength(); err != nil { // key: heap offset of a name
			return err
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return err
		}
		if h.level > 0 {
			err = walkGroup(r, child, names, depth+1, out)
		} else {
			err = readSymbolNode(r, child, names, out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func readSymbolNode(r *binpkg.Reader, addr uint64, names *heap.LocalHeap, out *[]GroupEntry) error {
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return fmt.Errorf("reading symbol table node: %w", err)
	}
	if string(head[:4]) != "SNOD" {
		return fmt.Errorf("invalid symbol table node signature %q", head[:4])
	}
	if head[4] != 1 {
		return fmt.Errorf("unsupported symbol table node version %d", head[4])
	}
	count := int(binary.LittleEndian.Uint16(head[6:]))

	for i := range count {
		e, err := readSymbolEntry(nr, names)
		if err != nil {
			return fmt.Errorf("symbol table entry %d: %w", i, err)
		}
		if e.Name != "" {
			*out = append(*out, e)
		}
	}
	return nil
}

// Symbol table entry cache types.
const (
	cacheNone     = 0
	cacheHeader   = 1
	cacheSoftLink = 2
)

func readSymbolEntry(nr *binpkg.Reader, names *heap.LocalHeap) (GroupEntry, error) {
	nameOff, err := nr.ReadOffset()
	if err != nil {
		return GroupEntry{}, err
	}
	objAddr, err := nr.ReadOffset()
	if err != nil {
		return GroupEntry{}, err
	}
	rest, err := nr.ReadBytes(4 + 4 + 16) // cache type, reserved, scratch pad
	if err != nil {
		return GroupEntry{}, err
	}

	e := GroupEntry{Name: names.GetString(nameOff), ObjectAddress: objAddr}
	if binary.LittleEndian.Uint32(rest) == cacheSoftLink {
		e.LinkType = 1
		e.SoftLinkValue = names.GetString(uint64(binary.LittleEndian.Uint32(rest[8:])))
		e.ObjectAddress = 0
	}
	return e, nil
}
