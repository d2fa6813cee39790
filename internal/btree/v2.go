package btree

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

// Version 2 B-tree record types used by chunked datasets.
const (
	chunkRecords         = 10
	filteredChunkRecords = 11
)

// checksum plus signature, version and type.
const v2NodePrefix = 4 + 1 + 1 + 4

type v2Header struct {
	typ        uint8
	nodeSize   uint32
	recordSize uint16
	depth      uint16
	root       uint64
	rootCount  uint16
	total      uint64
}

// v2Level is the record capacity of nodes at one depth; it fixes the
// widths of the child pointer fields.
type v2Level struct {
	maxRecords     uint64
	cumMaxRecords  uint64
	cumRecordsSize int
}

// ReadChunkIndexV2 collects the chunks of a dataset indexed by a version 2
// B-tree. chunkDims has one entry per dataset dimension. Offsets in the
// result are element coordinates. Unfiltered records carry no size, so
// their entries have Size zero.
func ReadChunkIndexV2(r *binpkg.Reader, addr uint64, chunkDims []uint64) (*ChunkIndex, error) {
	h, err := readV2Header(r, addr)
	if err != nil {
		return nil, err
	}
	if h.typ != chunkRecords && h.typ != filteredChunkRecords {
		return nil, fmt.Errorf("B-tree record type %d does not index chunks", h.typ)
	}
	if h.depth > maxDepth {
		return nil, fmt.Errorf("chunk B-tree deeper than %d levels", maxDepth)
	}

	w := &v2Walker{r: r, h: h, chunkDims: chunkDims, idx: &ChunkIndex{NDims: len(chunkDims)}}
	w.fixed = r.OffsetSize() + 8*len(chunkDims)
	if h.typ == filteredChunkRecords {
		w.sizeWidth = int(h.recordSize) - w.fixed - 4
		if w.sizeWidth < 1 || w.sizeWidth > 8 {
			return nil, fmt.Errorf("chunk record of %d bytes does not fit rank %d", h.recordSize, len(chunkDims))
		}
	} else if int(h.recordSize) != w.fixed {
		return nil, fmt.Errorf("chunk record of %d bytes does not fit rank %d", h.recordSize, len(chunkDims))
	}
	if err := w.levels(); err != nil {
		return nil, err
	}
	if h.total == 0 || r.IsUndefinedOffset(h.root) {
		return w.idx, nil
	}
	if err := w.walk(h.root, int(h.rootCount), int(h.depth)); err != nil {
		return nil, err
	}
	return w.idx, nil
}

func readV2Header(r *binpkg.Reader, addr uint64) (v2Header, error) {
	nr := r.At(int64(addr))
	var h v2Header
	if err := v2Signature(nr, "BTHD"); err != nil {
		return h, err
	}
	var err error
	if h.typ, err = nr.ReadUint8(); err != nil {
		return h, err
	}
	if h.nodeSize, err = nr.ReadUint32(); err != nil {
		return h, err
	}
	if h.recordSize, err = nr.ReadUint16(); err != nil {
		return h, err
	}
	if h.depth, err = nr.ReadUint16(); err != nil {
		return h, err
	}
	nr.Skip(2) // split and merge percentages
	if h.root, err = nr.ReadOffset(); err != nil {
		return h, err
	}
	if h.rootCount, err = nr.ReadUint16(); err != nil {
		return h, err
	}
	if h.total, err = nr.ReadLength(); err != nil {
		return h, err
	}
	if h.recordSize == 0 || h.nodeSize <= v2NodePrefix {
		return h, fmt.Errorf("B-tree header with node size %d and record size %d", h.nodeSize, h.recordSize)
	}
	return h, nil
}

// v2Signature checks a node signature and its version byte.
func v2Signature(nr *binpkg.Reader, want string) error {
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return fmt.Errorf("reading %s signature: %w", want, err)
	}
	if string(sig) != want {
		return fmt.Errorf("invalid B-tree signature %q, want %q", sig, want)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return err
	}
	if version != 0 {
		return fmt.Errorf("unsupported %s version %d", want, version)
	}
	return nil
}

type v2Walker struct {
	r         *binpkg.Reader
	h         v2Header
	chunkDims []uint64
	idx       *ChunkIndex

	fixed     int
	sizeWidth int

	level       []v2Level
	countsWidth int
}

// encodedWidth is the byte count needed to hold n.
func encodedWidth(n uint64) int {
	return (bits.Len64(n)-1)/8 + 1
}

func (w *v2Walker) levels() error {
	node, rec := uint64(w.h.nodeSize), uint64(w.h.recordSize)
	leaf := (node - v2NodePrefix) / rec
	if leaf == 0 {
		return fmt.Errorf("B-tree node of %d bytes holds no records", node)
	}
	w.level = []v2Level{{maxRecords: leaf, cumMaxRecords: leaf}}
	w.countsWidth = encodedWidth(leaf)
	for u := 1; u <= int(w.h.depth); u++ {
		below := w.level[u-1]
		ptr := uint64(w.r.OffsetSize() + w.countsWidth + below.cumRecordsSize)
		if node < v2NodePrefix+ptr {
			return fmt.Errorf("B-tree node of %d bytes too small for depth %d", node, u)
		}
		n := (node - (v2NodePrefix + ptr)) / (rec + ptr)
		cum := (n+1)*below.cumMaxRecords + n
		w.level = append(w.level, v2Level{maxRecords: n, cumMaxRecords: cum, cumRecordsSize: encodedWidth(cum)})
	}
	return nil
}

func (w *v2Walker) walk(addr uint64, count, depth int) error {
	nr := w.r.At(int64(addr))
	sig := "BTLF"
	if depth > 0 {
		sig = "BTIN"
	}
	if err := v2Signature(nr, sig); err != nil {
		return err
	}
	typ, err := nr.ReadUint8()
	if err != nil {
		return err
	}
	if typ != w.h.typ {
		return fmt.Errorf("B-tree node type %d under header type %d", typ, w.h.typ)
	}

	records, err := nr.ReadBytes(count * int(w.h.recordSize))
	if err != nil {
		return fmt.Errorf("reading %d B-tree records: %w", count, err)
	}
	for i := range count {
		w.record(records[i*int(w.h.recordSize):])
	}
	if depth == 0 {
		return nil
	}

	// Child pointers follow the records: address, record count and, above
	// the lowest internal level, the subtree's total record count.
	for i := 0; i <= count; i++ {
		child, err := nr.ReadOffset()
		if err != nil {
			return fmt.Errorf("reading child %d: %w", i, err)
		}
		n, err := nr.ReadUintN(w.countsWidth)
		if err != nil {
			return fmt.Errorf("reading child %d count: %w", i, err)
		}
		if depth > 1 {
			nr.Skip(int64(w.level[depth-1].cumRecordsSize))
		}
		if err := w.walk(child, int(n), depth-1); err != nil {
			return err
		}
	}
	return nil
}

func (w *v2Walker) record(b []byte) {
	off := w.r.OffsetSize()
	var e ChunkEntry
	e.Address = uintN(b[:off])
	b = b[off:]
	if w.h.typ == filteredChunkRecords {
		e.Size = uint32(uintN(b[:w.sizeWidth]))
		e.FilterMask = binary.LittleEndian.Uint32(b[w.sizeWidth:])
		b = b[w.sizeWidth+4:]
	}
	if w.r.IsUndefinedOffset(e.Address) {
		return
	}
	e.Offset = make([]uint64, len(w.chunkDims))
	for d := range e.Offset {
		e.Offset[d] = binary.LittleEndian.Uint64(b[8*d:]) * w.chunkDims[d]
	}
	w.idx.Entries = append(w.idx.Entries, e)
}

func uintN(b []byte) uint64 {
	var v uint64
	for i, x := range b {
		v |= uint64(x) << (8 * i)
	}
	return v
}
