package layout

import (
	"bytes"
	"testing"

	"github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/filter"
	"github.com/robert-malhotra/go-omx/internal/message"
)

var u8 = message.NewFixedPointDatatype(1, false, message.OrderLE)

func readerOver(file []byte) *binary.Reader {
	return binary.NewReader(bytes.NewReader(file), binary.DefaultConfig())
}

func read(t *testing.T, lm *message.DataLayout, dims []uint64, fp *message.FilterPipeline, file []byte) []byte {
	t.Helper()
	l, err := New(lm, message.NewDataspace(dims, nil), u8, fp, readerOver(file))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := l.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return got
}

func TestCompactIsCopied(t *testing.T) {
	data := []byte{1, 2, 3}
	got := read(t, message.NewCompactLayout(data), []uint64{3}, nil, nil)
	got[0] = 9
	if data[0] != 1 {
		t.Error("Read returned the message's own buffer")
	}
}

func TestContiguous(t *testing.T) {
	file := make([]byte, 64)
	copy(file[40:], []byte{5, 6, 7, 8})

	got := read(t, message.NewContiguousLayout(40, 4), []uint64{2, 2}, nil, file)
	if !bytes.Equal(got, []byte{5, 6, 7, 8}) {
		t.Errorf("got %v", got)
	}

	// Version 1 layouts carry no size; it follows from the dataspace.
	got = read(t, &message.DataLayout{Class: message.LayoutContiguous, Address: 41}, []uint64{3}, nil, file)
	if !bytes.Equal(got, []byte{6, 7, 8}) {
		t.Errorf("sized from dataspace: got %v", got)
	}
}

func TestSingleFilteredChunk(t *testing.T) {
	raw := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6}, 50)
	p := filter.NewEncodingPipeline(filter.NewShuffle([]uint32{2}), filter.NewDeflate([]uint32{6}))
	enc, err := p.Encode(raw)
	if err != nil {
		t.Fatal(err)
	}
	file := append(make([]byte, 16), enc...)

	lm := message.NewFilteredChunkLayout([]uint64{30, 10}, 1, 16, uint32(len(enc)))
	got := read(t, lm, []uint64{30, 10}, p.Message(), file)
	if !bytes.Equal(got, raw) {
		t.Error("filtered chunk did not round trip")
	}
}

func TestImplicitChunksClipEdges(t *testing.T) {
	// A 3x3 dataset in 2x2 chunks: four chunks, the right and bottom ones
	// partly outside the dataset.
	chunks := [][]byte{
		{1, 2, 4, 5},
		{3, 0, 6, 0},
		{7, 8, 0, 0},
		{9, 0, 0, 0},
	}
	file := make([]byte, 8)
	for _, c := range chunks {
		file = append(file, c...)
	}
	lm := &message.DataLayout{
		Version:        4,
		Class:          message.LayoutChunked,
		ChunkDims:      []uint32{2, 2, 1},
		ChunkIndexType: message.ChunkIndexImplicit,
		ChunkIndexAddr: 8,
	}

	got := read(t, lm, []uint64{3, 3}, nil, file)
	if want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestUnallocatedChunksAreZero(t *testing.T) {
	lm := &message.DataLayout{
		Version:        3,
		Class:          message.LayoutChunked,
		ChunkDims:      []uint32{2, 1},
		ChunkIndexAddr: ^uint64(0),
	}
	got := read(t, lm, []uint64{4}, nil, nil)
	if !bytes.Equal(got, make([]byte, 4)) {
		t.Errorf("got %v", got)
	}
}

// sparse builds a file image from byte runs at fixed offsets.
type sparse []byte

func (f *sparse) at(off int, parts ...[]byte) {
	for _, b := range parts {
		if need := off + len(b); need > len(*f) {
			*f = append(*f, make([]byte, need-len(*f))...)
		}
		copy((*f)[off:], b)
		off += len(b)
	}
}

func le(v uint64, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func le64(v uint64) []byte { return le(v, 8) }
func le32(v uint32) []byte { return le(uint64(v), 4) }
func le16(v uint16) []byte { return le(uint64(v), 2) }

const undef = ^uint64(0)

func indexed(idx message.ChunkIndexType, chunkDims ...uint32) *message.DataLayout {
	return &message.DataLayout{
		Version:        4,
		Class:          message.LayoutChunked,
		ChunkDims:      append(chunkDims, 1),
		ChunkIndexType: idx,
		ChunkIndexAddr: 8,
	}
}

func readSpace(t *testing.T, lm *message.DataLayout, space *message.Dataspace, fp *message.FilterPipeline, file []byte) []byte {
	t.Helper()
	l, err := New(lm, space, u8, fp, readerOver(file))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := l.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return got
}

func fixedArrayHeader(client, entrySize, pageBits uint8, count, block uint64) []byte {
	b := append([]byte("FAHD"), 0, client, entrySize, pageBits)
	b = append(b, le64(count)...)
	return append(append(b, le64(block)...), 0, 0, 0, 0)
}

func arrayBlock(sig string, client uint8) []byte {
	return append(append([]byte(sig), 0, client), le64(8)...)
}

func TestFixedArrayIndex(t *testing.T) {
	var f sparse
	f.at(8, fixedArrayHeader(0, 8, 10, 4, 64))
	f.at(64, arrayBlock("FADB", 0), le64(200), le64(204), le64(208), le64(undef))
	f.at(200, []byte{1, 2, 4, 5}, []byte{3, 0, 6, 0}, []byte{7, 8, 0, 0})

	got := read(t, indexed(message.ChunkIndexFixedArray, 2, 2), []uint64{3, 3}, nil, f)
	if want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 0}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFixedArrayPages(t *testing.T) {
	// Two entries per page; only the first page is marked present.
	var f sparse
	f.at(8, fixedArrayHeader(0, 8, 1, 4, 64))
	f.at(64, arrayBlock("FADB", 0), []byte{0x80})
	first := 64 + 15 + 4
	f.at(first, le64(200), le64(204), le32(0))
	f.at(first+20, le64(208), le64(212), le32(0))
	f.at(200, []byte{1, 2, 4, 5}, []byte{3, 0, 6, 0}, []byte{7, 8, 0, 0}, []byte{9, 0, 0, 0})

	got := read(t, indexed(message.ChunkIndexFixedArray, 2, 2), []uint64{3, 3}, nil, f)
	if want := []byte{1, 2, 3, 4, 5, 6, 0, 0, 0}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFilteredFixedArray(t *testing.T) {
	p := filter.NewEncodingPipeline(filter.NewDeflate([]uint32{6}))
	first, err := p.Encode([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Encode([]byte{5, 6, 7, 8})
	if err != nil {
		t.Fatal(err)
	}

	var f sparse
	f.at(8, fixedArrayHeader(1, 16, 10, 2, 64))
	f.at(64, arrayBlock("FADB", 1),
		le64(200), le32(uint32(len(first))), le32(0),
		le64(300), le32(uint32(len(second))), le32(0))
	f.at(200, first)
	f.at(300, second)

	got := read(t, indexed(message.ChunkIndexFixedArray, 4), []uint64{8}, p.Message(), f)
	if want := []byte{1, 2, 3, 4, 5, 6, 7, 8}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func extensibleArrayHeader(elemSize, maxBits, indexElems, minElems, minPointers uint8, maxIndex, iblock uint64) []byte {
	b := append([]byte("EAHD"), 0, 0, elemSize, maxBits, indexElems, minElems, minPointers, 10)
	for range 4 {
		b = append(b, le64(0)...)
	}
	b = append(b, le64(maxIndex)...)
	b = append(b, le64(maxIndex)...)
	return append(append(b, le64(iblock)...), 0, 0, 0, 0)
}

func TestExtensibleArrayDataBlocks(t *testing.T) {
	// Two elements in the index block, then data blocks of two and four
	// elements for the first two super blocks.
	var f sparse
	f.at(8, extensibleArrayHeader(8, 32, 2, 2, 2, 5, 1000))
	f.at(1000, arrayBlock("EAIB", 0), le64(500), le64(502), le64(2000), le64(2100))
	for i := range 30 {
		f.at(1046+8*i, le64(undef))
	}
	f.at(2000, arrayBlock("EADB", 0), le32(0), le64(504), le64(506))
	f.at(2100, arrayBlock("EADB", 0), le32(0), le64(508), le64(undef), le64(undef), le64(undef))
	f.at(500, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	space := message.NewDataspace([]uint64{10}, []uint64{message.Unlimited})
	got := readSpace(t, indexed(message.ChunkIndexExtensibleArray, 2), space, nil, f)
	if want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtensibleArrayUnlimitedInnerDimension(t *testing.T) {
	// A 2x4 dataset growing along its columns: chunks are numbered with
	// the column chunk varying slowest.
	var f sparse
	f.at(8, extensibleArrayHeader(8, 32, 4, 2, 2, 4, 1000))
	f.at(1000, arrayBlock("EAIB", 0), le64(500), le64(502), le64(504), le64(506))
	f.at(500, []byte{1, 2}, []byte{5, 6}, []byte{3, 4}, []byte{7, 8})

	space := message.NewDataspace([]uint64{2, 4}, []uint64{2, message.Unlimited})
	got := readSpace(t, indexed(message.ChunkIndexExtensibleArray, 1, 2), space, nil, f)
	if want := []byte{1, 2, 3, 4, 5, 6, 7, 8}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestVersion2BTreeIndex(t *testing.T) {
	var f sparse
	f.at(8, []byte("BTHD"), []byte{0, 10}, le32(512), le16(16), le16(0), []byte{100, 40},
		le64(100), le16(2), le64(2), le32(0))
	f.at(100, []byte("BTLF"), []byte{0, 10}, le64(200), le64(0), le64(202), le64(1))
	f.at(200, []byte{1, 2, 3, 4})

	got := read(t, indexed(message.ChunkIndexBTreeV2, 2), []uint64{4}, nil, f)
	if want := []byte{1, 2, 3, 4}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBrokenIndexes(t *testing.T) {
	for _, idx := range []message.ChunkIndexType{
		message.ChunkIndexFixedArray,
		message.ChunkIndexExtensibleArray,
		message.ChunkIndexBTreeV2,
	} {
		l, err := New(indexed(idx, 2), message.NewDataspace([]uint64{4}, nil), u8, nil, readerOver(make([]byte, 64)))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := l.Read(); err == nil {
			t.Errorf("index type %d: Read of a zeroed index succeeded", idx)
		}
	}
}

func TestRejectsBadChunkDims(t *testing.T) {
	space := message.NewDataspace([]uint64{4, 4}, nil)
	for _, dims := range [][]uint32{{4}, {0, 4, 1}} {
		lm := &message.DataLayout{Version: 4, Class: message.LayoutChunked, ChunkDims: dims}
		if _, err := New(lm, space, u8, nil, readerOver(nil)); err == nil {
			t.Errorf("chunk dims %v accepted", dims)
		}
	}
}
