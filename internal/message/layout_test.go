package message

import (
	"bytes"
	"testing"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

func testReader() *binpkg.Reader {
	return binpkg.NewReader(bytes.NewReader(nil), binpkg.DefaultConfig())
}

// le appends v as a size-byte little-endian integer.
func le(b []byte, v uint64, size int) []byte {
	return appendUint(b, v, size)
}

func TestParseLayoutV1Chunked(t *testing.T) {
	b := []byte{1, 3, byte(LayoutChunked), 0, 0, 0, 0, 0}
	b = le(b, 0x800, 8)
	for _, d := range []uint64{10, 20, 4} {
		b = le(b, d, 4)
	}

	m, err := parseDataLayout(b, testReader())
	if err != nil {
		t.Fatal(err)
	}
	if m.Class != LayoutChunked || m.ChunkIndexAddr != 0x800 {
		t.Errorf("got class %d index 0x%x", m.Class, m.ChunkIndexAddr)
	}
	if want := []uint32{10, 20, 4}; !equalDims(m.ChunkDims, want) {
		t.Errorf("chunk dims %v, want %v", m.ChunkDims, want)
	}
}

func TestParseLayoutV1Compact(t *testing.T) {
	b := []byte{2, 1, byte(LayoutCompact), 0, 0, 0, 0, 0}
	b = le(b, 3, 4)
	b = le(b, 3, 4)
	b = append(b, 7, 8, 9)

	m, err := parseDataLayout(b, testReader())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(m.CompactData, []byte{7, 8, 9}) {
		t.Errorf("compact data %v", m.CompactData)
	}
}

func TestParseLayoutV3Chunked(t *testing.T) {
	b := []byte{3, byte(LayoutChunked), 3}
	b = le(b, 0x4000, 8)
	for _, d := range []uint64{100, 100, 8} {
		b = le(b, d, 4)
	}

	m, err := parseDataLayout(b, testReader())
	if err != nil {
		t.Fatal(err)
	}
	if m.ChunkIndexAddr != 0x4000 {
		t.Errorf("index address 0x%x", m.ChunkIndexAddr)
	}
	if want := []uint32{100, 100, 8}; !equalDims(m.ChunkDims, want) {
		t.Errorf("chunk dims %v, want %v", m.ChunkDims, want)
	}
}

func TestParseLayoutV4Indexes(t *testing.T) {
	tests := []struct {
		name  string
		index ChunkIndexType
		info  []byte
	}{
		{"implicit", ChunkIndexImplicit, nil},
		{"fixed array", ChunkIndexFixedArray, []byte{10}},
		{"extensible array", ChunkIndexExtensibleArray, []byte{32, 4, 4, 16, 10}},
		{"btree v2", ChunkIndexBTreeV2, []byte{0, 2, 0, 0, 100, 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := []byte{4, byte(LayoutChunked), 0, 3, 2}
			for _, d := range []uint64{300, 50, 4} {
				b = le(b, d, 2)
			}
			b = append(b, byte(tt.index))
			b = append(b, tt.info...)
			b = le(b, 0x1234, 8)

			m, err := parseDataLayout(b, testReader())
			if err != nil {
				t.Fatal(err)
			}
			if m.ChunkIndexType != tt.index || m.ChunkIndexAddr != 0x1234 {
				t.Errorf("index %d at 0x%x", m.ChunkIndexType, m.ChunkIndexAddr)
			}
			if want := []uint32{300, 50, 4}; !equalDims(m.ChunkDims, want) {
				t.Errorf("chunk dims %v, want %v", m.ChunkDims, want)
			}
		})
	}
}

func TestParseLayoutTruncated(t *testing.T) {
	good := NewFilteredChunkLayout([]uint64{5, 5}, 4, 0x99, 40).encode(8, 8)
	for n := 2; n < len(good); n++ {
		if _, err := parseDataLayout(good[:n], testReader()); err == nil {
			t.Errorf("parsed %d of %d bytes without error", n, len(good))
		}
	}
	if _, err := parseDataLayout([]byte{9, 1}, testReader()); err == nil {
		t.Error("accepted layout version 9")
	}
}

func TestFilteredChunkRoundTrip(t *testing.T) {
	in := NewFilteredChunkLayout([]uint64{70000, 2}, 8, 0xabc, 1<<20)
	if in.DimensionSizeBytes != 4 {
		t.Errorf("dimension width %d, want 4", in.DimensionSizeBytes)
	}
	m, err := parseDataLayout(in.encode(8, 8), testReader())
	if err != nil {
		t.Fatal(err)
	}
	if !m.singleFiltered() || m.FilteredChunkSize != 1<<20 || m.ChunkIndexAddr != 0xabc {
		t.Errorf("round trip lost fields: %+v", m)
	}
	if want := []uint32{70000, 2, 8}; !equalDims(m.ChunkDims, want) {
		t.Errorf("chunk dims %v, want %v", m.ChunkDims, want)
	}
}

func equalDims(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
