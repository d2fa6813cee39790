package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

type buffer struct{ b []byte }

func (m *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	return copy(m.b[off:], p), nil
}

func (m *buffer) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(m.b).ReadAt(p, off)
}

func TestLookup3Checksum(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want uint32
	}{
		{"", 0xdeadbeef},
		{"Four score and seven years ago", 0x17770551},
	} {
		if got := Lookup3Checksum([]byte(tc.in)); got != tc.want {
			t.Errorf("Lookup3Checksum(%q) = %#08x, want %#08x", tc.in, got, tc.want)
		}
	}

	seen := map[uint32]int{}
	data := make([]byte, 25)
	for i := range data {
		data[i] = byte(i)
	}
	for n := 0; n <= 24; n++ {
		seen[Lookup3Checksum(data[:n])] = n
	}
	if len(seen) != 25 {
		t.Errorf("%d distinct checksums over 25 prefix lengths", len(seen))
	}
}

func TestFletcher32(t *testing.T) {
	if got := Fletcher32(nil); got != 0 {
		t.Errorf("Fletcher32(nil) = %#x", got)
	}
	if got := Fletcher32([]byte{1, 2, 3, 4}); got != 0x08050604 {
		t.Errorf("Fletcher32 = %#08x, want 0x08050604", got)
	}
	if Fletcher32([]byte{1, 2, 3}) != Fletcher32([]byte{1, 2, 3, 0}) {
		t.Error("odd length is not zero padded")
	}
}

func TestRoundTrip(t *testing.T) {
	for _, cfg := range []Config{
		DefaultConfig(),
		{ByteOrder: binary.BigEndian, OffsetSize: 4, LengthSize: 2},
	} {
		buf := &buffer{}
		w := NewWriter(buf, cfg).At(3)
		for _, err := range []error{
			w.WriteUint8(0xab),
			w.WriteUint16(0x1234),
			w.WriteUint32(0xdeadbeef),
			w.WriteUint64(1 << 40),
			w.WriteOffset(0x00c0ffee),
			w.WriteLength(513),
			w.WriteZeros(5),
			w.WriteUintN(0x0a0b0c, 3),
		} {
			if err != nil {
				t.Fatal(err)
			}
		}
		if want := int64(3 + 1 + 2 + 4 + 8 + cfg.OffsetSize + cfg.LengthSize + 5 + 3); w.Pos() != want {
			t.Errorf("%+v: writer at %d, want %d", cfg, w.Pos(), want)
		}

		r := NewReader(buf, cfg).At(3)
		u8, _ := r.ReadUint8()
		u16, _ := r.ReadUint16()
		u32, _ := r.ReadUint32()
		u64, _ := r.ReadUintN(8)
		off, _ := r.ReadOffset()
		length, _ := r.ReadLength()
		r.Skip(5)
		odd, err := r.ReadUintN(3)
		if err != nil {
			t.Fatal(err)
		}
		if u8 != 0xab || u16 != 0x1234 || u32 != 0xdeadbeef || u64 != 1<<40 || off != 0x00c0ffee || length != 513 || odd != 0x0a0b0c {
			t.Errorf("%+v: read %x %x %x %x %x %d %x", cfg, u8, u16, u32, u64, off, length, odd)
		}
	}
}

func TestReaderPositions(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("0123456789")), DefaultConfig())
	r.Skip(3)
	r.Align(4)
	if r.Pos() != 4 {
		t.Errorf("Align(4) from 3 = %d", r.Pos())
	}
	r.Align(4)
	if r.Pos() != 4 {
		t.Errorf("Align on a boundary moved to %d", r.Pos())
	}

	peek, err := r.Peek(2)
	if err != nil || string(peek) != "45" || r.Pos() != 4 {
		t.Errorf("Peek = %q, %v at %d", peek, err, r.Pos())
	}
	other := r.At(8)
	if b, _ := other.ReadBytes(2); string(b) != "89" || r.Pos() != 4 {
		t.Errorf("At(8) read %q, original at %d", b, r.Pos())
	}

	if _, err := other.ReadBytes(1); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("read past end: %v", err)
	}
	if _, err := r.At(7).ReadUint32(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short read: %v", err)
	}

	narrow := r.WithSizes(4, 4)
	if narrow.OffsetSize() != 4 || narrow.Pos() != 4 || r.OffsetSize() != 8 {
		t.Errorf("WithSizes: offset %d at %d, original %d", narrow.OffsetSize(), narrow.Pos(), r.OffsetSize())
	}
}

func TestUndefinedOffset(t *testing.T) {
	for _, tc := range []struct {
		size int
		addr uint64
	}{
		{2, 0xffff},
		{4, 0xffffffff},
		{8, ^uint64(0)},
	} {
		r := NewReader(nil, Config{ByteOrder: binary.LittleEndian, OffsetSize: tc.size, LengthSize: 8})
		if !r.IsUndefinedOffset(tc.addr) || r.IsUndefinedOffset(tc.addr-1) {
			t.Errorf("size %d: undefined check wrong", tc.size)
		}
	}
}
