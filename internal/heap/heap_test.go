package heap

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

func reader(b []byte) *binpkg.Reader {
	return binpkg.NewReader(bytes.NewReader(b), binpkg.DefaultConfig())
}

func le64(b []byte, v uint64) []byte { return binary.LittleEndian.AppendUint64(b, v) }

func TestLocalHeap(t *testing.T) {
	seg := []byte("\x00zones\x00taz\x00")
	b := append([]byte("HEAP"), 0, 0, 0, 0)
	b = le64(b, uint64(len(seg)))
	b = le64(b, ^uint64(0))
	b = le64(b, 32)
	b = append(b, make([]byte, 32-len(b))...)
	b = append(b, seg...)

	h, err := ReadLocalHeap(reader(b), 0)
	if err != nil {
		t.Fatal(err)
	}
	for off, want := range map[uint64]string{0: "", 1: "zones", 7: "taz", 8: "az", 99: ""} {
		if got := h.GetString(off); got != want {
			t.Errorf("GetString(%d) = %q, want %q", off, got, want)
		}
	}

	b[4] = 1
	if _, err := ReadLocalHeap(reader(b), 0); err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("version 1 heap: %v", err)
	}
	copy(b, "PAEH")
	if _, err := ReadLocalHeap(reader(b), 0); err == nil || !strings.Contains(err.Error(), "signature") {
		t.Errorf("bad signature: %v", err)
	}
}

func globalObject(b []byte, index uint16, data string) []byte {
	b = binary.LittleEndian.AppendUint16(b, index)
	b = binary.LittleEndian.AppendUint16(b, 1)
	b = append(b, 0, 0, 0, 0)
	b = le64(b, uint64(len(data)))
	b = append(b, data...)
	return append(b, make([]byte, (8-len(data)%8)%8)...)
}

func TestGlobalHeap(t *testing.T) {
	var objs []byte
	objs = globalObject(objs, 1, "minutes")
	objs = globalObject(objs, 2, "miles\x00junk")
	objs = globalObject(objs, 0, "")

	b := make([]byte, 16)
	b = append(b, "GCOL"...)
	b = append(b, 1, 0, 0, 0)
	b = le64(b, uint64(16+len(objs)))
	b = append(b, objs...)

	h, err := ReadGlobalHeap(reader(b), 16)
	if err != nil {
		t.Fatal(err)
	}
	if s, err := h.GetString(1); err != nil || s != "minutes" {
		t.Errorf("object 1 = %q, %v", s, err)
	}
	if s, err := h.GetString(2); err != nil || s != "miles" {
		t.Errorf("object 2 = %q, %v", s, err)
	}
	if _, err := h.GetString(3); err == nil {
		t.Error("object 3 should be missing")
	}

	obj, _ := h.GetObject(1)
	obj[0] = 'X'
	if s, _ := h.GetString(1); s != "minutes" {
		t.Error("GetObject returned shared storage")
	}

	if _, err := ReadGlobalHeap(reader(b), 0); err == nil {
		t.Error("address zero accepted")
	}
	var nilHeap *GlobalHeap
	if _, err := nilHeap.GetObject(1); err == nil {
		t.Error("nil heap returned an object")
	}
}

func TestParseGlobalHeapID(t *testing.T) {
	id, err := ParseGlobalHeapID([]byte{0x00, 0x10, 0, 0, 0, 0, 0, 0, 7, 0, 0, 0}, 8)
	if err != nil {
		t.Fatal(err)
	}
	if id.CollectionAddress != 0x1000 || id.ObjectIndex != 7 {
		t.Errorf("got %+v", id)
	}

	id, err = ParseGlobalHeapID([]byte{0x34, 0x12, 0, 0, 2, 0, 0, 0}, 4)
	if err != nil || id.CollectionAddress != 0x1234 || id.ObjectIndex != 2 {
		t.Errorf("4-byte offsets: %+v, %v", id, err)
	}

	if _, err := ParseGlobalHeapID(make([]byte, 5), 4); err == nil {
		t.Error("short ID accepted")
	}
	if _, err := ParseGlobalHeapID(make([]byte, 16), 3); err == nil {
		t.Error("3-byte offsets accepted")
	}
}
