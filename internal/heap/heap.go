package heap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

// LocalHeap is the data segment of a local heap.
type LocalHeap struct {
	data []byte
}

// ReadLocalHeap loads the local heap whose header is at addr.
func ReadLocalHeap(r *binpkg.Reader, addr uint64) (*LocalHeap, error) {
	hr := r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading local heap: %w", err)
	}
	if string(head[:4]) != "HEAP" {
		return nil, fmt.Errorf("invalid local heap signature %q", head[:4])
	}
	if head[4] != 0 {
		return nil, fmt.Errorf("unsupported local heap version %d", head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // free list head
		return nil, err
	}
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}
	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("reading local heap data: %w", err)
	}
	return &LocalHeap{data: data}, nil
}

// GetString returns the NUL-terminated string at off, or "" when off is
// outside the heap.
func (h *LocalHeap) GetString(off uint64) string {
	if off >= uint64(len(h.data)) {
		return ""
	}
	return cString(h.data[off:])
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// GlobalHeap is one global heap collection, its objects keyed by index.
type GlobalHeap struct {
	objects map[uint16][]byte
}

// GlobalHeapID points at one object in a collection.
type GlobalHeapID struct {
	CollectionAddress uint64
	ObjectIndex       uint32
}

// ReadGlobalHeap loads the collection at addr. Reading stops at the free
// space object, index zero, or at the end of the collection.
func ReadGlobalHeap(r *binpkg.Reader, addr uint64) (*GlobalHeap, error) {
	if addr == 0 || r.IsUndefinedOffset(addr) {
		return nil, fmt.Errorf("invalid global heap address 0x%x", addr)
	}
	hr := r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading global heap: %w", err)
	}
	if string(head[:4]) != "GCOL" {
		return nil, fmt.Errorf("invalid global heap signature %q", head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("unsupported global heap version %d", head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}

	objHeader := uint64(8 + r.LengthSize())
	end := int64(addr) + int64(size)
	h := &GlobalHeap{objects: map[uint16][]byte{}}
	for uint64(end-hr.Pos()) >= objHeader {
		head, err := hr.ReadBytes(8) // index, reference count, reserved
		if err != nil {
			break
		}
		index := binary.LittleEndian.Uint16(head)
		if index == 0 {
			break
		}
		n, err := hr.ReadLength()
		if err != nil || hr.Pos()+int64(n) > end {
			break
		}
		data, err := hr.ReadBytes(int(n))
		if err != nil {
			break
		}
		h.objects[index] = data
		hr.Skip(int64((8 - n%8) % 8))
	}
	return h, nil
}

// GetObject returns a copy of object index.
func (h *GlobalHeap) GetObject(index uint16) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("nil global heap")
	}
	data, ok := h.objects[index]
	if !ok {
		return nil, fmt.Errorf("object %d not in global heap", index)
	}
	return append([]byte(nil), data...), nil
}

// GetString returns object index up to its first NUL.
func (h *GlobalHeap) GetString(index uint16) (string, error) {
	data, err := h.GetObject(index)
	if err != nil {
		return "", err
	}
	return cString(data), nil
}

// ParseGlobalHeapID decodes a collection address followed by a 4-byte
// object index.
func ParseGlobalHeapID(data []byte, offsetSize int) (GlobalHeapID, error) {
	if offsetSize != 2 && offsetSize != 4 && offsetSize != 8 {
		return GlobalHeapID{}, fmt.Errorf("unsupported offset size %d", offsetSize)
	}
	if len(data) < offsetSize+4 {
		return GlobalHeapID{}, fmt.Errorf("global heap ID needs %d bytes, have %d", offsetSize+4, len(data))
	}
	var addr uint64
	for i := offsetSize - 1; i >= 0; i-- {
		addr = addr<<8 | uint64(data[i])
	}
	return GlobalHeapID{
		CollectionAddress: addr,
		ObjectIndex:       binary.LittleEndian.Uint32(data[offsetSize:]),
	}, nil
}
