package dtype

import (
	"bytes"
	"fmt"
	"math"

	"github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/heap"
	"github.com/robert-malhotra/go-omx/internal/message"
)

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Decode unpacks n elements of dt from data into a new slice, for example
// []int32 or []string. The reader resolves variable-length strings and
// may be nil for every other datatype.
func Decode(dt *message.Datatype, data []byte, n uint64, r *binary.Reader) (any, error) {
	if _, err := ElemType(dt); err != nil {
		return nil, err
	}
	if dt.Class == message.ClassVarLen {
		return varLenStrings(data, int(n), r)
	}

	size := int(dt.Size)
	if need := n * uint64(size); uint64(len(data)) < need {
		return nil, fmt.Errorf("need %d bytes for %d elements, have %d", need, n, len(data))
	}
	count := int(n)
	order := byteOrder(dt)

	switch dt.Class {
	case message.ClassString:
		out := make([]string, count)
		for i := range out {
			out[i] = fixedString(dt, data[i*size:(i+1)*size])
		}
		return out, nil
	case message.ClassFloatPoint:
		if size == 4 {
			return decodeAs(data, count, 4, func(b []byte) float32 { return math.Float32frombits(order.Uint32(b)) }), nil
		}
		return decodeAs(data, count, 8, func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }), nil
	}

	switch {
	case size == 1 && dt.Signed:
		return decodeAs(data, count, 1, func(b []byte) int8 { return int8(b[0]) }), nil
	case size == 1:
		return decodeAs(data, count, 1, func(b []byte) uint8 { return b[0] }), nil
	case size == 2 && dt.Signed:
		return decodeAs(data, count, 2, func(b []byte) int16 { return int16(order.Uint16(b)) }), nil
	case size == 2:
		return decodeAs(data, count, 2, order.Uint16), nil
	case size == 4 && dt.Signed:
		return decodeAs(data, count, 4, func(b []byte) int32 { return int32(order.Uint32(b)) }), nil
	case size == 4:
		return decodeAs(data, count, 4, order.Uint32), nil
	case dt.Signed:
		return decodeAs(data, count, 8, func(b []byte) int64 { return int64(order.Uint64(b)) }), nil
	default:
		return decodeAs(data, count, 8, order.Uint64), nil
	}
}

func decodeAs[T number](data []byte, n, size int, get func([]byte) T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = get(data[i*size : (i+1)*size])
	}
	return out
}

// fixedString stops at the first NUL whatever the padding, and drops
// trailing blanks from space-padded strings.
func fixedString(dt *message.Datatype, b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if dt.StringPadding == message.PadSpacePad {
		b = bytes.TrimRight(b, " ")
	}
	return string(b)
}

// varLenStrings resolves references of the form length, collection
// address, object index. A zero collection address is an empty string.
func varLenStrings(data []byte, n int, r *binary.Reader) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("variable-length strings need a file reader")
	}
	offsetSize := r.OffsetSize()
	refSize := 4 + offsetSize + 4
	if len(data) < n*refSize {
		return nil, fmt.Errorf("need %d bytes for %d string references, have %d", n*refSize, n, len(data))
	}

	collections := map[uint64]*heap.GlobalHeap{}
	out := make([]string, n)
	for i := range out {
		ref := data[i*refSize : (i+1)*refSize]
		id, err := heap.ParseGlobalHeapID(ref[4:], offsetSize)
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		if id.CollectionAddress == 0 {
			continue
		}
		gh, ok := collections[id.CollectionAddress]
		if !ok {
			gh, err = heap.ReadGlobalHeap(r, id.CollectionAddress)
			if err != nil {
				return nil, fmt.Errorf("string %d: global heap at 0x%x: %w", i, id.CollectionAddress, err)
			}
			collections[id.CollectionAddress] = gh
		}
		if out[i], err = gh.GetString(uint16(id.ObjectIndex)); err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
	}
	return out, nil
}
