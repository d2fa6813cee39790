package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-omx/internal/message"
)

// Encode packs v, a slice, an array or a single value, into elements of
// dt laid end to end.
func Encode(dt *message.Datatype, v reflect.Value) ([]byte, error) {
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		one := reflect.MakeSlice(reflect.SliceOf(v.Type()), 1, 1)
		one.Index(0).Set(v)
		v = one
	}

	size := int(dt.Size)
	out := make([]byte, v.Len()*size)
	order := byteOrder(dt)
	for i := range v.Len() {
		if err := put(dt, order, out[i*size:(i+1)*size], v.Index(i)); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

func put(dt *message.Datatype, order binary.ByteOrder, b []byte, e reflect.Value) error {
	switch dt.Class {
	case message.ClassFixedPoint:
		switch {
		case e.CanInt():
			return putUint(order, b, uint64(e.Int()))
		case e.CanUint():
			return putUint(order, b, e.Uint())
		}
		return fmt.Errorf("cannot store %s as an integer", e.Type())
	case message.ClassFloatPoint:
		if !e.CanFloat() {
			return fmt.Errorf("cannot store %s as a float", e.Type())
		}
		switch len(b) {
		case 4:
			order.PutUint32(b, math.Float32bits(float32(e.Float())))
		case 8:
			order.PutUint64(b, math.Float64bits(e.Float()))
		default:
			return fmt.Errorf("%d-byte float", len(b))
		}
		return nil
	case message.ClassString:
		if e.Kind() != reflect.String {
			return fmt.Errorf("cannot store %s as a string", e.Type())
		}
		n := copy(b, e.String())
		if dt.StringPadding == message.PadSpacePad {
			for j := n; j < len(b); j++ {
				b[j] = ' '
			}
		}
		return nil
	}
	return fmt.Errorf("cannot encode datatype class %d", dt.Class)
}

func putUint(order binary.ByteOrder, b []byte, u uint64) error {
	switch len(b) {
	case 1:
		b[0] = byte(u)
	case 2:
		order.PutUint16(b, uint16(u))
	case 4:
		order.PutUint32(b, uint32(u))
	case 8:
		order.PutUint64(b, u)
	default:
		return fmt.Errorf("%d-byte integer", len(b))
	}
	return nil
}
