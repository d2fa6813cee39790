package dtype

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-omx/internal/message"
)

var (
	signedTypes = map[uint32]reflect.Type{
		1: reflect.TypeFor[int8](),
		2: reflect.TypeFor[int16](),
		4: reflect.TypeFor[int32](),
		8: reflect.TypeFor[int64](),
	}
	unsignedTypes = map[uint32]reflect.Type{
		1: reflect.TypeFor[uint8](),
		2: reflect.TypeFor[uint16](),
		4: reflect.TypeFor[uint32](),
		8: reflect.TypeFor[uint64](),
	}
)

// ElemType returns the Go element type Decode produces for dt.
func ElemType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		types := unsignedTypes
		if dt.Signed {
			types = signedTypes
		}
		if t, ok := types[dt.Size]; ok {
			return t, nil
		}
		return nil, fmt.Errorf("%d-byte integer", dt.Size)
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return reflect.TypeFor[float32](), nil
		case 8:
			return reflect.TypeFor[float64](), nil
		}
		return nil, fmt.Errorf("%d-byte float", dt.Size)
	case message.ClassString:
		return reflect.TypeFor[string](), nil
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return reflect.TypeFor[string](), nil
		}
		return nil, fmt.Errorf("variable-length sequence")
	}
	return nil, fmt.Errorf("datatype class %d", dt.Class)
}

// ForElem returns the little-endian datatype written for Go element type
// t. Strings are not handled: their width depends on the data.
func ForElem(t reflect.Type) (*message.Datatype, error) {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return message.NewFixedPointDatatype(uint32(t.Size()), true, message.OrderLE), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return message.NewFixedPointDatatype(uint32(t.Size()), false, message.OrderLE), nil
	case reflect.Float32, reflect.Float64:
		return message.NewFloatDatatype(uint32(t.Size()), message.OrderLE), nil
	}
	return nil, fmt.Errorf("Go type %v", t)
}

func byteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
