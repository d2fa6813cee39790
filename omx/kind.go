package omx

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-omx/tree"
)

// Element is the set of payload element types a container may hold.
type Element interface {
	int8 | int16 | int32 | int64 | float32 | float64 | string
}

// Kind tags the element type of a container.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
)

var kindDatatypes = [...]tree.Datatype{
	KindInvalid: tree.Unknown,
	KindInt8:    tree.Int8,
	KindInt16:   tree.Int16,
	KindInt32:   tree.Int32,
	KindInt64:   tree.Int64,
	KindFloat32: tree.Float32,
	KindFloat64: tree.Float64,
	KindString:  tree.String,
}

func (k Kind) String() string {
	if k == KindInvalid || int(k) >= len(kindDatatypes) {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindDatatypes[k].String()
}

// Datatype returns the dataset datatype tag that stores k.
func (k Kind) Datatype() tree.Datatype {
	if int(k) >= len(kindDatatypes) {
		return tree.Unknown
	}
	return kindDatatypes[k]
}

// KindFromDatatype is the inverse of Kind.Datatype.
func KindFromDatatype(dt tree.Datatype) (Kind, bool) {
	for k, d := range kindDatatypes {
		if d == dt && Kind(k) != KindInvalid {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// KindOf returns the kind of T.
func KindOf[T Element]() Kind {
	var zero T
	switch any(zero).(type) {
	case int8:
		return KindInt8
	case int16:
		return KindInt16
	case int32:
		return KindInt32
	case int64:
		return KindInt64
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	default:
		return KindString
	}
}

// coerce converts a scalar attribute value to T. Integers convert to any
// integer or float kind that holds them exactly; floats convert to float
// kinds. Strings only convert to strings.
func coerce[T Element](v any) (T, error) {
	var zero T
	target := any(zero)

	switch x := v.(type) {
	case T:
		return x, nil
	case string:
		return zero, fmt.Errorf("string %q is not a %s", x, KindOf[T]())
	case float32:
		return coerceFloat[T](float64(x))
	case float64:
		return coerceFloat[T](x)
	}

	n, ok := asInt64(v)
	if !ok {
		return zero, fmt.Errorf("unsupported missing value %T", v)
	}
	var lo, hi int64
	switch target.(type) {
	case int8:
		lo, hi = math.MinInt8, math.MaxInt8
	case int16:
		lo, hi = math.MinInt16, math.MaxInt16
	case int32:
		lo, hi = math.MinInt32, math.MaxInt32
	case int64:
		lo, hi = math.MinInt64, math.MaxInt64
	case float32, float64:
		return coerceFloat[T](float64(n))
	default:
		return zero, fmt.Errorf("integer %d is not a %s", n, KindOf[T]())
	}
	if n < lo || n > hi {
		return zero, fmt.Errorf("%d is out of range for %s", n, KindOf[T]())
	}
	return fromInt64[T](n), nil
}

func coerceFloat[T Element](f float64) (T, error) {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(float32(f)).(T), nil
	case float64:
		return any(f).(T), nil
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return zero, fmt.Errorf("%v is not a %s", f, KindOf[T]())
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return zero, fmt.Errorf("%v is out of range for %s", f, KindOf[T]())
	}
	return coerce[T](int64(f))
}

func fromInt64[T Element](n int64) T {
	var zero T
	var out any
	switch any(zero).(type) {
	case int8:
		out = int8(n)
	case int16:
		out = int16(n)
	case int32:
		out = int32(n)
	default:
		out = n
	}
	return out.(T)
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

// isNaN reports whether v is a floating-point NaN.
func isNaN[T Element](v T) bool {
	switch x := any(v).(type) {
	case float32:
		return math.IsNaN(float64(x))
	case float64:
		return math.IsNaN(x)
	}
	return false
}
