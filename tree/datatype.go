package tree

import "fmt"

// Datatype tags the element type of a dataset payload.
type Datatype uint8

const (
	Unknown Datatype = iota
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	String
)

var datatypeNames = map[Datatype]string{
	Unknown: "unknown",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Float32: "float32",
	Float64: "float64",
	String:  "string",
}

func (d Datatype) String() string {
	if name, ok := datatypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Datatype(%d)", uint8(d))
}

// ParseDatatype is the inverse of String.
func ParseDatatype(s string) (Datatype, bool) {
	for dt, name := range datatypeNames {
		if name == s && dt != Unknown {
			return dt, true
		}
	}
	return Unknown, false
}

// ElementSize returns the storage size of one element in bytes.
// Strings have no fixed size and report 0.
func (d Datatype) ElementSize() int {
	switch d {
	case Int8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

// DatatypeOf returns the tag for a flat payload slice and its length.
func DatatypeOf(payload any) (Datatype, int) {
	switch p := payload.(type) {
	case []int8:
		return Int8, len(p)
	case []int16:
		return Int16, len(p)
	case []int32:
		return Int32, len(p)
	case []int64:
		return Int64, len(p)
	case []float32:
		return Float32, len(p)
	case []float64:
		return Float64, len(p)
	case []string:
		return String, len(p)
	default:
		return Unknown, 0
	}
}

// NumElements returns the product of the dimensions.
func NumElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// CheckPayload verifies that payload is a supported flat slice holding
// exactly NumElements(shape) values.
func CheckPayload(payload any, shape []int) (Datatype, error) {
	dt, n := DatatypeOf(payload)
	if dt == Unknown {
		return Unknown, fmt.Errorf("%w: %T", ErrUnsupportedType, payload)
	}
	if len(shape) == 0 {
		return Unknown, fmt.Errorf("%w: empty shape", ErrShapeMismatch)
	}
	for _, d := range shape {
		if d <= 0 {
			return Unknown, fmt.Errorf("%w: non-positive dimension in %v", ErrShapeMismatch, shape)
		}
	}
	if want := NumElements(shape); n != want {
		return Unknown, fmt.Errorf("%w: payload has %d elements, shape %v needs %d", ErrShapeMismatch, n, shape, want)
	}
	return dt, nil
}

// ClonePayload returns a copy of a flat payload slice. Unsupported values
// are returned unchanged.
func ClonePayload(payload any) any {
	switch p := payload.(type) {
	case []int8:
		return append([]int8(nil), p...)
	case []int16:
		return append([]int16(nil), p...)
	case []int32:
		return append([]int32(nil), p...)
	case []int64:
		return append([]int64(nil), p...)
	case []float32:
		return append([]float32(nil), p...)
	case []float64:
		return append([]float64(nil), p...)
	case []string:
		return append([]string(nil), p...)
	default:
		return payload
	}
}
