package dtype

import (
	"math"
	"reflect"
	"testing"

	"github.com/robert-malhotra/go-omx/internal/message"
)

func TestRoundTripNumbers(t *testing.T) {
	tests := []struct {
		name   string
		values any
	}{
		{"int8", []int8{-128, 0, 127}},
		{"uint8", []uint8{0, 1, 255}},
		{"int16", []int16{math.MinInt16, -1, math.MaxInt16}},
		{"uint16", []uint16{0, 2, math.MaxUint16}},
		{"int32", []int32{math.MinInt32, 99999, math.MaxInt32}},
		{"uint32", []uint32{0, 7, math.MaxUint32}},
		{"int64", []int64{math.MinInt64, -3, math.MaxInt64}},
		{"uint64", []uint64{0, 9, math.MaxUint64}},
		{"float32", []float32{-1.5, 0, float32(math.Inf(1))}},
		{"float64", []float64{-1, math.Pi, math.MaxFloat64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := reflect.ValueOf(tt.values)
			dt, err := ForElem(v.Type())
			if err != nil {
				t.Fatalf("ForElem: %v", err)
			}
			if elem, err := ElemType(dt); err != nil || elem != v.Type().Elem() {
				t.Fatalf("ElemType = %v, %v; want %v", elem, err, v.Type().Elem())
			}
			raw, err := Encode(dt, v)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if len(raw) != v.Len()*int(dt.Size) {
				t.Fatalf("encoded %d bytes, want %d", len(raw), v.Len()*int(dt.Size))
			}
			got, err := Decode(dt, raw, uint64(v.Len()), nil)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(got, tt.values) {
				t.Errorf("Decode = %v, want %v", got, tt.values)
			}
		})
	}
}

func TestDecodeBigEndian(t *testing.T) {
	dt := message.NewFixedPointDatatype(4, true, message.OrderBE)
	got, err := Decode(dt, []byte{0xff, 0xff, 0xff, 0xfe, 0x00, 0x00, 0x01, 0x00}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int32{-2, 256}; !reflect.DeepEqual(got, want) {
		t.Errorf("Decode = %v, want %v", got, want)
	}

	f := message.NewFloatDatatype(8, message.OrderBE)
	raw, err := Encode(f, reflect.ValueOf(2.5))
	if err != nil {
		t.Fatal(err)
	}
	if raw[0] != 0x40 {
		t.Errorf("big-endian float starts with 0x%02x, want 0x40", raw[0])
	}
}

func TestEncodeScalarAndWidening(t *testing.T) {
	dt, err := ForElem(reflect.TypeFor[int]())
	if err != nil {
		t.Fatal(err)
	}
	if dt.Size != 8 || !dt.Signed {
		t.Fatalf("int maps to %d-byte signed=%v", dt.Size, dt.Signed)
	}
	raw, err := Encode(dt, reflect.ValueOf(-7))
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(dt, raw, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{-7}; !reflect.DeepEqual(got, want) {
		t.Errorf("Decode = %v, want %v", got, want)
	}
}

func TestStrings(t *testing.T) {
	nul := message.NewStringDatatype(6, message.PadNullTerm, message.CharsetASCII)
	raw, err := Encode(nul, reflect.ValueOf([]string{"taz", "", "zone10"}))
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(nul, raw, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"taz", "", "zone10"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Decode = %q, want %q", got, want)
	}

	space := message.NewStringDatatype(5, message.PadSpacePad, message.CharsetASCII)
	raw, err = Encode(space, reflect.ValueOf("ab"))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "ab   " {
		t.Errorf("space padded = %q", raw)
	}
	got, err = Decode(space, raw, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"ab"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Decode = %q, want %q", got, want)
	}
}

func TestRejects(t *testing.T) {
	if _, err := ForElem(reflect.TypeFor[string]()); err == nil {
		t.Error("ForElem accepted string")
	}
	if _, err := ForElem(reflect.TypeFor[complex128]()); err == nil {
		t.Error("ForElem accepted complex128")
	}

	compound := &message.Datatype{Class: message.ClassCompound, Size: 8}
	if _, err := Decode(compound, make([]byte, 8), 1, nil); err == nil {
		t.Error("Decode accepted a compound datatype")
	}
	odd := &message.Datatype{Class: message.ClassFixedPoint, Size: 3, Signed: true}
	if _, err := ElemType(odd); err == nil {
		t.Error("ElemType accepted a 3-byte integer")
	}

	i32 := message.NewFixedPointDatatype(4, true, message.OrderLE)
	if _, err := Decode(i32, make([]byte, 7), 2, nil); err == nil {
		t.Error("Decode accepted short data")
	}
	if _, err := Encode(i32, reflect.ValueOf([]string{"x"})); err == nil {
		t.Error("Encode stored a string as an integer")
	}

	vlen := message.NewVarLenStringDatatype(message.CharsetUTF8)
	if _, err := Decode(vlen, make([]byte, 16), 1, nil); err == nil {
		t.Error("Decode resolved a variable-length string without a reader")
	}
}
