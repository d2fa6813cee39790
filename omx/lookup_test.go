package omx

import (
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"

	"github.com/robert-malhotra/go-omx/tree"
)

func TestNewLookupDistinct(t *testing.T) {
	l, err := NewLookup("zones", []int32{100, 101, 102}, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, l.Len(), qt.Equals, 3)
	qt.Assert(t, l.Kind(), qt.Equals, KindInt32)

	_, err = NewLookup("zones", []int32{100, 101, 100}, nil)
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)

	_, err = NewLookup("zones", []int32{}, nil)
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)

	// Repeats of the missing value are allowed.
	l, err = NewLookup("zones", []int32{-1, 100, -1, 101}, ptr(int32(-1)))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, l.Mapping(), qt.DeepEquals, map[int32]int{100: 1, 101: 3})

	// A lookup where every entry is missing is distinct.
	_, err = NewLookup("empty", []string{"", "", ""}, ptr(""))
	qt.Assert(t, err, qt.IsNil)
}

func TestLookupNaN(t *testing.T) {
	nan := math.NaN()
	_, err := NewLookup("x", []float64{1, nan, 2, nan}, nil)
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)

	l, err := NewLookup("x", []float64{1, nan, 2}, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, l.Mapping(), qt.DeepEquals, map[float64]int{1: 0, 2: 2})
	i, ok := l.IndexOf(nan)
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, i, qt.Equals, 1)

	// NaN as the missing value admits repeated NaNs.
	_, err = NewLookup("x", []float64{nan, 1, nan}, ptr(nan))
	qt.Assert(t, err, qt.IsNil)
}

func TestLookupSetRollsBack(t *testing.T) {
	l, err := NewLookup("zones", []int64{1, 2, 3}, nil)
	qt.Assert(t, err, qt.IsNil)

	err = l.Set(0, 2)
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)
	qt.Assert(t, l.Values(), qt.DeepEquals, []int64{1, 2, 3})

	err = l.Set(5, 9)
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)

	qt.Assert(t, l.Set(0, 9), qt.IsNil)
	qt.Assert(t, l.Get(0), qt.Equals, int64(9))
	qt.Assert(t, l.IsDataModified(), qt.IsTrue)

	err = l.SetValues([]int64{4, 4, 5})
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)
	err = l.SetValues([]int64{4, 5})
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)
	qt.Assert(t, l.SetValues([]int64{4, 5, 6}), qt.IsNil)
	qt.Assert(t, l.Values(), qt.DeepEquals, []int64{4, 5, 6})

	// Values hands out a copy, so edits to it cannot repeat a value.
	values := l.Values()
	values[2] = 4
	qt.Assert(t, l.Get(2), qt.Equals, int64(6))
}

func TestLookupMissingValueGuard(t *testing.T) {
	l, err := NewLookup("zones", []int16{0, 0, 7}, ptr(int16(0)))
	qt.Assert(t, err, qt.IsNil)

	// Changing the missing value would expose the repeated zeros.
	err = l.SetMissingValue(7)
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)
	na, _ := l.Missing()
	qt.Assert(t, na, qt.Equals, int16(0))

	err = l.ClearMissingValue()
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)
	qt.Assert(t, l.HasAttribute(MissingValueKey), qt.IsTrue)

	err = l.DeleteAttribute(MissingValueKey)
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)
	qt.Assert(t, l.HasAttribute(MissingValueKey), qt.IsTrue)

	// Other attributes are unaffected by the guard.
	qt.Assert(t, l.SetAttribute("desc", "taz"), qt.IsNil)
	qt.Assert(t, l.DeleteAttribute("desc"), qt.IsNil)

	m, err := NewLookup("ok", []int16{1, 2}, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, m.ClearMissingValue(), qt.IsNil)
	qt.Assert(t, m.SetMissingValue(2), qt.IsNil)
	qt.Assert(t, m.ClearMissingValue(), qt.IsNil)
}

func TestLookupTransferRechecks(t *testing.T) {
	l, err := NewLookup("zones", []int32{1, 2, 3}, nil)
	qt.Assert(t, err, qt.IsNil)
	l.values[2] = 1

	target := tree.NewMutableDataset(nil, "/lookup/zones")
	err = l.Transfer(target)
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)
	qt.Assert(t, target.DataMutated(), qt.IsFalse)

	l.values[2] = 3
	qt.Assert(t, l.Transfer(target), qt.IsNil)
	qt.Assert(t, target.Shape(), qt.DeepEquals, []int{3})
}

func TestLookupFromDataset(t *testing.T) {
	ds, err := tree.NewMemoryDataset("/lookup/names", []string{"a", "b", "c"}, []int{3}, map[string]any{"source": "census"})
	qt.Assert(t, err, qt.IsNil)
	al, err := LookupFromDataset(ds)
	qt.Assert(t, err, qt.IsNil)
	l, ok := al.(*Lookup[string])
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, l.Name(), qt.Equals, "names")
	qt.Assert(t, l.AnyMapping(), qt.DeepEquals, map[any]int{"a": 0, "b": 1, "c": 2})
	qt.Assert(t, l.Attributes(), qt.DeepEquals, map[string]any{"source": "census"})

	dup, _ := tree.NewMemoryDataset("/lookup/d", []int8{1, 1}, []int{2}, nil)
	_, err = LookupFromDataset(dup)
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)

	flat, _ := tree.NewMemoryDataset("/lookup/m", []int8{1, 2, 3, 4}, []int{2, 2}, nil)
	_, err = LookupFromDataset(flat)
	qt.Assert(t, serum.Code(err), qt.Equals, CodeValidation)
}
