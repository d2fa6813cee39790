package tree

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func buildTree(t *testing.T) *MemoryGroup {
	t.Helper()
	root := NewMemoryGroup("/")
	root.SetAttribute("OMX_VERSION", "0.2")

	data := NewMemoryGroup("/data")
	m, err := NewMemoryDataset("/data/m", []int32{1, 2, 3, 4}, []int{2, 2}, map[string]any{"NA": int32(-1)})
	qt.Assert(t, err, qt.IsNil)
	data.AddDataset(m)

	nested := NewMemoryGroup("/data/sub")
	deep, err := NewMemoryDataset("/data/sub/deep", []float64{1.5}, []int{1}, nil)
	qt.Assert(t, err, qt.IsNil)
	nested.AddDataset(deep)
	data.AddGroup(nested)

	root.AddGroup(data)
	root.AddGroup(NewMemoryGroup("/lookup"))
	return root
}

func TestResolve(t *testing.T) {
	root := buildTree(t)

	ds, err := root.Dataset("data/m")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ds.Name(), qt.Equals, "/data/m")
	qt.Assert(t, ds.Shape(), qt.DeepEquals, []int{2, 2})
	qt.Assert(t, ds.Datatype(), qt.Equals, Int32)

	ds, err = root.Dataset("/data/sub/deep")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ds.Datatype(), qt.Equals, Float64)

	g, err := root.Group("")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, g.Name(), qt.Equals, "/")

	g, err = root.Group("/data/sub")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, g.Name(), qt.Equals, "/data/sub")

	_, err = root.Dataset("data/missing")
	qt.Assert(t, errors.Is(err, ErrNotFound), qt.IsTrue)
	_, err = root.Dataset("nope/m")
	qt.Assert(t, errors.Is(err, ErrNotFound), qt.IsTrue)
	qt.Assert(t, root.HasGroup("lookup"), qt.IsTrue)
	qt.Assert(t, root.HasDataset("lookup"), qt.IsFalse)
}

func TestMemoryDatasetCopies(t *testing.T) {
	src := []int16{1, 2, 3}
	ds, err := NewMemoryDataset("/x", src, []int{3}, nil)
	qt.Assert(t, err, qt.IsNil)
	src[0] = 99

	got, err := ds.Data()
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.DeepEquals, []int16{1, 2, 3})

	got.([]int16)[1] = 42
	again, _ := ds.Data()
	qt.Assert(t, again, qt.DeepEquals, []int16{1, 2, 3})
}

func TestCheckPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		shape   []int
		want    Datatype
		wantErr error
	}{
		{"matrix", []float32{1, 2, 3, 4, 5, 6}, []int{2, 3}, Float32, nil},
		{"strings", []string{"a", "b"}, []int{2}, String, nil},
		{"short", []int8{1, 2}, []int{3}, Unknown, ErrShapeMismatch},
		{"zero dim", []int8{}, []int{0}, Unknown, ErrShapeMismatch},
		{"bad type", []uint16{1}, []int{1}, Unknown, ErrUnsupportedType},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dt, err := CheckPayload(test.payload, test.shape)
			if test.wantErr != nil {
				qt.Assert(t, errors.Is(err, test.wantErr), qt.IsTrue, qt.Commentf("got %v", err))
				return
			}
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, dt, qt.Equals, test.want)
		})
	}
}

func TestIsLive(t *testing.T) {
	ds, err := NewMemoryDataset("/x", []int8{1}, []int{1}, nil)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, IsLive(ds), qt.IsFalse)

	live := liveDataset{ds}
	qt.Assert(t, IsLive(live), qt.IsTrue)
	qt.Assert(t, NewMutableDataset(NewMutableDataset(live, ""), "").Live(), qt.IsTrue)
	qt.Assert(t, NewMutableDataset(nil, "/fresh").Live(), qt.IsFalse)
}

type liveDataset struct{ *MemoryDataset }

func (liveDataset) IsLive() bool { return true }

func TestDatatypeNames(t *testing.T) {
	for _, dt := range []Datatype{Int8, Int16, Int32, Int64, Float32, Float64, String} {
		parsed, ok := ParseDatatype(dt.String())
		qt.Assert(t, ok, qt.IsTrue)
		qt.Assert(t, parsed, qt.Equals, dt)
	}
	_, ok := ParseDatatype("unknown")
	qt.Assert(t, ok, qt.IsFalse)
	qt.Assert(t, Datatype(200).String(), qt.Equals, "Datatype(200)")
}
