package h5store

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/robert-malhotra/go-omx/hdf5"
	"github.com/robert-malhotra/go-omx/store"
	"github.com/robert-malhotra/go-omx/tree"
)

func seed(t *testing.T, b *Backend, p string, payload []float64, shape []int) {
	t.Helper()
	c, err := b.Open(p, store.CreateNew)
	qt.Assert(t, err, qt.IsNil)
	defer func() { qt.Assert(t, c.Close(), qt.IsNil) }()

	root := tree.NewMutableGroup(nil, "/")
	qt.Assert(t, root.SetAttribute("OMX_VERSION", "0.2"), qt.IsNil)
	qt.Assert(t, root.SetAttribute("SHAPE", []int32{int32(shape[0]), int32(shape[1])}), qt.IsNil)
	data, err := root.SetGroup("data", tree.NewMutableGroup(nil, "data"))
	qt.Assert(t, err, qt.IsNil)
	_, err = root.SetGroup("lookup", tree.NewMutableGroup(nil, "lookup"))
	qt.Assert(t, err, qt.IsNil)
	m, err := data.SetDataset("m", tree.NewMutableDataset(nil, "m"))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, m.SetData(payload, shape), qt.IsNil)
	qt.Assert(t, m.SetAttribute("NA", -1.0), qt.IsNil)

	st, err := store.Commit(c, root)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, st.GroupsWritten, qt.Equals, 3)
	qt.Assert(t, st.DatasetsWritten, qt.Equals, 1)
}

func sequence(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sqrt(float64(i))
	}
	return out
}

func TestCommitRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.omx")
	b := New()
	seed(t, b, p, []float64{1, 2, 3, 4, 5, 6}, []int{2, 3})

	c, err := b.Open(p, store.ReadOnly)
	qt.Assert(t, err, qt.IsNil)
	defer c.Close()

	snap, err := c.Snapshot("/")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, snap.Name(), qt.Equals, "/")
	qt.Assert(t, snap.Attributes(), qt.DeepEquals, map[string]any{
		"OMX_VERSION": "0.2",
		"SHAPE":       []int32{2, 3},
	})
	qt.Assert(t, snap.HasGroup("lookup"), qt.IsTrue)

	ds, err := snap.Dataset("/data/m")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ds.Name(), qt.Equals, "/data/m")
	qt.Assert(t, ds.Shape(), qt.DeepEquals, []int{2, 3})
	qt.Assert(t, ds.Datatype(), qt.Equals, tree.Float64)
	qt.Assert(t, ds.Attributes(), qt.DeepEquals, map[string]any{"NA": -1.0})

	data, err := ds.Data()
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, data, qt.DeepEquals, []float64{1, 2, 3, 4, 5, 6})

	// Data hands out copies.
	data.([]float64)[0] = 100
	again, err := ds.Data()
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, again.([]float64)[0], qt.Equals, 1.0)

	sub, err := c.Snapshot("/data")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, sub.Name(), qt.Equals, "/data")
	qt.Assert(t, sub.HasDataset("m"), qt.IsTrue)
}

func TestAttributeOnlyWriteKeepsPayload(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.omx")
	b := New()
	seed(t, b, p, sequence(100*100), []int{100, 100})
	before, err := os.Stat(p)
	qt.Assert(t, err, qt.IsNil)

	c, err := b.Open(p, store.ReadWrite)
	qt.Assert(t, err, qt.IsNil)
	snap, err := c.Snapshot("/")
	qt.Assert(t, err, qt.IsNil)
	ds, err := snap.Dataset("data/m")
	qt.Assert(t, err, qt.IsNil)

	md := tree.NewMutableDataset(ds, "")
	qt.Assert(t, md.SetAttribute("units", "km"), qt.IsNil)
	qt.Assert(t, md.DataMutated(), qt.IsFalse)
	qt.Assert(t, c.WriteDataset(md), qt.IsNil)
	qt.Assert(t, c.Close(), qt.IsNil)

	after, err := os.Stat(p)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, after.Size()-before.Size() < 8*100*100/10, qt.IsTrue, qt.Commentf("grew by %d bytes", after.Size()-before.Size()))

	c, err = b.Open(p, store.ReadOnly)
	qt.Assert(t, err, qt.IsNil)
	defer c.Close()
	payload, err := c.ReadPayload("/data/m")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, payload, qt.DeepEquals, sequence(100*100))
	snap, err = c.Snapshot("/data")
	qt.Assert(t, err, qt.IsNil)
	ds, err = snap.Dataset("m")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ds.Attributes(), qt.DeepEquals, map[string]any{"NA": -1.0, "units": "km"})
}

func TestDataWriteReplacesPayload(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.omx")
	b := New()
	seed(t, b, p, []float64{1, 2, 3, 4}, []int{2, 2})

	c, err := b.Open(p, store.ReadWrite)
	qt.Assert(t, err, qt.IsNil)
	snap, err := c.Snapshot("/")
	qt.Assert(t, err, qt.IsNil)
	ds, err := snap.Dataset("data/m")
	qt.Assert(t, err, qt.IsNil)
	md := tree.NewMutableDataset(ds, "")
	qt.Assert(t, md.SetData([]float64{4, 3, 2, 1}, []int{2, 2}), qt.IsNil)
	qt.Assert(t, c.WriteDataset(md), qt.IsNil)
	qt.Assert(t, c.Close(), qt.IsNil)

	c, err = b.Open(p, store.ReadOnly)
	qt.Assert(t, err, qt.IsNil)
	defer c.Close()
	payload, err := c.ReadPayload("/data/m")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, payload, qt.DeepEquals, []float64{4, 3, 2, 1})
	snap, err = c.Snapshot("/")
	qt.Assert(t, err, qt.IsNil)
	ds, err = snap.Dataset("data/m")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ds.Attributes(), qt.DeepEquals, map[string]any{"NA": -1.0})
}

func TestDeleteLink(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.omx")
	b := New()
	seed(t, b, p, []float64{1, 2, 3, 4}, []int{2, 2})

	c, err := b.Open(p, store.ReadWrite)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, c.DeleteLink("/data/m"), qt.IsNil)
	err = c.DeleteLink("/data/m")
	qt.Assert(t, errors.Is(err, store.ErrNotFound), qt.IsTrue, qt.Commentf("got %v", err))
	qt.Assert(t, c.Close(), qt.IsNil)

	c, err = b.Open(p, store.ReadOnly)
	qt.Assert(t, err, qt.IsNil)
	defer c.Close()
	snap, err := c.Snapshot("/")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, snap.HasDataset("data/m"), qt.IsFalse)
	qt.Assert(t, snap.HasGroup("data"), qt.IsTrue)
}

func TestModesAndErrors(t *testing.T) {
	dir := t.TempDir()
	b := New()

	_, err := b.Open(filepath.Join(dir, "missing.omx"), store.ReadOnly)
	qt.Assert(t, errors.Is(err, store.ErrNotFound), qt.IsTrue, qt.Commentf("got %v", err))
	ok, err := b.Exists(filepath.Join(dir, "missing.omx"))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ok, qt.IsFalse)

	p := filepath.Join(dir, "a.omx")
	seed(t, b, p, []float64{1, 2, 3, 4}, []int{2, 2})

	c, err := b.Open(p, store.ReadOnly)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, errors.Is(c.DeleteLink("/data/m"), store.ErrReadOnly), qt.IsTrue)
	qt.Assert(t, errors.Is(c.WriteGroup(tree.NewMutableGroup(nil, "/x")), store.ErrReadOnly), qt.IsTrue)

	_, err = c.Snapshot("/nope")
	qt.Assert(t, errors.Is(err, store.ErrNotFound), qt.IsTrue, qt.Commentf("got %v", err))
	_, err = c.ReadPayload("/data/nope")
	qt.Assert(t, errors.Is(err, store.ErrNotFound), qt.IsTrue, qt.Commentf("got %v", err))

	qt.Assert(t, c.Close(), qt.IsNil)
	qt.Assert(t, c.Close(), qt.IsNil)
	_, err = c.Snapshot("/")
	qt.Assert(t, errors.Is(err, store.ErrClosed), qt.IsTrue)

	moved := filepath.Join(dir, "b.omx")
	qt.Assert(t, b.Rename(p, moved), qt.IsNil)
	ok, _ = b.Exists(moved)
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, b.Remove(moved), qt.IsNil)
	qt.Assert(t, errors.Is(b.Remove(moved), store.ErrNotFound), qt.IsTrue)
}

func TestSnapshotLiveness(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.omx")
	b := New()
	seed(t, b, p, []float64{1, 2, 3, 4}, []int{2, 2})

	c, err := b.Open(p, store.ReadOnly)
	qt.Assert(t, err, qt.IsNil)
	snap, err := c.Snapshot("/")
	qt.Assert(t, err, qt.IsNil)
	ds, err := snap.Dataset("data/m")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, tree.IsLive(ds), qt.IsTrue)
	qt.Assert(t, tree.IsLive(tree.NewMutableDataset(ds, "")), qt.IsTrue)

	qt.Assert(t, c.Close(), qt.IsNil)
	qt.Assert(t, tree.IsLive(ds), qt.IsFalse)
	_, err = ds.Data()
	qt.Assert(t, errors.Is(err, store.ErrClosed), qt.IsTrue)
}

func TestUnsupportedObjects(t *testing.T) {
	p := filepath.Join(t.TempDir(), "raw.h5")
	f, err := hdf5.Create(p)
	qt.Assert(t, err, qt.IsNil)
	_, err = f.Root().WriteDataset("u", []uint16{1, 2, 3}, []uint64{3}, hdf5.WithAttributes(map[string]any{"count": uint8(3)}))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, f.Root().SetAttr("sizes", []uint32{7, 8}), qt.IsNil)
	qt.Assert(t, f.Close(), qt.IsNil)

	c, err := New().Open(p, store.ReadOnly)
	qt.Assert(t, err, qt.IsNil)
	defer c.Close()
	snap, err := c.Snapshot("/")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, snap.Attributes(), qt.DeepEquals, map[string]any{"sizes": []int64{7, 8}})

	ds, err := snap.Dataset("u")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, ds.Datatype(), qt.Equals, tree.Unknown)
	qt.Assert(t, ds.Shape(), qt.DeepEquals, []int{3})
	qt.Assert(t, ds.Attributes(), qt.DeepEquals, map[string]any{"count": int16(3)})
	_, err = ds.Data()
	qt.Assert(t, errors.Is(err, tree.ErrUnsupportedType), qt.IsTrue)
	_, err = c.ReadPayload("/u")
	qt.Assert(t, errors.Is(err, tree.ErrUnsupportedType), qt.IsTrue)
}

func TestCompressedBackend(t *testing.T) {
	for _, comp := range []hdf5.Compression{hdf5.Deflate, hdf5.Zstd, hdf5.LZ4} {
		t.Run(comp.String(), func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "a.omx")
			b := New(WithCompression(comp, 4), WithShuffle())
			seed(t, b, p, sequence(50*40), []int{50, 40})

			f, err := hdf5.Open(p)
			qt.Assert(t, err, qt.IsNil)
			ds, err := f.OpenDataset("/data/m")
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, ds.Filters(), qt.DeepEquals, []uint16{2, uint16(comp)})
			qt.Assert(t, f.Close(), qt.IsNil)

			c, err := b.Open(p, store.ReadOnly)
			qt.Assert(t, err, qt.IsNil)
			defer c.Close()
			payload, err := c.ReadPayload("/data/m")
			qt.Assert(t, err, qt.IsNil)
			qt.Assert(t, payload, qt.DeepEquals, sequence(50*40))
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   any
		want any
		err  bool
	}{
		{in: uint8(200), want: int16(200)},
		{in: uint16(60000), want: int32(60000)},
		{in: []uint32{1, math.MaxUint32}, want: []int64{1, math.MaxUint32}},
		{in: uint64(math.MaxUint64), err: true},
		{in: []uint64{1, math.MaxUint64}, err: true},
		{in: "x", want: "x"},
		{in: []float32{1.5}, want: []float32{1.5}},
		{in: true, err: true},
	}
	for _, test := range tests {
		got, err := normalize(test.in)
		if test.err {
			qt.Check(t, err, qt.IsNotNil, qt.Commentf("%T", test.in))
			continue
		}
		qt.Check(t, err, qt.IsNil)
		qt.Check(t, got, qt.DeepEquals, test.want)
	}
}

func TestRegistered(t *testing.T) {
	got, ok := store.Lookup("hdf5")
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, got, qt.Equals, store.Backend(Default))
}
