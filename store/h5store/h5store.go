// Package h5store is the HDF5 backing store. Containers are HDF5 files
// read and written through the hdf5 package.
//
// Writes are append-only: replacing a dataset or rewriting a header
// leaves the old bytes in place. Repacking a file into a fresh one
// reclaims that space.
package h5store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path"
	"reflect"
	"slices"
	"sync"

	"github.com/robert-malhotra/go-omx/hdf5"
	"github.com/robert-malhotra/go-omx/store"
	"github.com/robert-malhotra/go-omx/tree"
)

func init() {
	store.Register("hdf5", Default)
}

// Default is the backend registered as "hdf5". It writes uncompressed
// datasets.
var Default = New()

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for skipped objects and attributes.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithCompression compresses dataset payloads with c. level applies to
// deflate.
func WithCompression(c hdf5.Compression, level int) Option {
	return func(b *Backend) {
		b.compression = c
		b.level = level
	}
}

// WithShuffle byte-shuffles numeric payloads ahead of compression.
func WithShuffle() Option {
	return func(b *Backend) { b.shuffle = true }
}

// Backend opens HDF5 files as containers.
type Backend struct {
	logger      *slog.Logger
	compression hdf5.Compression
	level       int
	shuffle     bool
}

func New(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return slog.Default()
}

func (b *Backend) datasetOptions(attrs map[string]any) []hdf5.DatasetOption {
	opts := []hdf5.DatasetOption{hdf5.WithAttributes(attrs)}
	if b.compression != hdf5.NoCompression {
		opts = append(opts, hdf5.WithCompression(b.compression, b.level))
		if b.shuffle {
			opts = append(opts, hdf5.WithShuffle())
		}
	}
	return opts
}

func (b *Backend) Open(p string, mode store.Mode) (store.Container, error) {
	var (
		f   *hdf5.File
		err error
	)
	switch mode {
	case store.ReadOnly:
		f, err = hdf5.Open(p)
	case store.ReadWrite:
		f, err = hdf5.OpenReadWrite(p)
	case store.CreateNew:
		f, err = hdf5.Create(p)
	default:
		return nil, fmt.Errorf("h5store: unknown mode %v", mode)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	b.log().Debug("opened hdf5 container", "path", p, "mode", mode)
	return &container{backend: b, file: f, mode: mode}, nil
}

func (b *Backend) Exists(p string) (bool, error) {
	_, err := os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (b *Backend) Rename(from, to string) error {
	err := os.Rename(from, to)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	return err
}

func (b *Backend) Remove(p string) error {
	err := os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	return err
}

type container struct {
	backend *Backend
	mode    store.Mode

	mu     sync.Mutex
	file   *hdf5.File
	closed bool
}

func (c *container) check(write bool) error {
	if c.closed {
		return store.ErrClosed
	}
	if write && !c.mode.Writable() {
		return store.ErrReadOnly
	}
	return nil
}

func (c *container) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// notFound marks hdf5 lookup failures with store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, hdf5.ErrNotFound) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	return err
}

func (c *container) Snapshot(p string) (tree.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(false); err != nil {
		return nil, err
	}
	g, err := c.file.OpenGroup(p)
	if err != nil {
		return nil, notFound(err)
	}
	return c.snapshot(g)
}

func (c *container) snapshot(g *hdf5.Group) (*tree.MemoryGroup, error) {
	log := c.backend.log()
	out := tree.NewMemoryGroup(g.Path())
	for k, v := range c.attributes(g.Path(), g.Attrs(), g.Attr) {
		out.SetAttribute(k, v)
	}

	links, err := g.Links()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", g.Path(), err)
	}
	for _, l := range links {
		if l.Kind != hdf5.HardLink {
			log.Debug("skipping link", "group", g.Path(), "name", l.Name, "kind", l.Kind, "target", l.Target)
			continue
		}
		kind, err := g.Kind(l)
		if err != nil {
			return nil, err
		}
		switch kind {
		case hdf5.KindGroup:
			child, err := g.OpenGroup(l.Name)
			if err != nil {
				return nil, err
			}
			sub, err := c.snapshot(child)
			if err != nil {
				return nil, err
			}
			out.AddGroup(sub)
		case hdf5.KindDataset:
			ds, err := g.OpenDataset(l.Name)
			if err != nil {
				return nil, err
			}
			out.AddDataset(c.snapshotDataset(ds))
		case hdf5.KindDatatype:
			out.AddNamedDatatype(l.Name)
		default:
			out.AddUnknownType(l.Name)
		}
	}
	return out, nil
}

func (c *container) snapshotDataset(ds *hdf5.Dataset) *liveDataset {
	shape := make([]int, len(ds.Shape()))
	for i, d := range ds.Shape() {
		shape[i] = int(d)
	}
	dt := tree.Unknown
	if elem, err := ds.ElementType(); err == nil {
		dt = datatypes[elem]
	}
	return &liveDataset{
		c:        c,
		name:     ds.Path(),
		shape:    shape,
		datatype: dt,
		attrs:    c.attributes(ds.Path(), ds.Attrs(), ds.Attr),
	}
}

var datatypes = map[reflect.Type]tree.Datatype{
	reflect.TypeFor[int8]():    tree.Int8,
	reflect.TypeFor[int16]():   tree.Int16,
	reflect.TypeFor[int32]():   tree.Int32,
	reflect.TypeFor[int64]():   tree.Int64,
	reflect.TypeFor[float32](): tree.Float32,
	reflect.TypeFor[float64](): tree.Float64,
	reflect.TypeFor[string]():  tree.String,
}

// attributes decodes each attribute on its own so that one unreadable
// attribute does not hide the rest.
func (c *container) attributes(owner string, names []string, get func(string) *hdf5.Attribute) map[string]any {
	out := make(map[string]any, len(names))
	for _, name := range names {
		v, err := get(name).Value()
		if err == nil {
			v, err = normalize(v)
		}
		if err != nil {
			c.backend.log().Debug("skipping attribute", "object", owner, "name", name, "err", err)
			continue
		}
		out[name] = v
	}
	return out
}

var errAttrRange = errors.New("unsigned value exceeds int64")

// normalize widens unsigned attribute values to the smallest signed type
// that holds them and rejects values outside the attribute value set.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case uint8:
		return int16(x), nil
	case uint16:
		return int32(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, errAttrRange
		}
		return int64(x), nil
	case []uint8:
		return widen[uint8, int16](x), nil
	case []uint16:
		return widen[uint16, int32](x), nil
	case []uint32:
		return widen[uint32, int64](x), nil
	case []uint64:
		if slices.ContainsFunc(x, func(u uint64) bool { return u > math.MaxInt64 }) {
			return nil, errAttrRange
		}
		return widen[uint64, int64](x), nil
	case int8, int16, int32, int64, float32, float64, string,
		[]int8, []int16, []int32, []int64, []float32, []float64, []string:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", v)
	}
}

func widen[U uint8 | uint16 | uint32 | uint64, S int16 | int32 | int64](in []U) []S {
	out := make([]S, len(in))
	for i, u := range in {
		out[i] = S(u)
	}
	return out
}

func (c *container) ReadPayload(p string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(false); err != nil {
		return nil, err
	}
	return c.readPayload(p)
}

func (c *container) readPayload(p string) (any, error) {
	ds, err := c.file.OpenDataset(p)
	if err != nil {
		return nil, notFound(err)
	}
	payload, err := ds.ReadPayload()
	if err != nil {
		return nil, err
	}
	if dt, _ := tree.DatatypeOf(payload); dt == tree.Unknown {
		return nil, fmt.Errorf("%s: %w: %T", p, tree.ErrUnsupportedType, payload)
	}
	return payload, nil
}

// group opens the group at p, creating it in its parent when missing.
func (c *container) group(p string) (g *hdf5.Group, created bool, err error) {
	g, err = c.file.OpenGroup(p)
	if err == nil {
		return g, false, nil
	}
	if !errors.Is(err, hdf5.ErrNotFound) {
		return nil, false, err
	}
	parent, err := c.file.OpenGroup(path.Dir(p))
	if err != nil {
		return nil, false, notFound(err)
	}
	g, err = parent.CreateGroup(path.Base(p))
	return g, true, err
}

func (c *container) WriteGroup(mg *tree.MutableGroup) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(true); err != nil {
		return err
	}
	g, created, err := c.group(mg.Name())
	if err != nil {
		return err
	}
	attrs := mg.Attributes()
	if created && len(attrs) == 0 {
		return nil
	}
	return g.SetAttrs(attrs)
}

func (c *container) WriteDataset(md *tree.MutableDataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(true); err != nil {
		return err
	}
	name := md.Name()
	parent, err := c.file.OpenGroup(path.Dir(name))
	if err != nil {
		return notFound(err)
	}
	base := path.Base(name)
	_, err = parent.OpenDataset(base)
	exists := err == nil

	switch {
	case !exists || md.DataMutated():
		data, err := md.Data()
		if err != nil {
			return err
		}
		shape := make([]uint64, 0, len(md.Shape()))
		for _, d := range md.Shape() {
			shape = append(shape, uint64(d))
		}
		_, err = parent.WriteDataset(base, data, shape, c.backend.datasetOptions(md.Attributes())...)
		return err
	case md.AttributesMutated():
		_, err := parent.RewriteDatasetAttrs(base, md.Attributes())
		return err
	}
	return nil
}

func (c *container) DeleteLink(p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(true); err != nil {
		return err
	}
	parent, err := c.file.OpenGroup(path.Dir(p))
	if err != nil {
		return notFound(err)
	}
	return notFound(parent.Unlink(path.Base(p)))
}

// Close flushes a writable file and releases it. Closing twice is a
// no-op.
func (c *container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.mode != store.ReadOnly {
		st := c.file.AllocStats()
		c.backend.log().Debug("closing hdf5 container",
			"allocations", st.Allocations, "bytes", st.Bytes, "eof", c.file.Size())
	}
	return c.file.Close()
}

// liveDataset is a snapshot dataset whose payload is read on first use.
type liveDataset struct {
	c        *container
	name     string
	shape    []int
	datatype tree.Datatype
	attrs    map[string]any

	mu      sync.Mutex
	payload any
}

func (d *liveDataset) Name() string               { return d.name }
func (d *liveDataset) Shape() []int               { return slices.Clone(d.shape) }
func (d *liveDataset) Datatype() tree.Datatype    { return d.datatype }
func (d *liveDataset) Attributes() map[string]any { return cloneAttrs(d.attrs) }
func (d *liveDataset) IsLive() bool               { return !d.c.isClosed() }

func (d *liveDataset) Data() (any, error) {
	if d.datatype == tree.Unknown {
		return nil, fmt.Errorf("%s: %w", d.name, tree.ErrUnsupportedType)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.payload == nil {
		payload, err := d.c.ReadPayload(d.name)
		if err != nil {
			return nil, err
		}
		d.payload = payload
	}
	return tree.ClonePayload(d.payload), nil
}

func cloneAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = tree.CloneValue(v)
	}
	return out
}
