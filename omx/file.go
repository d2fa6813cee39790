// Package omx reads and writes OMX (Open Matrix eXchange) files: a
// global two-dimensional shape, a set of named matrices of that shape,
// and a set of named lookups indexing its rows or columns.
//
// A File is opened against a store.Backend, edited in memory, and saved
// back. Saving writes only what changed since the file was opened or
// last saved.
//
//	f := omx.New("skims.omx")
//	if err := f.OpenNew([]int{5, 5}); err != nil {
//		return err
//	}
//	m, _ := omx.NewMatrix("time", rows, nil)
//	if err := f.AddMatrix(m); err != nil {
//		return err
//	}
//	return f.Close()
package omx

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/facette/natsort"
	"github.com/serum-errors/go-serum"

	"github.com/robert-malhotra/go-omx/store"
	"github.com/robert-malhotra/go-omx/store/h5store"
	"github.com/robert-malhotra/go-omx/tree"
)

// Persisted names.
const (
	Version     = "0.2"
	VersionKey  = "OMX_VERSION"
	ShapeKey    = "SHAPE"
	TitleKey    = "title"
	DataGroup   = "data"
	LookupGroup = "lookup"
)

type state int

const (
	stateClosed state = iota
	stateReadOnly
	stateReadWrite
)

func (s state) String() string {
	switch s {
	case stateReadOnly:
		return "read-only"
	case stateReadWrite:
		return "read-write"
	default:
		return "not open"
	}
}

// Option configures a File.
type Option func(*File)

// WithBackend selects the backing store. The default is the HDF5 store.
func WithBackend(b store.Backend) Option {
	return func(f *File) { f.backend = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *File) { f.logger = l }
}

// File is an OMX file. A File starts closed; it is bound to its backing
// store by one of the Open methods and released by Close.
//
// All methods are safe for concurrent use, but a File has one logical
// owner: calls are serialized and misuse surfaces as lifecycle errors.
type File struct {
	path    string
	backend store.Backend
	logger  *slog.Logger

	mu        sync.Mutex
	state     state
	container store.Container
	snapshot  tree.Group
	shape     [2]int
	version   string
	attrs     AttributedElement
	matrices  map[string]AnyMatrix
	lookups   map[string]AnyLookup
	// foreign holds paths of datasets skipped at load and foreignAttrs
	// the root attributes skipped at load. Saving leaves both in place.
	foreign      map[string]bool
	foreignAttrs map[string]any
}

// New returns a closed File for path.
func New(path string, opts ...Option) *File {
	f := &File{path: path, backend: h5store.Default, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *File) Path() string { return f.path }

// require checks that the file is open, and writable when write is set.
func (f *File) require(op string, write bool) error {
	if f.state == stateClosed {
		return ErrorLifecycle(op, stateClosed.String())
	}
	if write && f.state != stateReadWrite {
		return ErrorLifecycle(op, f.state.String())
	}
	return nil
}

func (f *File) requireClosed(op string) error {
	if f.state != stateClosed {
		return ErrorLifecycle(op, "already open")
	}
	return nil
}

// OpenNew creates the file, replacing any existing one, with the given
// two-dimensional shape and empty data and lookup groups, then opens it
// for writing.
func (f *File) OpenNew(shape []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireClosed("open"); err != nil {
		return err
	}
	if len(shape) != 2 || shape[0] <= 0 || shape[1] <= 0 || shape[0] > math.MaxInt32 || shape[1] > math.MaxInt32 {
		return ErrorValidation(fmt.Sprintf("shape %v is not two positive dimensions", shape))
	}

	c, err := f.backend.Open(f.path, store.CreateNew)
	if err != nil {
		return ErrorBackingStore("create", f.path, err)
	}
	root := tree.NewMutableGroup(nil, "/")
	root.SetAttribute(VersionKey, Version)
	root.SetAttribute(ShapeKey, []int32{int32(shape[0]), int32(shape[1])})
	root.SetGroup(DataGroup, tree.NewMutableGroup(nil, DataGroup))
	root.SetGroup(LookupGroup, tree.NewMutableGroup(nil, LookupGroup))
	if _, err := store.Commit(c, root); err != nil {
		c.Close()
		return ErrorBackingStore("initialize", f.path, err)
	}
	return f.bind(c, stateReadWrite)
}

// OpenReadOnly opens an existing file for reading.
func (f *File) OpenReadOnly() error {
	return f.open(store.ReadOnly, stateReadOnly)
}

// OpenReadWrite opens an existing file for reading and writing.
func (f *File) OpenReadWrite() error {
	return f.open(store.ReadWrite, stateReadWrite)
}

func (f *File) open(mode store.Mode, st state) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireClosed("open"); err != nil {
		return err
	}
	ok, err := f.backend.Exists(f.path)
	if err != nil {
		return ErrorBackingStore("stat", f.path, err)
	}
	if !ok {
		return ErrorNotFound("file", f.path)
	}
	c, err := f.backend.Open(f.path, mode)
	if err != nil {
		return ErrorBackingStore("open", f.path, err)
	}
	return f.bind(c, st)
}

// bind loads c into the file. On failure c is closed and the file stays
// closed.
func (f *File) bind(c store.Container, st state) error {
	if err := f.load(c); err != nil {
		c.Close()
		f.reset()
		return err
	}
	f.container = c
	f.state = st
	f.logger.Debug("opened omx file", "path", f.path, "mode", st, "shape", f.shape,
		"matrices", len(f.matrices), "lookups", len(f.lookups))
	return nil
}

func (f *File) reset() {
	f.state = stateClosed
	f.container = nil
	f.snapshot = nil
	f.shape = [2]int{}
	f.version = ""
	f.attrs = AttributedElement{}
	f.matrices = nil
	f.lookups = nil
	f.foreign = nil
	f.foreignAttrs = nil
}

// load snapshots c, validates it and rebuilds the registries.
func (f *File) load(c store.Container) error {
	root, err := c.Snapshot("/")
	if err != nil {
		return ErrorBackingStore("snapshot", f.path, err)
	}
	version, shape, err := f.validate(root)
	if err != nil {
		return err
	}

	var attrs AttributedElement
	foreignAttrs := map[string]any{}
	for k, v := range root.Attributes() {
		if err := attrs.SetAttribute(k, v); err != nil {
			f.logger.Warn("skipping root attribute", "path", f.path, "key", k, "err", err)
			foreignAttrs[k] = v
		}
	}

	foreign := map[string]bool{}
	data, _ := root.Group(DataGroup)
	matrices := map[string]AnyMatrix{}
	for name, ds := range data.Datasets() {
		m, err := MatrixFromDataset(ds)
		if err != nil {
			if !unreadable(err) {
				return err
			}
			f.logger.Warn("skipping dataset", "path", f.path, "dataset", ds.Name(), "err", err)
			foreign[ds.Name()] = true
			continue
		}
		matrices[name] = m
	}

	lookup, _ := root.Group(LookupGroup)
	lookups := map[string]AnyLookup{}
	for name, ds := range lookup.Datasets() {
		l, err := LookupFromDataset(ds)
		if err != nil {
			if !unreadable(err) {
				return err
			}
			f.logger.Warn("skipping dataset", "path", f.path, "dataset", ds.Name(), "err", err)
			foreign[ds.Name()] = true
			continue
		}
		lookups[name] = l
	}

	f.snapshot = root
	f.version = version
	f.shape = shape
	f.attrs = attrs
	f.matrices = matrices
	f.lookups = lookups
	f.foreign = foreign
	f.foreignAttrs = foreignAttrs
	return nil
}

// unreadable reports whether a dataset that failed to load should be kept
// as foreign: either it is not a valid entry or its payload could not be
// decoded.
func unreadable(err error) bool {
	switch serum.Code(err) {
	case CodeValidation, CodeBackingStore:
		return true
	}
	return false
}

// validate applies the checks every open makes.
func (f *File) validate(root tree.Group) (string, [2]int, error) {
	attrs := root.Attributes()
	v, ok := attrs[VersionKey].(string)
	if !ok {
		return "", [2]int{}, ErrorFormatInconsistency(f.path, "missing "+VersionKey+" attribute")
	}
	if strings.TrimSpace(v) != Version {
		return "", [2]int{}, ErrorFormatInconsistency(f.path, fmt.Sprintf("unsupported version %q", v))
	}
	shape, ok := shapeOf(attrs[ShapeKey])
	if !ok {
		return "", [2]int{}, ErrorFormatInconsistency(f.path, fmt.Sprintf("%s attribute %v is not two positive integers", ShapeKey, attrs[ShapeKey]))
	}

	data, err := root.Group(DataGroup)
	if err != nil {
		return "", [2]int{}, ErrorFormatInconsistency(f.path, "missing "+DataGroup+" group")
	}
	lookup, err := root.Group(LookupGroup)
	if err != nil {
		return "", [2]int{}, ErrorFormatInconsistency(f.path, "missing "+LookupGroup+" group")
	}
	for _, ds := range data.Datasets() {
		if s := ds.Shape(); len(s) != 2 || s[0] != shape[0] || s[1] != shape[1] {
			return "", [2]int{}, ErrorFormatInconsistency(f.path, fmt.Sprintf("matrix %s has shape %v, file shape is %v", ds.Name(), s, shape))
		}
	}
	for _, ds := range lookup.Datasets() {
		if s := ds.Shape(); len(s) != 1 || (s[0] != shape[0] && s[0] != shape[1]) {
			return "", [2]int{}, ErrorFormatInconsistency(f.path, fmt.Sprintf("lookup %s has shape %v, file shape is %v", ds.Name(), s, shape))
		}
	}
	return strings.TrimSpace(v), shape, nil
}

// shapeOf accepts any two-element integer vector of positive values.
func shapeOf(v any) ([2]int, bool) {
	var dims []int64
	switch x := v.(type) {
	case []int8:
		dims = widen(x)
	case []int16:
		dims = widen(x)
	case []int32:
		dims = widen(x)
	case []int64:
		dims = x
	}
	if len(dims) != 2 || dims[0] <= 0 || dims[1] <= 0 || dims[0] > math.MaxInt32 || dims[1] > math.MaxInt32 {
		return [2]int{}, false
	}
	return [2]int{int(dims[0]), int(dims[1])}, true
}

func widen[S int8 | int16 | int32](in []S) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

// Shape returns the global shape every matrix has.
func (f *File) Shape() ([2]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("get shape", false); err != nil {
		return [2]int{}, err
	}
	return f.shape, nil
}

func (f *File) Version() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("get version", false); err != nil {
		return "", err
	}
	return f.version, nil
}

// IsOpen reports whether the file is bound to its backing store.
func (f *File) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != stateClosed
}

// IsWritable reports whether the file is open for writing.
func (f *File) IsWritable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == stateReadWrite
}

// Save writes every change made since the file was opened or last saved,
// then re-reads the file so that later changes are tracked from here.
func (f *File) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("save", true); err != nil {
		return err
	}
	return f.save()
}

type transferer interface {
	Transfer(target *tree.MutableDataset) error
}

func (f *File) save() error {
	root := tree.NewMutableGroup(f.snapshot, "/")
	dataSnap, _ := f.snapshot.Group(DataGroup)
	lookupSnap, _ := f.snapshot.Group(LookupGroup)
	data, _ := root.SetGroup(DataGroup, tree.NewMutableGroup(dataSnap, DataGroup))
	lookup, _ := root.SetGroup(LookupGroup, tree.NewMutableGroup(lookupSnap, LookupGroup))

	if err := syncGroup(data, dataSnap, f.matrices, f.foreign); err != nil {
		return err
	}
	if err := syncGroup(lookup, lookupSnap, f.lookups, f.foreign); err != nil {
		return err
	}

	attrs := f.attrs.Attributes()
	if _, ok := attrs[VersionKey]; !ok {
		attrs[VersionKey] = Version
	}
	if _, ok := attrs[ShapeKey]; !ok {
		attrs[ShapeKey] = []int32{int32(f.shape[0]), int32(f.shape[1])}
	}
	for k, v := range f.foreignAttrs {
		if _, ok := attrs[k]; !ok {
			attrs[k] = v
		}
	}
	if err := transferAttributes(attrs, root); err != nil {
		return ErrorValidation(err.Error())
	}

	st, err := store.Commit(f.container, root)
	if err != nil {
		return ErrorBackingStore("save", f.path, err)
	}
	f.logger.Debug("saved omx file", "path", f.path,
		"written", st.DatasetsWritten, "groups", st.GroupsWritten, "skipped", st.Skipped, "deleted", st.Deleted)
	return f.load(f.container)
}

// syncGroup deletes datasets that left the registry and transfers every
// registry entry into an overlay of its dataset.
func syncGroup[E transferer](g *tree.MutableGroup, snap tree.Group, entries map[string]E, foreign map[string]bool) error {
	existing := snap.Datasets()
	for _, name := range slices.Sorted(maps.Keys(existing)) {
		if _, ok := entries[name]; ok || foreign[existing[name].Name()] {
			continue
		}
		if err := g.DeleteDataset(name); err != nil {
			return ErrorValidation(err.Error())
		}
	}
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		target, err := g.SetDataset(name, tree.NewMutableDataset(existing[name], name))
		if err != nil {
			return ErrorValidation(err.Error())
		}
		if err := entries[name].Transfer(target); err != nil {
			return err
		}
	}
	return nil
}

// Reload discards unsaved changes and re-reads the file.
func (f *File) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("reload", false); err != nil {
		return err
	}
	return f.load(f.container)
}

// Close saves a writable file and releases the backing store. The store
// is released even when the save fails; both errors are returned.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("close", false); err != nil {
		return err
	}
	var saveErr, closeErr error
	if f.state == stateReadWrite {
		saveErr = f.save()
	}
	if err := f.container.Close(); err != nil {
		closeErr = ErrorBackingStore("close", f.path, err)
	}
	f.logger.Debug("closed omx file", "path", f.path)
	f.reset()
	return joinErrors(saveErr, closeErr)
}

// Matrix returns the matrix called name.
func (f *File) Matrix(name string) (AnyMatrix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("get matrix", false); err != nil {
		return nil, err
	}
	m, ok := f.matrices[name]
	if !ok {
		return nil, ErrorNotFound("matrix", name)
	}
	return m, nil
}

// MatrixNames lists matrix names in natural order.
func (f *File) MatrixNames() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("list matrices", false); err != nil {
		return nil, err
	}
	return sortedNames(f.matrices), nil
}

// HasMatrix reports whether the open file holds a matrix called name. A
// closed file holds none.
func (f *File) HasMatrix(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == stateClosed {
		return false
	}
	_, ok := f.matrices[name]
	return ok
}

// AddMatrix adds m, replacing any matrix of the same name. Its shape must
// equal the file's.
func (f *File) AddMatrix(m AnyMatrix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("add matrix", true); err != nil {
		return err
	}
	if m == nil {
		return ErrorValidation("matrix is nil")
	}
	if m.Shape() != f.shape {
		return ErrorValidation(fmt.Sprintf("matrix %s has shape %v, file shape is %v", m.Name(), m.Shape(), f.shape),
			[2]string{"name", m.Name()})
	}
	f.matrices[m.Name()] = m
	return nil
}

func (f *File) DeleteMatrix(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("delete matrix", true); err != nil {
		return err
	}
	if _, ok := f.matrices[name]; !ok {
		return ErrorNotFound("matrix", name)
	}
	delete(f.matrices, name)
	return nil
}

// Lookup returns the lookup called name.
func (f *File) Lookup(name string) (AnyLookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("get lookup", false); err != nil {
		return nil, err
	}
	l, ok := f.lookups[name]
	if !ok {
		return nil, ErrorNotFound("lookup", name)
	}
	return l, nil
}

// LookupNames lists lookup names in natural order.
func (f *File) LookupNames() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("list lookups", false); err != nil {
		return nil, err
	}
	return sortedNames(f.lookups), nil
}

// HasLookup reports whether the open file holds a lookup called name. A
// closed file holds none.
func (f *File) HasLookup(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == stateClosed {
		return false
	}
	_, ok := f.lookups[name]
	return ok
}

// AddLookup adds l, replacing any lookup of the same name. Its length
// must equal one of the file's dimensions.
func (f *File) AddLookup(l AnyLookup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("add lookup", true); err != nil {
		return err
	}
	if l == nil {
		return ErrorValidation("lookup is nil")
	}
	if n := l.Len(); n != f.shape[0] && n != f.shape[1] {
		return ErrorValidation(fmt.Sprintf("lookup %s has length %d, file shape is %v", l.Name(), n, f.shape),
			[2]string{"name", l.Name()})
	}
	f.lookups[l.Name()] = l
	return nil
}

func (f *File) DeleteLookup(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("delete lookup", true); err != nil {
		return err
	}
	if _, ok := f.lookups[name]; !ok {
		return ErrorNotFound("lookup", name)
	}
	delete(f.lookups, name)
	return nil
}

func sortedNames[V any](m map[string]V) []string {
	names := slices.Collect(maps.Keys(m))
	natsort.Sort(names)
	return names
}

func reserved(key string) bool {
	return key == VersionKey || key == ShapeKey
}

// Attribute returns a root attribute.
func (f *File) Attribute(key string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("get attribute", false); err != nil {
		return nil, err
	}
	return f.attrs.Attribute(key)
}

// SetAttribute sets a root attribute. The version and shape keys are
// managed by the file and rejected.
func (f *File) SetAttribute(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("set attribute", true); err != nil {
		return err
	}
	if reserved(key) {
		return ErrorValidation(fmt.Sprintf("attribute %s is reserved", key), [2]string{"key", key})
	}
	return f.attrs.SetAttribute(key, value)
}

func (f *File) DeleteAttribute(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("delete attribute", true); err != nil {
		return err
	}
	if reserved(key) {
		return ErrorValidation(fmt.Sprintf("attribute %s is reserved", key), [2]string{"key", key})
	}
	return f.attrs.DeleteAttribute(key)
}

// HasAttribute reports whether the open file has a root attribute key. A
// closed file has none.
func (f *File) HasAttribute(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == stateClosed {
		return false
	}
	return f.attrs.HasAttribute(key)
}

// AttributeKeys lists root attribute keys in natural order.
func (f *File) AttributeKeys() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("list attributes", false); err != nil {
		return nil, err
	}
	return f.attrs.AttributeKeys(), nil
}

// Attributes returns a copy of the root attributes.
func (f *File) Attributes() (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("get attributes", false); err != nil {
		return nil, err
	}
	return f.attrs.Attributes(), nil
}

// TransferAttributes makes target's attributes equal to the root
// attributes.
func (f *File) TransferAttributes(target AttributeTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("transfer attributes", false); err != nil {
		return err
	}
	return f.attrs.TransferAttributes(target)
}
