// Package memstore is an in-process backing store. Containers live in a
// map keyed by path, so a file can be closed and reopened within one
// process. Write statistics let tests observe which writes a save issued.
package memstore

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/robert-malhotra/go-omx/store"
	"github.com/robert-malhotra/go-omx/tree"
)

func init() {
	store.Register("memory", Default)
}

// Default is the backend registered as "memory".
var Default = New()

// Stats counts writes issued against a backend.
type Stats struct {
	GroupWrites     int
	AttributeWrites int
	PayloadWrites   int
	Deletes         int
}

type dataset struct {
	shape   []int
	attrs   map[string]any
	payload any
}

type group struct {
	attrs    map[string]any
	datasets map[string]*dataset
	groups   map[string]*group
}

func newGroup() *group {
	return &group{
		attrs:    map[string]any{},
		datasets: map[string]*dataset{},
		groups:   map[string]*group{},
	}
}

// Backend holds every container it has created.
type Backend struct {
	mu    sync.Mutex
	files map[string]*group
	stats Stats
}

func New() *Backend {
	return &Backend{files: map[string]*group{}}
}

// Stats returns a copy of the write counters.
func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Backend) ResetStats() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = Stats{}
}

func (b *Backend) Open(p string, mode store.Mode) (store.Container, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	root, ok := b.files[p]
	switch {
	case mode == store.CreateNew:
		root = newGroup()
		b.files[p] = root
	case !ok:
		return nil, fmt.Errorf("%s: %w", p, store.ErrNotFound)
	}
	return &container{backend: b, path: p, root: root, mode: mode}, nil
}

func (b *Backend) Exists(p string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[p]
	return ok, nil
}

func (b *Backend) Rename(from, to string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	root, ok := b.files[from]
	if !ok {
		return fmt.Errorf("%s: %w", from, store.ErrNotFound)
	}
	delete(b.files, from)
	b.files[to] = root
	return nil
}

func (b *Backend) Remove(p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[p]; !ok {
		return fmt.Errorf("%s: %w", p, store.ErrNotFound)
	}
	delete(b.files, p)
	return nil
}

type container struct {
	backend *Backend
	path    string
	root    *group
	mode    store.Mode
	closed  bool
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

func (c *container) find(p string) (*group, error) {
	g := c.root
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		child, ok := g.groups[part]
		if !ok {
			return nil, fmt.Errorf("group %s: %w", p, store.ErrNotFound)
		}
		g = child
	}
	return g, nil
}

func (c *container) Snapshot(p string) (tree.Group, error) {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	if err := c.check(false); err != nil {
		return nil, err
	}
	g, err := c.find(p)
	if err != nil {
		return nil, err
	}
	return c.snapshot(g, tree.Join("/", strings.Trim(p, "/")))
}

func (c *container) snapshot(g *group, name string) (tree.Group, error) {
	out := tree.NewMemoryGroup(name)
	for k, v := range g.attrs {
		out.SetAttribute(k, v)
	}
	for base, ds := range g.datasets {
		md, err := tree.NewMemoryDataset(tree.Join(name, base), ds.payload, ds.shape, ds.attrs)
		if err != nil {
			return nil, err
		}
		out.AddDataset(&liveDataset{MemoryDataset: md, c: c})
	}
	for base, child := range g.groups {
		sub, err := c.snapshot(child, tree.Join(name, base))
		if err != nil {
			return nil, err
		}
		out.AddGroup(sub)
	}
	return out, nil
}

func (c *container) lookupDataset(p string) (*dataset, error) {
	parent, err := c.find(path.Dir(p))
	if err != nil {
		return nil, err
	}
	ds, ok := parent.datasets[path.Base(p)]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", p, store.ErrNotFound)
	}
	return ds, nil
}

func (c *container) ReadPayload(p string) (any, error) {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	if err := c.check(false); err != nil {
		return nil, err
	}
	ds, err := c.lookupDataset(p)
	if err != nil {
		return nil, err
	}
	return tree.ClonePayload(ds.payload), nil
}

func (c *container) WriteGroup(g *tree.MutableGroup) error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	if err := c.check(true); err != nil {
		return err
	}
	name := g.Name()
	target, err := c.find(name)
	if err != nil {
		parent, perr := c.find(path.Dir(name))
		if perr != nil {
			return perr
		}
		target = newGroup()
		parent.groups[path.Base(name)] = target
	}
	target.attrs = g.Attributes()
	c.backend.stats.GroupWrites++
	return nil
}

func (c *container) WriteDataset(md *tree.MutableDataset) error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	if err := c.check(true); err != nil {
		return err
	}
	name := md.Name()
	parent, err := c.find(path.Dir(name))
	if err != nil {
		return err
	}
	base := path.Base(name)
	ds, exists := parent.datasets[base]
	if !exists {
		ds = &dataset{}
	}
	if !exists || md.DataMutated() {
		data, err := md.Data()
		if err != nil {
			return err
		}
		ds.payload = data
		ds.shape = slices.Clone(md.Shape())
		c.backend.stats.PayloadWrites++
	}
	if !exists || md.AttributesMutated() {
		ds.attrs = md.Attributes()
		c.backend.stats.AttributeWrites++
	}
	parent.datasets[base] = ds
	return nil
}

func (c *container) DeleteLink(p string) error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	if err := c.check(true); err != nil {
		return err
	}
	parent, err := c.find(path.Dir(p))
	if err != nil {
		return err
	}
	base := path.Base(p)
	switch {
	case parent.datasets[base] != nil:
		delete(parent.datasets, base)
	case parent.groups[base] != nil:
		delete(parent.groups, base)
	default:
		return fmt.Errorf("%s: %w", p, store.ErrNotFound)
	}
	c.backend.stats.Deletes++
	return nil
}

func (c *container) Close() error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	c.closed = true
	return nil
}

type liveDataset struct {
	*tree.MemoryDataset
	c *container
}

// IsLive is read without the backend lock; closed only moves one way.
func (d *liveDataset) IsLive() bool { return !d.c.closed }
