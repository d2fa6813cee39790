package tree

import (
	"fmt"
	"slices"
)

// cell holds an optional override. While unset, reads fall through to the
// wrapped parent.
type cell[T any] struct {
	val T
	set bool
}

func (c *cell[T]) get(fallback func() T) T {
	if c.set {
		return c.val
	}
	return fallback()
}

func (c *cell[T]) put(v T) {
	c.val = v
	c.set = true
}

type payload struct {
	data  any
	shape []int
	dt    Datatype
}

// MutableDataset overlays a Dataset. The first write to a category copies
// the parent's value into the overlay; untouched categories keep reading
// through to the parent.
type MutableDataset struct {
	parent Dataset

	name  cell[string]
	attrs cell[map[string]any]
	data  cell[payload]

	renamed      bool
	attrsMutated bool
	dataMutated  bool
}

// NewMutableDataset wraps parent. A nil parent yields a fresh dataset
// with no payload; name is only used in that case.
func NewMutableDataset(parent Dataset, name string) *MutableDataset {
	d := &MutableDataset{parent: parent}
	if parent == nil {
		d.name.put(name)
		d.attrs.put(map[string]any{})
	}
	return d
}

// Parent returns the wrapped dataset, or nil for a fresh one.
func (d *MutableDataset) Parent() Dataset { return d.parent }

func (d *MutableDataset) Name() string {
	return d.name.get(func() string { return d.parent.Name() })
}

func (d *MutableDataset) Shape() []int {
	if d.data.set {
		return slices.Clone(d.data.val.shape)
	}
	if d.parent == nil {
		return nil
	}
	return d.parent.Shape()
}

func (d *MutableDataset) Datatype() Datatype {
	if d.data.set {
		return d.data.val.dt
	}
	if d.parent == nil {
		return Unknown
	}
	return d.parent.Datatype()
}

func (d *MutableDataset) Attributes() map[string]any {
	return copyAttributes(d.attrs.get(func() map[string]any { return d.parent.Attributes() }))
}

func (d *MutableDataset) Data() (any, error) {
	if d.data.set {
		return ClonePayload(d.data.val.data), nil
	}
	if d.parent == nil {
		return nil, fmt.Errorf("dataset %s: %w: no payload", d.Name(), ErrNotFound)
	}
	return d.parent.Data()
}

// Live reports whether the overlay chain ends in a live store snapshot.
func (d *MutableDataset) Live() bool { return IsLive(d) }

func (d *MutableDataset) SetName(name string) {
	if name == d.Name() {
		return
	}
	d.name.put(name)
	d.renamed = true
}

func (d *MutableDataset) ensureAttrs() map[string]any {
	if !d.attrs.set {
		d.attrs.put(d.parent.Attributes())
	}
	return d.attrs.val
}

func (d *MutableDataset) SetAttribute(key string, v any) error {
	if key == "" {
		return fmt.Errorf("%w: empty attribute key", ErrInvalidName)
	}
	d.ensureAttrs()[key] = CloneValue(v)
	d.attrsMutated = true
	return nil
}

func (d *MutableDataset) DeleteAttribute(key string) error {
	attrs := d.ensureAttrs()
	if _, ok := attrs[key]; !ok {
		return fmt.Errorf("attribute %q: %w", key, ErrNotFound)
	}
	delete(attrs, key)
	d.attrsMutated = true
	return nil
}

// SetAttributes replaces the whole attribute set.
func (d *MutableDataset) SetAttributes(attrs map[string]any) {
	d.attrs.put(copyAttributes(attrs))
	d.attrsMutated = true
}

// SetData replaces the payload. The payload is copied and must match shape.
func (d *MutableDataset) SetData(data any, shape []int) error {
	dt, err := CheckPayload(data, shape)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.Name(), err)
	}
	d.data.put(payload{data: ClonePayload(data), shape: slices.Clone(shape), dt: dt})
	d.dataMutated = true
	return nil
}

// IsMutated reports whether any category changed.
func (d *MutableDataset) IsMutated() bool {
	return d.renamed || d.attrsMutated || d.dataMutated
}

func (d *MutableDataset) AttributesMutated() bool { return d.attrsMutated }
func (d *MutableDataset) DataMutated() bool       { return d.dataMutated }

// MutableGroup overlays a Group in the same way MutableDataset does.
type MutableGroup struct {
	parent Group

	name     cell[string]
	attrs    cell[map[string]any]
	datasets cell[map[string]Dataset]
	groups   cell[map[string]Group]

	mutated      bool
	attrsMutated bool
}

// NewMutableGroup wraps parent. A nil parent yields a fresh, empty group
// named name.
func NewMutableGroup(parent Group, name string) *MutableGroup {
	g := &MutableGroup{parent: parent}
	if parent == nil {
		g.name.put(name)
		g.attrs.put(map[string]any{})
		g.datasets.put(map[string]Dataset{})
		g.groups.put(map[string]Group{})
	}
	return g
}

func (g *MutableGroup) Parent() Group { return g.parent }

func (g *MutableGroup) Name() string {
	return g.name.get(func() string { return g.parent.Name() })
}

func (g *MutableGroup) Attributes() map[string]any {
	return copyAttributes(g.attrs.get(func() map[string]any { return g.parent.Attributes() }))
}

func (g *MutableGroup) Datasets() map[string]Dataset {
	src := g.datasets.get(func() map[string]Dataset { return g.parent.Datasets() })
	out := make(map[string]Dataset, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (g *MutableGroup) Groups() map[string]Group {
	src := g.groups.get(func() map[string]Group { return g.parent.Groups() })
	out := make(map[string]Group, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (g *MutableGroup) Dataset(p string) (Dataset, error) { return ResolveDataset(g, p) }
func (g *MutableGroup) Group(p string) (Group, error)     { return ResolveGroup(g, p) }

func (g *MutableGroup) HasDataset(p string) bool {
	_, err := g.Dataset(p)
	return err == nil
}

func (g *MutableGroup) HasGroup(p string) bool {
	_, err := g.Group(p)
	return err == nil
}

func (g *MutableGroup) NamedDatatypes() []string {
	if g.parent == nil {
		return nil
	}
	return g.parent.NamedDatatypes()
}

func (g *MutableGroup) UnknownTypes() []string {
	if g.parent == nil {
		return nil
	}
	return g.parent.UnknownTypes()
}

// SetName renames the group. Children already inserted keep the paths
// they were given.
func (g *MutableGroup) SetName(name string) {
	if name == g.Name() {
		return
	}
	g.name.put(name)
	g.mutated = true
}

func (g *MutableGroup) ensureDatasets() map[string]Dataset {
	if !g.datasets.set {
		g.datasets.put(g.parent.Datasets())
	}
	return g.datasets.val
}

func (g *MutableGroup) ensureGroups() map[string]Group {
	if !g.groups.set {
		g.groups.put(g.parent.Groups())
	}
	return g.groups.val
}

func (g *MutableGroup) ensureAttrs() map[string]any {
	if !g.attrs.set {
		g.attrs.put(g.parent.Attributes())
	}
	return g.attrs.val
}

// SetDataset inserts ds under name. The inserted value is an overlay whose
// name is this group's path joined with name; that overlay is returned.
func (g *MutableGroup) SetDataset(name string, ds Dataset) (*MutableDataset, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty dataset name", ErrInvalidName)
	}
	child, ok := ds.(*MutableDataset)
	if !ok {
		child = NewMutableDataset(ds, name)
	}
	child.SetName(Join(g.Name(), name))
	g.ensureDatasets()[name] = child
	g.mutated = true
	return child, nil
}

func (g *MutableGroup) DeleteDataset(name string) error {
	datasets := g.ensureDatasets()
	if _, ok := datasets[name]; !ok {
		return fmt.Errorf("dataset %q in %s: %w", name, g.Name(), ErrNotFound)
	}
	delete(datasets, name)
	g.mutated = true
	return nil
}

// SetGroup inserts child under name, renamed under this group's path.
func (g *MutableGroup) SetGroup(name string, child Group) (*MutableGroup, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty group name", ErrInvalidName)
	}
	mg, ok := child.(*MutableGroup)
	if !ok {
		mg = NewMutableGroup(child, name)
	}
	mg.SetName(Join(g.Name(), name))
	g.ensureGroups()[name] = mg
	g.mutated = true
	return mg, nil
}

func (g *MutableGroup) DeleteGroup(name string) error {
	groups := g.ensureGroups()
	if _, ok := groups[name]; !ok {
		return fmt.Errorf("group %q in %s: %w", name, g.Name(), ErrNotFound)
	}
	delete(groups, name)
	g.mutated = true
	return nil
}

func (g *MutableGroup) SetAttribute(key string, v any) error {
	if key == "" {
		return fmt.Errorf("%w: empty attribute key", ErrInvalidName)
	}
	g.ensureAttrs()[key] = CloneValue(v)
	g.attrsMutated = true
	return nil
}

func (g *MutableGroup) DeleteAttribute(key string) error {
	attrs := g.ensureAttrs()
	if _, ok := attrs[key]; !ok {
		return fmt.Errorf("attribute %q: %w", key, ErrNotFound)
	}
	delete(attrs, key)
	g.attrsMutated = true
	return nil
}

func (g *MutableGroup) SetAttributes(attrs map[string]any) {
	g.attrs.put(copyAttributes(attrs))
	g.attrsMutated = true
}

// IsMutated reports structural changes: renames, inserts and deletes.
func (g *MutableGroup) IsMutated() bool         { return g.mutated }
func (g *MutableGroup) AttributesMutated() bool { return g.attrsMutated }

// RemovedDatasets lists names present in the parent but not the overlay.
func (g *MutableGroup) RemovedDatasets() []string {
	if g.parent == nil || !g.datasets.set {
		return nil
	}
	var out []string
	for _, name := range sortedKeys(g.parent.Datasets()) {
		if _, ok := g.datasets.val[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// RemovedGroups lists child groups present in the parent but not the
// overlay.
func (g *MutableGroup) RemovedGroups() []string {
	if g.parent == nil || !g.groups.set {
		return nil
	}
	var out []string
	for _, name := range sortedKeys(g.parent.Groups()) {
		if _, ok := g.groups.val[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// IsNew reports whether the group has no backing snapshot.
func (g *MutableGroup) IsNew() bool { return g.parent == nil }
