package tree

import (
	"fmt"
	"slices"
)

// MemoryDataset is a dataset held entirely in memory.
type MemoryDataset struct {
	name     string
	shape    []int
	datatype Datatype
	attrs    map[string]any
	payload  any
}

// NewMemoryDataset copies payload, shape and attrs into a new dataset.
func NewMemoryDataset(name string, payload any, shape []int, attrs map[string]any) (*MemoryDataset, error) {
	dt, err := CheckPayload(payload, shape)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	return &MemoryDataset{
		name:     name,
		shape:    slices.Clone(shape),
		datatype: dt,
		attrs:    copyAttributes(attrs),
		payload:  ClonePayload(payload),
	}, nil
}

func (d *MemoryDataset) Name() string               { return d.name }
func (d *MemoryDataset) Shape() []int               { return slices.Clone(d.shape) }
func (d *MemoryDataset) Datatype() Datatype         { return d.datatype }
func (d *MemoryDataset) Attributes() map[string]any { return copyAttributes(d.attrs) }

func (d *MemoryDataset) Data() (any, error) {
	return ClonePayload(d.payload), nil
}

// MemoryGroup is a group held entirely in memory.
type MemoryGroup struct {
	name     string
	attrs    map[string]any
	datasets map[string]Dataset
	groups   map[string]Group

	namedTypes   []string
	unknownTypes []string
}

// NewMemoryGroup creates an empty group with the given full path.
func NewMemoryGroup(name string) *MemoryGroup {
	return &MemoryGroup{
		name:     name,
		attrs:    map[string]any{},
		datasets: map[string]Dataset{},
		groups:   map[string]Group{},
	}
}

func (g *MemoryGroup) Name() string               { return g.name }
func (g *MemoryGroup) Attributes() map[string]any { return copyAttributes(g.attrs) }

func (g *MemoryGroup) Datasets() map[string]Dataset {
	out := make(map[string]Dataset, len(g.datasets))
	for k, v := range g.datasets {
		out[k] = v
	}
	return out
}

func (g *MemoryGroup) Groups() map[string]Group {
	out := make(map[string]Group, len(g.groups))
	for k, v := range g.groups {
		out[k] = v
	}
	return out
}

func (g *MemoryGroup) Dataset(p string) (Dataset, error) { return ResolveDataset(g, p) }
func (g *MemoryGroup) Group(p string) (Group, error)     { return ResolveGroup(g, p) }

func (g *MemoryGroup) HasDataset(p string) bool {
	_, err := g.Dataset(p)
	return err == nil
}

func (g *MemoryGroup) HasGroup(p string) bool {
	_, err := g.Group(p)
	return err == nil
}

func (g *MemoryGroup) NamedDatatypes() []string { return slices.Clone(g.namedTypes) }
func (g *MemoryGroup) UnknownTypes() []string   { return slices.Clone(g.unknownTypes) }

// SetAttribute stores a copy of v under key.
func (g *MemoryGroup) SetAttribute(key string, v any) {
	g.attrs[key] = CloneValue(v)
}

// AddDataset inserts ds under its base name.
func (g *MemoryGroup) AddDataset(ds Dataset) {
	g.datasets[Base(ds.Name())] = ds
}

// AddGroup inserts child under its base name.
func (g *MemoryGroup) AddGroup(child Group) {
	g.groups[Base(child.Name())] = child
}

// AddNamedDatatype records a committed datatype by name.
func (g *MemoryGroup) AddNamedDatatype(name string) {
	g.namedTypes = append(g.namedTypes, name)
}

// AddUnknownType records a child of unrecognized kind.
func (g *MemoryGroup) AddUnknownType(name string) {
	g.unknownTypes = append(g.unknownTypes, name)
}
