package omx

import (
	"maps"
	"slices"

	"github.com/facette/natsort"
)

// Summary describes an open file without its payloads.
type Summary struct {
	Path       string         `json:"path" yaml:"path" cbor:"path"`
	Version    string         `json:"version" yaml:"version" cbor:"version"`
	Shape      [2]int         `json:"shape" yaml:"shape,flow" cbor:"shape"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty" cbor:"attributes,omitempty"`
	Matrices   []Entry        `json:"matrices" yaml:"matrices" cbor:"matrices"`
	Lookups    []Entry        `json:"lookups" yaml:"lookups" cbor:"lookups"`
}

// Entry describes one matrix or lookup.
type Entry struct {
	Name       string         `json:"name" yaml:"name" cbor:"name"`
	Kind       string         `json:"kind" yaml:"kind" cbor:"kind"`
	Shape      []int          `json:"shape" yaml:"shape,flow" cbor:"shape"`
	Missing    any            `json:"missing,omitempty" yaml:"missing,omitempty" cbor:"missing,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty" cbor:"attributes,omitempty"`
}

func entryOf(name string, kind Kind, shape []int, missing any, hasMissing bool, attrs map[string]any) Entry {
	delete(attrs, MissingValueKey)
	e := Entry{Name: name, Kind: kind.String(), Shape: shape}
	if hasMissing {
		e.Missing = missing
	}
	if len(attrs) > 0 {
		e.Attributes = attrs
	}
	return e
}

// Summary describes the file's shape, version, root attributes and
// entries. Entries are in natural name order.
func (f *File) Summary() (Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("summarize", false); err != nil {
		return Summary{}, err
	}
	s := Summary{
		Path:       f.path,
		Version:    f.version,
		Shape:      f.shape,
		Attributes: f.attrs.Attributes(),
		Matrices:   []Entry{},
		Lookups:    []Entry{},
	}
	for _, name := range sortedNames(f.matrices) {
		m := f.matrices[name]
		shape := m.Shape()
		missing, ok := m.MissingValue()
		s.Matrices = append(s.Matrices, entryOf(name, m.Kind(), shape[:], missing, ok, m.Attributes()))
	}
	for _, name := range sortedNames(f.lookups) {
		l := f.lookups[name]
		missing, ok := l.MissingValue()
		s.Lookups = append(s.Lookups, entryOf(name, l.Kind(), []int{l.Len()}, missing, ok, l.Attributes()))
	}
	return s, nil
}

// MatricesByAttribute lists, in natural order, the matrices whose
// attribute key equals value.
func (f *File) MatricesByAttribute(key string, value any) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("query matrices", false); err != nil {
		return nil, err
	}
	want, err := normalizeValue(value)
	if err != nil {
		return nil, ErrorValidation(err.Error(), [2]string{"key", key})
	}
	var names []string
	for _, name := range sortedNames(f.matrices) {
		got, err := f.matrices[name].Attribute(key)
		if err == nil && valuesEqual(got, want) {
			names = append(names, name)
		}
	}
	return names, nil
}

// AttributeKeyUnion lists, in natural order, every attribute key used by
// any matrix.
func (f *File) AttributeKeyUnion() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.require("list attribute keys", false); err != nil {
		return nil, err
	}
	keys := map[string]bool{}
	for _, m := range f.matrices {
		for _, k := range m.AttributeKeys() {
			keys[k] = true
		}
	}
	out := slices.Collect(maps.Keys(keys))
	natsort.Sort(out)
	return out, nil
}

// Mapping maps each non-missing value of the named lookup to its index.
func (f *File) Mapping(lookup string) (map[any]int, error) {
	l, err := f.Lookup(lookup)
	if err != nil {
		return nil, err
	}
	return l.AnyMapping(), nil
}
