package tree

import (
	"maps"
	"path"
	"slices"
	"strings"
)

// Group is a read-only view of a named node in the tree.
type Group interface {
	// Name returns the full path of the group ("/" for the root).
	Name() string
	Attributes() map[string]any
	// Datasets and Groups are keyed by base name.
	Datasets() map[string]Dataset
	Groups() map[string]Group
	Dataset(path string) (Dataset, error)
	Group(path string) (Group, error)
	HasDataset(path string) bool
	HasGroup(path string) bool
	// NamedDatatypes lists committed datatypes found in the group.
	NamedDatatypes() []string
	// UnknownTypes lists children that are neither groups nor datasets.
	UnknownTypes() []string
}

// Dataset is a read-only view of a leaf node with a payload.
type Dataset interface {
	// Name returns the full path of the dataset.
	Name() string
	Shape() []int
	Datatype() Datatype
	Attributes() map[string]any
	// Data returns a copy of the flat, row-major payload.
	Data() (any, error)
}

// Live is implemented by datasets that are a snapshot of the currently
// open backing store.
type Live interface {
	IsLive() bool
}

// IsLive reports whether ds, after unwrapping any overlays, is a live
// store snapshot.
func IsLive(ds Dataset) bool {
	for ds != nil {
		switch d := ds.(type) {
		case *MutableDataset:
			if d.parent == nil {
				return false
			}
			ds = d.parent
		case Live:
			return d.IsLive()
		default:
			return false
		}
	}
	return false
}

// Join builds a child path under parent.
func Join(parent, name string) string {
	if parent == "" || parent == "/" {
		return "/" + strings.TrimPrefix(name, "/")
	}
	return path.Join(parent, name)
}

// Base returns the last element of a slash path.
func Base(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return path.Base(p)
}

// splitFirst strips one leading slash and splits off the first segment.
func splitFirst(p string) (head, rest string, nested bool) {
	p = strings.TrimPrefix(p, "/")
	head, rest, nested = strings.Cut(p, "/")
	return head, rest, nested
}

// ResolveDataset walks a slash-delimited path starting at g.
func ResolveDataset(g Group, p string) (Dataset, error) {
	head, rest, nested := splitFirst(p)
	if !nested {
		if ds, ok := g.Datasets()[head]; ok {
			return ds, nil
		}
		return nil, ErrNotFound
	}
	child, ok := g.Groups()[head]
	if !ok {
		return nil, ErrNotFound
	}
	return child.Dataset(rest)
}

// ResolveGroup walks a slash-delimited path starting at g. An empty path
// resolves to g itself.
func ResolveGroup(g Group, p string) (Group, error) {
	head, rest, nested := splitFirst(p)
	if head == "" {
		if !nested || rest == "" {
			return g, nil
		}
		return ResolveGroup(g, rest)
	}
	child, ok := g.Groups()[head]
	if !ok {
		return nil, ErrNotFound
	}
	if !nested {
		return child, nil
	}
	return child.Group(rest)
}

func copyAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue copies slice-valued attributes so callers cannot alias
// stored state. Scalars are returned unchanged.
func CloneValue(v any) any {
	switch v.(type) {
	case []int8, []int16, []int32, []int64, []float32, []float64, []string:
		return ClonePayload(v)
	default:
		return v
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
