package omx

import (
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-omx/tree"
)

// AnyLookup is a Lookup of any element kind.
type AnyLookup interface {
	Attributed
	Name() string
	Kind() Kind
	Len() int
	MissingValue() (any, bool)
	ClearMissingValue() error
	// Payload returns a copy of the values.
	Payload() any
	IsDataModified() bool
	Transfer(target *tree.MutableDataset) error
	// AnyMapping maps each non-missing value to its index.
	AnyMapping() map[any]int

	resetBaseline()
}

// Lookup is a one-dimensional re-indexing table of T. Values other than
// the missing value are pairwise distinct; NaN counts as one value.
type Lookup[T Element] struct {
	container[T]
	values []T
}

// NewLookup builds a lookup from a copy of values, which must be
// non-empty and distinct apart from entries equal to missing.
func NewLookup[T Element](name string, values []T, missing *T) (*Lookup[T], error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return newLookup(name, append([]T(nil), values...), missing)
}

func newLookup[T Element](name string, values []T, missing *T) (*Lookup[T], error) {
	if len(values) == 0 {
		return nil, ErrorValidation("lookup payload is empty", [2]string{"name", name})
	}
	l := &Lookup[T]{container: container[T]{name: name}, values: values}
	if err := l.initMissing(missing); err != nil {
		return nil, err
	}
	if err := checkDistinct(name, values, l.missingPtr()); err != nil {
		return nil, err
	}
	l.resetBaseline()
	return l, nil
}

func same[T Element](a, b T) bool {
	return a == b || (isNaN(a) && isNaN(b))
}

func checkDistinct[T Element](name string, values []T, missing *T) error {
	seen := make(map[T]int, len(values))
	nan := -1
	for i, v := range values {
		if missing != nil && same(v, *missing) {
			continue
		}
		j, dup := seen[v]
		if isNaN(v) {
			j, dup = nan, nan >= 0
			nan = i
		}
		if dup {
			return ErrorValidation(fmt.Sprintf("lookup %s: value %v repeats at %d and %d", name, v, j, i), [2]string{"name", name})
		}
		seen[v] = i
	}
	return nil
}

// guard applies change and rolls it back if the values stop being
// distinct under the resulting missing value.
func (l *Lookup[T]) guard(change func() error) error {
	prev, had := l.attrs[MissingValueKey]
	if err := change(); err != nil {
		return err
	}
	if err := checkDistinct(l.name, l.values, l.missingPtr()); err != nil {
		if had {
			l.attrs[MissingValueKey] = prev
		} else {
			delete(l.attrs, MissingValueKey)
		}
		return err
	}
	return nil
}

func (l *Lookup[T]) SetAttribute(key string, value any) error {
	if key != MissingValueKey {
		return l.container.SetAttribute(key, value)
	}
	return l.guard(func() error { return l.container.SetAttribute(key, value) })
}

func (l *Lookup[T]) DeleteAttribute(key string) error {
	if key != MissingValueKey {
		return l.container.DeleteAttribute(key)
	}
	return l.guard(func() error { return l.container.DeleteAttribute(key) })
}

// SetMissingValue records v as the missing value, replacing any
// existing one.
func (l *Lookup[T]) SetMissingValue(v T) error {
	return l.SetAttribute(MissingValueKey, v)
}

// ClearMissingValue removes the missing value. It fails if that would
// expose repeated values.
func (l *Lookup[T]) ClearMissingValue() error {
	if !l.HasAttribute(MissingValueKey) {
		return nil
	}
	return l.DeleteAttribute(MissingValueKey)
}

// Values returns a copy of the values. Edits go through Set and
// SetValues, which keep the values distinct.
func (l *Lookup[T]) Values() []T { return slices.Clone(l.values) }

func (l *Lookup[T]) Len() int    { return len(l.values) }
func (l *Lookup[T]) Get(i int) T { return l.values[i] }

// Set stores v at i, failing without change if v would repeat a value.
func (l *Lookup[T]) Set(i int, v T) error {
	if i < 0 || i >= len(l.values) {
		return ErrorValidation(fmt.Sprintf("lookup %s: index %d out of range [0,%d)", l.name, i, len(l.values)))
	}
	old := l.values[i]
	l.values[i] = v
	if err := checkDistinct(l.name, l.values, l.missingPtr()); err != nil {
		l.values[i] = old
		return err
	}
	return nil
}

// SetValues replaces the values with a copy of values, which must have
// the current length.
func (l *Lookup[T]) SetValues(values []T) error {
	if len(values) != len(l.values) {
		return ErrorValidation(fmt.Sprintf("lookup %s: length %d does not match %d", l.name, len(values), len(l.values)))
	}
	if err := checkDistinct(l.name, values, l.missingPtr()); err != nil {
		return err
	}
	copy(l.values, values)
	return nil
}

// IndexOf returns the index holding v.
func (l *Lookup[T]) IndexOf(v T) (int, bool) {
	for i, x := range l.values {
		if same(x, v) {
			return i, true
		}
	}
	return -1, false
}

// Mapping maps each value other than the missing value to its index.
// NaN has no usable map key and is left out.
func (l *Lookup[T]) Mapping() map[T]int {
	missing := l.missingPtr()
	out := make(map[T]int, len(l.values))
	for i, v := range l.values {
		if isNaN(v) || (missing != nil && v == *missing) {
			continue
		}
		out[v] = i
	}
	return out
}

func (l *Lookup[T]) AnyMapping() map[any]int {
	out := make(map[any]int, len(l.values))
	for v, i := range l.Mapping() {
		out[v] = i
	}
	return out
}

func (l *Lookup[T]) Payload() any { return append([]T(nil), l.values...) }

func (l *Lookup[T]) IsDataModified() bool {
	return digest(l.values) != l.baseline
}

func (l *Lookup[T]) resetBaseline() {
	l.baseline = digest(l.values)
}

// Transfer writes the lookup into target: attributes first, then the
// values unless target overlays the live dataset the lookup was read
// from and no value changed.
func (l *Lookup[T]) Transfer(target *tree.MutableDataset) error {
	if err := checkDistinct(l.name, l.values, l.missingPtr()); err != nil {
		return err
	}
	return l.transfer(target, l.IsDataModified(), func() (any, []int) {
		return l.Payload(), []int{len(l.values)}
	})
}

// LookupFromDataset builds a lookup from a one-dimensional dataset. The
// element type follows the dataset's datatype and the NA attribute
// becomes the missing value.
func LookupFromDataset(ds tree.Dataset) (AnyLookup, error) {
	kind, ok := KindFromDatatype(ds.Datatype())
	if !ok {
		return nil, ErrorValidation(fmt.Sprintf("dataset %s has unsupported datatype %s", ds.Name(), ds.Datatype()))
	}
	if shape := ds.Shape(); len(shape) != 1 {
		return nil, ErrorValidation(fmt.Sprintf("dataset %s has %d dimensions, a lookup needs 1", ds.Name(), len(shape)))
	}
	switch kind {
	case KindInt8:
		return lookupFrom[int8](ds)
	case KindInt16:
		return lookupFrom[int16](ds)
	case KindInt32:
		return lookupFrom[int32](ds)
	case KindInt64:
		return lookupFrom[int64](ds)
	case KindFloat32:
		return lookupFrom[float32](ds)
	case KindFloat64:
		return lookupFrom[float64](ds)
	default:
		return lookupFrom[string](ds)
	}
}

func lookupFrom[T Element](ds tree.Dataset) (*Lookup[T], error) {
	values, err := datasetPayload[T](ds)
	if err != nil {
		return nil, err
	}
	attrs := ds.Attributes()
	missing, err := missingFrom[T](ds, attrs)
	if err != nil {
		return nil, err
	}
	l, err := newLookup(tree.Base(ds.Name()), values, missing)
	if err != nil {
		return nil, err
	}
	if err := l.copyAttributes(attrs); err != nil {
		return nil, err
	}
	l.origin = ds
	return l, nil
}

// LookupOf returns the lookup called name in f as a Lookup[T].
func LookupOf[T Element](f *File, name string) (*Lookup[T], error) {
	l, err := f.Lookup(name)
	if err != nil {
		return nil, err
	}
	tl, ok := l.(*Lookup[T])
	if !ok {
		return nil, ErrorValidation(fmt.Sprintf("lookup %s holds %s, not %s", name, l.Kind(), KindOf[T]()))
	}
	return tl, nil
}
