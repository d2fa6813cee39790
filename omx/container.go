package omx

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/robert-malhotra/go-omx/tree"
)

// MissingValueKey is the dataset attribute holding a container's
// missing value.
const MissingValueKey = "NA"

// Attributed is the attribute API shared by matrices and lookups.
type Attributed interface {
	Attribute(key string) (any, error)
	SetAttribute(key string, value any) error
	DeleteAttribute(key string) error
	HasAttribute(key string) bool
	AttributeKeys() []string
	Attributes() map[string]any
	TransferAttributes(target AttributeTarget) error
}

// container holds what Matrix and Lookup share: a name, attributes with
// a typed missing value, and the fingerprint taken when the payload was
// last known to match the backing store.
type container[T Element] struct {
	AttributedElement
	name     string
	baseline fingerprint

	// origin is the snapshot dataset the container was read from, nil
	// for containers built in memory.
	origin tree.Dataset
}

func checkName(name string) error {
	if name == "" {
		return ErrorValidation("name is empty")
	}
	if strings.Contains(name, "/") || name == "." || name == ".." {
		return ErrorValidation(fmt.Sprintf("name %q is not a plain dataset name", name), [2]string{"name", name})
	}
	return nil
}

func (c *container[T]) Name() string { return c.name }
func (c *container[T]) Kind() Kind   { return KindOf[T]() }

// SetAttribute stores value under key. The missing value key only
// accepts values that convert exactly to the element type.
func (c *container[T]) SetAttribute(key string, value any) error {
	if key != MissingValueKey {
		return c.AttributedElement.SetAttribute(key, value)
	}
	v, err := coerce[T](value)
	if err != nil {
		return ErrorValidation(fmt.Sprintf("missing value: %v", err), [2]string{"name", c.name})
	}
	return c.AttributedElement.SetAttribute(key, v)
}

// Missing returns the missing value, if one is set.
func (c *container[T]) Missing() (T, bool) {
	v, ok := c.attrs[MissingValueKey].(T)
	return v, ok
}

// MissingValue is Missing without the element type.
func (c *container[T]) MissingValue() (any, bool) {
	v, ok := c.Missing()
	if !ok {
		return nil, false
	}
	return v, true
}

func (c *container[T]) missingPtr() *T {
	if v, ok := c.Missing(); ok {
		return &v
	}
	return nil
}

// initMissing records missing unless a missing value is already present.
func (c *container[T]) initMissing(missing *T) error {
	if missing == nil || c.HasAttribute(MissingValueKey) {
		return nil
	}
	return c.SetAttribute(MissingValueKey, *missing)
}

// copyAttributes adds every attribute of attrs other than the missing
// value, in key order.
func (c *container[T]) copyAttributes(attrs map[string]any) error {
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		if k == MissingValueKey {
			continue
		}
		if err := c.SetAttribute(k, attrs[k]); err != nil {
			return err
		}
	}
	return nil
}

// transfer syncs attributes onto target and writes the payload unless
// target overlays the very snapshot this container was read from and
// the payload is unchanged since.
func (c *container[T]) transfer(target *tree.MutableDataset, modified bool, payload func() (any, []int)) error {
	if target == nil {
		return ErrorValidation("transfer target is nil", [2]string{"name", c.name})
	}
	if err := transferAttributes(c.attrs, target); err != nil {
		return ErrorValidation(err.Error(), [2]string{"name", c.name})
	}
	if !modified && c.origin != nil && target.Live() && target.Parent() == c.origin {
		return nil
	}
	data, shape := payload()
	if err := target.SetData(data, shape); err != nil {
		return ErrorValidation(err.Error(), [2]string{"name", c.name})
	}
	return nil
}

// datasetPayload reads ds and checks it holds elements of type T.
func datasetPayload[T Element](ds tree.Dataset) ([]T, error) {
	data, err := ds.Data()
	if err != nil {
		return nil, ErrorBackingStore("read", ds.Name(), err)
	}
	flat, ok := data.([]T)
	if !ok {
		return nil, ErrorValidation(fmt.Sprintf("dataset %s holds %T, want []%s", ds.Name(), data, KindOf[T]()))
	}
	return flat, nil
}

// missingFrom reads the missing value attribute of a dataset as T.
func missingFrom[T Element](ds tree.Dataset, attrs map[string]any) (*T, error) {
	na, ok := attrs[MissingValueKey]
	if !ok {
		return nil, nil
	}
	v, err := coerce[T](na)
	if err != nil {
		return nil, ErrorValidation(fmt.Sprintf("dataset %s: missing value: %v", ds.Name(), err))
	}
	return &v, nil
}
