package omx

import (
	"fmt"
	"maps"
	"slices"

	"github.com/facette/natsort"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/robert-malhotra/go-omx/tree"
)

// AttributeTarget is anything whose attributes can be brought in line
// with an AttributedElement: overlays in the tree package, and other
// AttributedElements.
type AttributeTarget interface {
	Attributes() map[string]any
	SetAttribute(key string, value any) error
	DeleteAttribute(key string) error
}

// AttributedElement is a string-keyed attribute map.
//
// Values are int8, int16, int32, int64, float32, float64 or string, or a
// non-empty slice of one of those. int and []int are stored as int64 and
// []int64.
type AttributedElement struct {
	attrs map[string]any
}

// NewAttributedElement returns an element holding a copy of attrs.
func NewAttributedElement(attrs map[string]any) (*AttributedElement, error) {
	a := &AttributedElement{}
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		if err := a.SetAttribute(k, attrs[k]); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *AttributedElement) Attribute(key string) (any, error) {
	v, ok := a.attrs[key]
	if !ok {
		return nil, ErrorNotFound("attribute", key)
	}
	return tree.CloneValue(v), nil
}

func (a *AttributedElement) SetAttribute(key string, value any) error {
	if key == "" {
		return ErrorValidation("attribute key is empty")
	}
	v, err := normalizeValue(value)
	if err != nil {
		return ErrorValidation(err.Error(), [2]string{"key", key})
	}
	if a.attrs == nil {
		a.attrs = map[string]any{}
	}
	a.attrs[key] = v
	return nil
}

func (a *AttributedElement) DeleteAttribute(key string) error {
	if _, ok := a.attrs[key]; !ok {
		return ErrorNotFound("attribute", key)
	}
	delete(a.attrs, key)
	return nil
}

func (a *AttributedElement) HasAttribute(key string) bool {
	_, ok := a.attrs[key]
	return ok
}

// AttributeKeys returns the keys in natural order.
func (a *AttributedElement) AttributeKeys() []string {
	keys := slices.Collect(maps.Keys(a.attrs))
	natsort.Sort(keys)
	return keys
}

// Attributes returns a copy of every attribute.
func (a *AttributedElement) Attributes() map[string]any {
	out := make(map[string]any, len(a.attrs))
	for k, v := range a.attrs {
		out[k] = tree.CloneValue(v)
	}
	return out
}

// TransferAttributes makes target's attributes equal to a's with the
// fewest mutations: keys only in target are deleted, differing shared
// keys are overwritten and keys only in a are added. Equal values are
// left alone. Applying it twice is the same as applying it once.
func (a *AttributedElement) TransferAttributes(target AttributeTarget) error {
	return transferAttributes(a.attrs, target)
}

func transferAttributes(source map[string]any, target AttributeTarget) error {
	current := target.Attributes()
	for _, k := range slices.Sorted(maps.Keys(current)) {
		if _, ok := source[k]; ok {
			continue
		}
		if err := target.DeleteAttribute(k); err != nil {
			return err
		}
	}
	for _, k := range slices.Sorted(maps.Keys(source)) {
		v := source[k]
		if old, ok := current[k]; ok && valuesEqual(old, v) {
			continue
		}
		if err := target.SetAttribute(k, v); err != nil {
			return err
		}
	}
	return nil
}

// valuesEqual compares attribute values deeply. NaN equals NaN, and
// values of different types are never equal.
func valuesEqual(a, b any) bool {
	return cmp.Equal(a, b, cmpopts.EquateNaNs())
}

// normalizeValue checks v against the attribute value set and returns the
// stored form.
func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case []int:
		if len(x) == 0 {
			return nil, fmt.Errorf("empty attribute array")
		}
		out := make([]int64, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out, nil
	case int8, int16, int32, int64, float32, float64, string:
		return x, nil
	case []int8, []int16, []int32, []int64, []float32, []float64, []string:
		if _, n := tree.DatatypeOf(x); n == 0 {
			return nil, fmt.Errorf("empty attribute array")
		}
		return tree.ClonePayload(x), nil
	case nil:
		return nil, fmt.Errorf("nil attribute value")
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", v)
	}
}
