package hdf5

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/dtype"
	"github.com/robert-malhotra/go-omx/internal/message"
	"github.com/robert-malhotra/go-omx/internal/object"
)

// Attribute is one attribute of a group or dataset.
type Attribute struct {
	msg    *message.Attribute
	reader *binary.Reader
}

func (a *Attribute) Name() string { return a.msg.Name }

// Value decodes the attribute. Integers keep their stored width and
// signedness, floats become float32 or float64 and both string classes
// become string. A scalar dataspace yields one value and a simple one a
// slice. Other datatypes fail with ErrUnsupported.
func (a *Attribute) Value() (any, error) {
	dt, space := a.msg.Datatype, a.msg.Dataspace
	if _, err := dtype.ElemType(dt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	vals, err := dtype.Decode(dt, a.msg.Data, space.NumElements(), a.reader)
	if err != nil {
		return nil, err
	}
	if rv := reflect.ValueOf(vals); space.IsScalar() && rv.Len() == 1 {
		return rv.Index(0).Interface(), nil
	}
	return vals, nil
}

func attrNames(h *object.Header) []string {
	var names []string
	for _, msg := range h.GetMessages(message.TypeAttribute) {
		names = append(names, msg.(*message.Attribute).Name)
	}
	return names
}

func findAttr(h *object.Header, name string, f *File) *Attribute {
	for _, msg := range h.GetMessages(message.TypeAttribute) {
		if attr := msg.(*message.Attribute); attr.Name == name {
			return &Attribute{msg: attr, reader: f.reader}
		}
	}
	return nil
}

// decodeAttrs decodes every attribute in h. The first attribute that
// cannot be decoded aborts with an error naming it.
func decodeAttrs(h *object.Header, f *File) (map[string]any, error) {
	out := map[string]any{}
	for _, msg := range h.GetMessages(message.TypeAttribute) {
		a := &Attribute{msg: msg.(*message.Attribute), reader: f.reader}
		v, err := a.Value()
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name(), err)
		}
		out[a.Name()] = v
	}
	return out, nil
}

// attributeMessages encodes attrs in sorted key order so that rewritten
// headers are deterministic.
func attributeMessages(attrs map[string]any) ([]*message.Attribute, error) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	msgs := make([]*message.Attribute, 0, len(keys))
	for _, k := range keys {
		msg, err := createAttributeMessage(k, attrs[k])
		if err != nil {
			return nil, fmt.Errorf("creating attribute %q: %w", k, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
