package hdf5

import (
	"errors"
)

// ErrStopWalk can be returned from a walk callback to stop walking
// without an error.
var ErrStopWalk = errors.New("walk stopped")

// WalkFunc is called for each object during traversal. obj is a *Group,
// a *Dataset, or the Link itself for members that are neither (soft and
// external links, named datatypes, unknown objects). err is any error
// met opening the object; returning it stops the walk.
type WalkFunc func(path string, obj any, err error) error

// Walk visits g and everything below it, parents before children, in
// storage order.
//
// Example:
//
//	hdf5.Walk(f.Root(), func(path string, obj any, err error) error {
//	    if err != nil {
//	        return err
//	    }
//	    if ds, ok := obj.(*hdf5.Dataset); ok {
//	        fmt.Println(path, ds.Shape())
//	    }
//	    return nil
//	})
func Walk(g *Group, fn WalkFunc) error {
	err := walkGroup(g, fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g, nil); err != nil {
		return err
	}
	links, err := g.Links()
	if err != nil {
		return fn(g.Path(), g, err)
	}

	for _, l := range links {
		childPath := joinPath(g.Path(), l.Name)
		if l.Kind != HardLink {
			if err := fn(childPath, l, nil); err != nil {
				return err
			}
			continue
		}

		kind, err := g.Kind(l)
		if err != nil {
			if err := fn(childPath, nil, err); err != nil {
				return err
			}
			continue
		}
		switch kind {
		case KindGroup:
			child, err := g.OpenGroup(l.Name)
			if err != nil {
				if err := fn(childPath, nil, err); err != nil {
					return err
				}
				continue
			}
			if err := walkGroup(child, fn); err != nil {
				return err
			}
		case KindDataset:
			var obj any
			ds, err := g.OpenDataset(l.Name)
			if err == nil {
				obj = ds
			}
			if err := fn(childPath, obj, err); err != nil {
				return err
			}
		default:
			if err := fn(childPath, l, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// AttrInfo contains information about an attribute during walking.
type AttrInfo struct {
	// Path is the full attribute path (e.g., "/data/m@NA")
	Path string

	// ObjectPath is the path to the object containing this attribute
	ObjectPath string

	// ObjectType is "group" or "dataset"
	ObjectType string

	Name string
	Attr *Attribute

	// Value is nil when Err is set.
	Value any
	Err   error
}

// WalkAttrsFunc is the callback function type for WalkAttrs.
type WalkAttrsFunc func(info AttrInfo) error

// WalkAttrs visits every attribute of every group and dataset in the
// file. Objects that cannot be opened are skipped.
func (f *File) WalkAttrs(fn WalkAttrsFunc) error {
	if f.closed {
		return ErrClosed
	}
	return Walk(f.root, func(p string, obj any, err error) error {
		if err != nil {
			return nil
		}
		var kind string
		var attrs func(string) *Attribute
		var names []string
		switch o := obj.(type) {
		case *Group:
			kind, attrs, names = "group", o.Attr, o.Attrs()
		case *Dataset:
			kind, attrs, names = "dataset", o.Attr, o.Attrs()
		default:
			return nil
		}
		for _, name := range names {
			info := AttrInfo{
				Path:       attrPath(p, name),
				ObjectPath: p,
				ObjectType: kind,
				Name:       name,
				Attr:       attrs(name),
			}
			if info.Attr != nil {
				info.Value, info.Err = info.Attr.Value()
			}
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}
