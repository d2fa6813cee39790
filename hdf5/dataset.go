package hdf5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-omx/internal/dtype"
	"github.com/robert-malhotra/go-omx/internal/layout"
	"github.com/robert-malhotra/go-omx/internal/message"
	"github.com/robert-malhotra/go-omx/internal/object"
)

// Dataset represents an HDF5 dataset.
type Dataset struct {
	file      *File
	path      string
	header    *object.Header
	dataspace *message.Dataspace
	datatype  *message.Datatype
	layout    layout.Layout
}

func newDataset(f *File, path string, header *object.Header) (*Dataset, error) {
	ds := &Dataset{
		file:      f,
		path:      path,
		header:    header,
		dataspace: header.Dataspace(),
		datatype:  header.Datatype(),
	}
	if ds.dataspace == nil {
		return nil, fmt.Errorf("dataset missing dataspace message")
	}
	if ds.datatype == nil {
		return nil, fmt.Errorf("dataset missing datatype message")
	}
	layoutMsg := header.DataLayout()
	if layoutMsg == nil {
		return nil, fmt.Errorf("dataset missing layout message")
	}

	var err error
	ds.layout, err = layout.New(layoutMsg, ds.dataspace, ds.datatype, header.FilterPipeline(), f.reader)
	if err != nil {
		return nil, fmt.Errorf("creating layout: %w", err)
	}
	return ds, nil
}

func (d *Dataset) Path() string { return d.path }

// Shape is nil for a scalar dataset.
func (d *Dataset) Shape() []uint64 {
	if d.dataspace.IsScalar() {
		return nil
	}
	return d.dataspace.Dimensions
}

// ElementType returns the Go type of the elements ReadPayload produces.
func (d *Dataset) ElementType() (reflect.Type, error) {
	return dtype.ElemType(d.datatype)
}

// Filters lists the IDs of the filters applied to the dataset's chunks.
func (d *Dataset) Filters() []uint16 {
	fp := d.header.FilterPipeline()
	if fp == nil {
		return nil
	}
	ids := make([]uint16, len(fp.Filters))
	for i, f := range fp.Filters {
		ids[i] = f.ID
	}
	return ids
}

// ReadPayload reads the whole dataset into a flat, row-major slice whose
// element type follows the stored datatype (see Attribute.Value).
func (d *Dataset) ReadPayload() (any, error) {
	if _, err := dtype.ElemType(d.datatype); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", d.path, ErrUnsupported, err)
	}
	n := d.dataspace.NumElements()
	var raw []byte
	if n > 0 {
		var err error
		if raw, err = d.layout.Read(); err != nil {
			return nil, fmt.Errorf("%s: reading data: %w", d.path, err)
		}
	}
	vals, err := dtype.Decode(d.datatype, raw, n, d.file.reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.path, err)
	}
	return vals, nil
}

func (d *Dataset) Attrs() []string                     { return attrNames(d.header) }
func (d *Dataset) Attr(name string) *Attribute         { return findAttr(d.header, name, d.file) }
func (d *Dataset) Attributes() (map[string]any, error) { return decodeAttrs(d.header, d.file) }
