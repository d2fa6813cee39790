package hdf5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-omx/internal/dtype"
	"github.com/robert-malhotra/go-omx/internal/filter"
	"github.com/robert-malhotra/go-omx/internal/message"
	"github.com/robert-malhotra/go-omx/internal/object"
)

// WriteDataset creates the dataset called name, replacing any member of
// that name. data is a flat row-major slice of int8, int16, int32, int64,
// uint8, uint16, uint32, uint64, float32, float64 or string, and shape
// gives its dimensions.
func (g *Group) WriteDataset(name string, data any, shape []uint64, opts ...DatasetOption) (*Dataset, error) {
	if err := g.checkWritable(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	options := defaultDatasetOptions()
	for _, opt := range opts {
		opt(options)
	}

	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: dataset data must be a slice, got %T", ErrUnsupported, data)
	}
	n := uint64(1)
	for _, d := range shape {
		n *= d
	}
	if len(shape) == 0 || n != uint64(val.Len()) {
		return nil, fmt.Errorf("%w: %d elements do not fill shape %v", ErrInvalidShape, val.Len(), shape)
	}

	datatype, err := datatypeFor(val)
	if err != nil {
		return nil, err
	}
	raw, err := dtype.Encode(datatype, val)
	if err != nil {
		return nil, fmt.Errorf("encoding data: %w", err)
	}

	msgs, err := g.file.storeRaw(raw, shape, datatype, options)
	if err != nil {
		return nil, err
	}
	return g.linkDataset(name, msgs, options.attributes)
}

// RewriteDatasetAttrs replaces the attributes of an existing dataset. The
// stored data is reused without rewriting it when its layout and datatype
// allow, and copied otherwise.
func (g *Group) RewriteDatasetAttrs(name string, attrs map[string]any) (*Dataset, error) {
	if err := g.checkWritable(); err != nil {
		return nil, err
	}
	ds, err := g.OpenDataset(name)
	if err != nil {
		return nil, err
	}

	if msgs, ok := ds.reusableMessages(); ok {
		return g.linkDataset(name, msgs, attrs)
	}

	payload, err := ds.ReadPayload()
	if err != nil {
		return nil, err
	}
	return g.WriteDataset(name, payload, ds.Shape(), WithAttributes(attrs))
}

// reusableMessages returns header messages that point at the dataset's
// existing storage, or false when the data has to be copied.
func (d *Dataset) reusableMessages() ([]message.Message, bool) {
	switch d.datatype.Class {
	case message.ClassFixedPoint, message.ClassFloatPoint, message.ClassString:
	default:
		return nil, false
	}
	if d.dataspace.IsScalar() {
		return nil, false
	}
	space := message.NewDataspace(d.dataspace.Dimensions, nil)

	lm := d.header.DataLayout()
	var layoutMsg *message.DataLayout
	switch {
	case lm.IsContiguous():
		layoutMsg = message.NewContiguousLayout(lm.Address, lm.Size)
	case lm.IsCompact():
		layoutMsg = message.NewCompactLayout(lm.CompactData)
	case lm.IsChunked() && lm.FilteredChunkSize > 0:
		layoutMsg = message.NewFilteredChunkLayout(d.dataspace.Dimensions, d.datatype.Size, lm.ChunkIndexAddr, lm.FilteredChunkSize)
	default:
		return nil, false
	}

	msgs := object.DatasetMessages(space, d.datatype, layoutMsg)
	if fp := d.header.FilterPipeline(); fp != nil {
		msgs = append(msgs, message.NewFilterPipeline(fp.Filters...))
	}
	return msgs, true
}

// storeRaw writes encoded data and returns the dataspace, datatype,
// layout and filter messages describing it.
func (f *File) storeRaw(raw []byte, shape []uint64, dt *message.Datatype, options *datasetOptions) ([]message.Message, error) {
	space := message.NewDataspace(shape, nil)
	if len(raw) == 0 {
		return object.DatasetMessages(space, dt, message.NewCompactLayout([]byte{})), nil
	}

	encoders := options.encoders(dt.Size)
	if len(encoders) == 0 {
		addr := f.allocate(int64(len(raw)))
		if err := f.writer.At(int64(addr)).WriteBytes(raw); err != nil {
			return nil, fmt.Errorf("writing data: %w", err)
		}
		return object.DatasetMessages(space, dt, message.NewContiguousLayout(addr, uint64(len(raw)))), nil
	}

	// Filtered data is stored as one chunk covering the whole dataset.
	pipeline := filter.NewEncodingPipeline(encoders...)
	encoded, err := pipeline.Encode(raw)
	if err != nil {
		return nil, fmt.Errorf("filtering data: %w", err)
	}
	addr := f.allocate(int64(len(encoded)))
	if err := f.writer.At(int64(addr)).WriteBytes(encoded); err != nil {
		return nil, fmt.Errorf("writing data: %w", err)
	}
	layoutMsg := message.NewFilteredChunkLayout(shape, dt.Size, addr, uint32(len(encoded)))
	return object.DatasetMessages(space, dt, layoutMsg, pipeline.Message()), nil
}

// linkDataset writes a dataset header from msgs plus attrs and links it
// into g under name.
func (g *Group) linkDataset(name string, msgs []message.Message, attrs map[string]any) (*Dataset, error) {
	attrMsgs, err := attributeMessages(attrs)
	if err != nil {
		return nil, err
	}
	for _, a := range attrMsgs {
		msgs = append(msgs, a)
	}

	addr, err := g.file.writeHeader(msgs, 0)
	if err != nil {
		return nil, fmt.Errorf("writing dataset header: %w", err)
	}
	if err := g.setLink(name, addr); err != nil {
		return nil, fmt.Errorf("adding link to parent: %w", err)
	}
	header, err := object.Read(g.file.reader, addr)
	if err != nil {
		return nil, err
	}
	return newDataset(g.file, joinPath(g.path, name), header)
}

// datatypeFor picks the stored datatype for a slice. Strings become
// fixed-length, NUL-terminated ASCII sized to the longest element.
func datatypeFor(val reflect.Value) (*message.Datatype, error) {
	if val.Type().Elem().Kind() == reflect.String {
		maxLen := 0
		for i := 0; i < val.Len(); i++ {
			maxLen = max(maxLen, len(val.Index(i).String()))
		}
		return message.NewStringDatatype(uint32(maxLen+1), message.PadNullTerm, message.CharsetASCII), nil
	}
	dt, err := dtype.ForElem(val.Type())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return dt, nil
}

// createAttributeMessage creates an attribute message from a name and value.
func createAttributeMessage(name string, value any) (*message.Attribute, error) {
	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return nil, fmt.Errorf("%w: nil attribute value", ErrUnsupported)
	}
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	switch {
	case val.Kind() == reflect.String:
		return createStringAttribute(name, val.String()), nil
	case val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.String:
		return createStringArrayAttribute(name, val)
	case val.Kind() == reflect.Slice && val.Len() == 0:
		return nil, fmt.Errorf("%w: empty attribute array", ErrUnsupported)
	}

	var space *message.Dataspace
	elemType := val.Type()
	if val.Kind() == reflect.Slice || val.Kind() == reflect.Array {
		space = message.NewDataspace([]uint64{uint64(val.Len())}, nil)
		elemType = elemType.Elem()
	} else {
		space = message.NewScalarDataspace()
	}

	datatype, err := dtype.ForElem(elemType)
	if err != nil {
		return nil, fmt.Errorf("%w: attribute type %v", ErrUnsupported, elemType)
	}
	data, err := dtype.Encode(datatype, val)
	if err != nil {
		return nil, fmt.Errorf("encoding attribute value: %w", err)
	}
	return message.NewAttribute(name, datatype, space, data), nil
}

// createStringAttribute creates an attribute with a fixed-length string value.
func createStringAttribute(name string, s string) *message.Attribute {
	strLen := len(s) + 1
	datatype := message.NewStringDatatype(uint32(strLen), message.PadNullTerm, message.CharsetASCII)
	data := make([]byte, strLen)
	copy(data, s)
	return message.NewAttribute(name, datatype, message.NewScalarDataspace(), data)
}

// createStringArrayAttribute creates an attribute with an array of fixed-length strings.
func createStringArrayAttribute(name string, val reflect.Value) (*message.Attribute, error) {
	n := val.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty string array", ErrUnsupported)
	}

	maxLen := 0
	for i := 0; i < n; i++ {
		maxLen = max(maxLen, len(val.Index(i).String()))
	}
	strLen := maxLen + 1
	datatype := message.NewStringDatatype(uint32(strLen), message.PadNullTerm, message.CharsetASCII)

	data := make([]byte, n*strLen)
	for i := 0; i < n; i++ {
		copy(data[i*strLen:], val.Index(i).String())
	}
	return message.NewAttribute(name, datatype, message.NewDataspace([]uint64{uint64(n)}, nil), data), nil
}
