package omx

import (
	"fmt"

	"github.com/robert-malhotra/go-omx/tree"
)

// AnyMatrix is a Matrix of any element kind.
type AnyMatrix interface {
	Attributed
	Name() string
	Kind() Kind
	Shape() [2]int
	MissingValue() (any, bool)
	ClearMissingValue() error
	// Payload returns a flat, row-major copy of the data.
	Payload() any
	IsDataModified() bool
	Transfer(target *tree.MutableDataset) error

	resetBaseline()
}

// Matrix is a two-dimensional container of T.
type Matrix[T Element] struct {
	container[T]
	rows [][]T
}

// NewMatrix builds a matrix from a copy of rows. rows must be non-empty
// and rectangular. A non-nil missing value is recorded in the NA
// attribute.
func NewMatrix[T Element](name string, rows [][]T, missing *T) (*Matrix[T], error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := checkRows(rows); err != nil {
		return nil, err
	}
	cp := make([][]T, len(rows))
	for i, row := range rows {
		cp[i] = append([]T(nil), row...)
	}
	return newMatrix(name, cp, missing)
}

func newMatrix[T Element](name string, rows [][]T, missing *T) (*Matrix[T], error) {
	m := &Matrix[T]{container: container[T]{name: name}, rows: rows}
	if err := m.initMissing(missing); err != nil {
		return nil, err
	}
	m.resetBaseline()
	return m, nil
}

func checkRows[T Element](rows [][]T) error {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return ErrorValidation("matrix payload is empty")
	}
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return ErrorValidation(fmt.Sprintf("matrix row %d has %d columns, want %d", i, len(row), len(rows[0])))
		}
	}
	return nil
}

// Data returns the rows backing the matrix. Edits made through them are
// picked up by IsDataModified and written on save.
func (m *Matrix[T]) Data() [][]T { return m.rows }

func (m *Matrix[T]) Get(r, c int) T    { return m.rows[r][c] }
func (m *Matrix[T]) Set(r, c int, v T) { m.rows[r][c] = v }

// SetData replaces the payload with a copy of rows, which must have the
// current shape.
func (m *Matrix[T]) SetData(rows [][]T) error {
	if err := checkRows(rows); err != nil {
		return err
	}
	if got := [2]int{len(rows), len(rows[0])}; got != m.Shape() {
		return ErrorValidation(fmt.Sprintf("matrix %s: shape %v does not match %v", m.name, got, m.Shape()))
	}
	for i, row := range rows {
		m.rows[i] = append([]T(nil), row...)
	}
	return nil
}

func (m *Matrix[T]) Shape() [2]int {
	return [2]int{len(m.rows), len(m.rows[0])}
}

// SetMissingValue records v as the missing value, replacing any
// existing one.
func (m *Matrix[T]) SetMissingValue(v T) error {
	return m.SetAttribute(MissingValueKey, v)
}

// ClearMissingValue removes the missing value, if any.
func (m *Matrix[T]) ClearMissingValue() error {
	if !m.HasAttribute(MissingValueKey) {
		return nil
	}
	return m.DeleteAttribute(MissingValueKey)
}

func (m *Matrix[T]) flat() []T {
	shape := m.Shape()
	out := make([]T, 0, shape[0]*shape[1])
	for _, row := range m.rows {
		out = append(out, row...)
	}
	return out
}

func (m *Matrix[T]) Payload() any { return m.flat() }

// IsDataModified reports whether any element changed since the matrix
// was built or last saved.
func (m *Matrix[T]) IsDataModified() bool {
	return digest(m.rows...) != m.baseline
}

func (m *Matrix[T]) resetBaseline() {
	m.baseline = digest(m.rows...)
}

// Transfer writes the matrix into target: attributes first, then the
// payload unless target overlays the live dataset the matrix was read
// from and no element changed.
func (m *Matrix[T]) Transfer(target *tree.MutableDataset) error {
	if err := checkRows(m.rows); err != nil {
		return err
	}
	return m.transfer(target, m.IsDataModified(), func() (any, []int) {
		shape := m.Shape()
		return m.flat(), shape[:]
	})
}

// MatrixFromDataset builds a matrix from a two-dimensional dataset. The
// element type follows the dataset's datatype and the NA attribute
// becomes the missing value.
func MatrixFromDataset(ds tree.Dataset) (AnyMatrix, error) {
	kind, ok := KindFromDatatype(ds.Datatype())
	if !ok {
		return nil, ErrorValidation(fmt.Sprintf("dataset %s has unsupported datatype %s", ds.Name(), ds.Datatype()))
	}
	if shape := ds.Shape(); len(shape) != 2 {
		return nil, ErrorValidation(fmt.Sprintf("dataset %s has %d dimensions, a matrix needs 2", ds.Name(), len(shape)))
	}
	switch kind {
	case KindInt8:
		return matrixFrom[int8](ds)
	case KindInt16:
		return matrixFrom[int16](ds)
	case KindInt32:
		return matrixFrom[int32](ds)
	case KindInt64:
		return matrixFrom[int64](ds)
	case KindFloat32:
		return matrixFrom[float32](ds)
	case KindFloat64:
		return matrixFrom[float64](ds)
	default:
		return matrixFrom[string](ds)
	}
}

func matrixFrom[T Element](ds tree.Dataset) (*Matrix[T], error) {
	flat, err := datasetPayload[T](ds)
	if err != nil {
		return nil, err
	}
	shape := ds.Shape()
	if len(flat) != shape[0]*shape[1] || len(flat) == 0 {
		return nil, ErrorValidation(fmt.Sprintf("dataset %s has %d elements for shape %v", ds.Name(), len(flat), shape))
	}
	rows := make([][]T, shape[0])
	for i := range rows {
		rows[i] = flat[i*shape[1] : (i+1)*shape[1] : (i+1)*shape[1]]
	}

	attrs := ds.Attributes()
	missing, err := missingFrom[T](ds, attrs)
	if err != nil {
		return nil, err
	}
	m, err := newMatrix(tree.Base(ds.Name()), rows, missing)
	if err != nil {
		return nil, err
	}
	if err := m.copyAttributes(attrs); err != nil {
		return nil, err
	}
	m.origin = ds
	return m, nil
}

// MatrixOf returns the matrix called name in f as a Matrix[T].
func MatrixOf[T Element](f *File, name string) (*Matrix[T], error) {
	m, err := f.Matrix(name)
	if err != nil {
		return nil, err
	}
	tm, ok := m.(*Matrix[T])
	if !ok {
		return nil, ErrorValidation(fmt.Sprintf("matrix %s holds %s, not %s", name, m.Kind(), KindOf[T]()))
	}
	return tm, nil
}
