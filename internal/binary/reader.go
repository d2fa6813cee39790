package binary

import (
	"errors"
	"io"
)

// Reader decodes values from an io.ReaderAt at a tracked position.
// Readers derived with At share the source but not the position.
type Reader struct {
	sizes
	r   io.ReaderAt
	pos int64
}

func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{sizes: newSizes(cfg), r: r}
}

// At returns a reader over the same source positioned at off.
func (r *Reader) At(off int64) *Reader {
	return &Reader{sizes: r.sizes, r: r.r, pos: off}
}

// WithSizes returns a copy of r using new offset and length widths.
func (r *Reader) WithSizes(offsetSize, lengthSize int) *Reader {
	s := r.sizes
	s.offset, s.length = offsetSize, lengthSize
	return &Reader{sizes: s, r: r.r, pos: r.pos}
}

func (r *Reader) Pos() int64 { return r.pos }

func (r *Reader) Skip(n int64) { r.pos += n }

// Align moves to the next multiple of n.
func (r *Reader) Align(n int64) {
	if n > 1 && r.pos%n != 0 {
		r.pos += n - r.pos%n
	}
}

// Peek reads n bytes without moving.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	got, err := r.r.ReadAt(buf, r.pos)
	if got == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf, err := r.Peek(n)
	if err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

// ReadUintN reads an n-byte unsigned integer.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return r.decode(buf), nil
}

// ReadOffset reads a file address.
func (r *Reader) ReadOffset() (uint64, error) { return r.ReadUintN(r.offset) }

// ReadLength reads a length field.
func (r *Reader) ReadLength() (uint64, error) { return r.ReadUintN(r.length) }

// IsUndefinedOffset reports whether addr is the undefined address for
// the reader's offset width.
func (r *Reader) IsUndefinedOffset(addr uint64) bool {
	return addr == undefined(r.offset)
}
