package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/robert-malhotra/go-omx/internal/message"
)

// Deflate is the zlib-framed deflate filter (ID 1).
type Deflate struct {
	level int
}

// NewDeflate reads the compression level from cd[0], defaulting to 6.
func NewDeflate(cd []uint32) *Deflate {
	if len(cd) == 0 {
		return &Deflate{level: 6}
	}
	return &Deflate{level: int(cd[0])}
}

func (f *Deflate) ID() uint16           { return message.FilterDeflate }
func (f *Deflate) ClientData() []uint32 { return []uint32{uint32(f.level)} }

func (f *Deflate) Decode(input []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return out, nil
}

func (f *Deflate) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("deflate level %d: %w", f.level, err)
	}
	_, err = zw.Write(input)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}
