package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/message"
)

// Layout reads all of a dataset's bytes.
type Layout interface {
	Read() ([]byte, error)
}

// New returns the reader for a data layout message.
func New(lm *message.DataLayout, space *message.Dataspace, dt *message.Datatype, fp *message.FilterPipeline, r *binary.Reader) (Layout, error) {
	if lm == nil {
		return nil, fmt.Errorf("nil layout message")
	}
	size := space.NumElements() * uint64(dt.Size)

	switch lm.Class {
	case message.LayoutCompact:
		return compact(lm.CompactData), nil
	case message.LayoutContiguous:
		n := lm.Size
		if n == 0 {
			n = size
		}
		return &contiguous{r: r, addr: lm.Address, size: n}, nil
	case message.LayoutChunked:
		return newChunked(lm, space, dt, fp, r, size)
	}
	return nil, fmt.Errorf("unsupported layout class %d", lm.Class)
}

type compact []byte

func (c compact) Read() ([]byte, error) {
	return append([]byte(nil), c...), nil
}

type contiguous struct {
	r    *binary.Reader
	addr uint64
	size uint64
}

func (c *contiguous) Read() ([]byte, error) {
	if c.size == 0 {
		return []byte{}, nil
	}
	if c.r.IsUndefinedOffset(c.addr) {
		return nil, fmt.Errorf("contiguous data not allocated")
	}
	data, err := c.r.At(int64(c.addr)).ReadBytes(int(c.size))
	if err != nil {
		return nil, fmt.Errorf("reading contiguous data: %w", err)
	}
	return data, nil
}
