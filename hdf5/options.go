package hdf5

import (
	"github.com/robert-malhotra/go-omx/internal/filter"
	"github.com/robert-malhotra/go-omx/internal/message"
)

// Compression selects the codec applied to dataset data.
type Compression uint16

const (
	NoCompression Compression = 0
	Deflate       Compression = Compression(message.FilterDeflate)
	Zstd          Compression = Compression(message.FilterZstd)
	LZ4           Compression = Compression(message.FilterLZ4)
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case Deflate:
		return "deflate"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ParseCompression maps a codec name to a Compression.
func ParseCompression(s string) (Compression, bool) {
	for _, c := range []Compression{NoCompression, Deflate, Zstd, LZ4} {
		if c.String() == s {
			return c, true
		}
	}
	if s == "" {
		return NoCompression, true
	}
	return NoCompression, false
}

// DatasetOption configures dataset creation options.
type DatasetOption func(*datasetOptions)

type datasetOptions struct {
	compression Compression
	level       int
	shuffle     bool
	attributes  map[string]any
}

func defaultDatasetOptions() *datasetOptions {
	return &datasetOptions{level: 6, attributes: map[string]any{}}
}

// encoders builds the write pipeline for elements of elemSize bytes.
func (o *datasetOptions) encoders(elemSize uint32) []filter.Encoder {
	var out []filter.Encoder
	if o.compression == NoCompression {
		return nil
	}
	if o.shuffle {
		out = append(out, filter.NewShuffle([]uint32{elemSize}))
	}
	switch o.compression {
	case Deflate:
		out = append(out, filter.NewDeflate([]uint32{uint32(o.level)}))
	case Zstd:
		out = append(out, filter.NewZstd([]uint32{uint32(o.level)}))
	case LZ4:
		out = append(out, filter.NewLZ4(nil))
	}
	return out
}

// WithCompression compresses the dataset with c. level applies to
// deflate (1-9) and is recorded for zstd.
func WithCompression(c Compression, level int) DatasetOption {
	return func(o *datasetOptions) {
		o.compression = c
		if level > 0 && level <= 9 {
			o.level = level
		}
	}
}

// WithShuffle enables the shuffle filter ahead of compression.
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.shuffle = true
	}
}

// WithAttributes adds every entry of attrs as an attribute.
func WithAttributes(attrs map[string]any) DatasetOption {
	return func(o *datasetOptions) {
		for k, v := range attrs {
			o.attributes[k] = v
		}
	}
}
