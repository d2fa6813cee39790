// Package filter implements the chunk filters of an HDF5 filter
// pipeline. Readers apply filters last to first and skip any filter whose
// bit is set in the chunk's filter mask. Writers apply them in order.
package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-omx/internal/message"
)

// Filter decodes one stage of a chunk.
type Filter interface {
	ID() uint16
	Decode(input []byte) ([]byte, error)
}

// Encoder is a filter that can also be applied on write.
type Encoder interface {
	Filter
	Encode(input []byte) ([]byte, error)
}

var constructors = map[uint16]func([]uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func(cd []uint32) Filter { return NewFletcher32(cd) },
	message.FilterZstd:       func(cd []uint32) Filter { return NewZstd(cd) },
	message.FilterLZ4:        func(cd []uint32) Filter { return NewLZ4(cd) },
}

var names = map[uint16]string{
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "nbit",
	message.FilterScaleOffset: "scaleoffset",
	message.FilterZstd:        "zstd",
	message.FilterLZ4:         "lz4",
}

// New builds the filter described by info. It returns nil without error
// for an optional filter this package does not implement.
func New(info message.FilterInfo) (Filter, error) {
	if build, ok := constructors[info.ID]; ok {
		return build(info.ClientData), nil
	}
	if info.IsOptional() {
		return nil, nil
	}
	if name, ok := names[info.ID]; ok {
		return nil, fmt.Errorf("%s filter (ID %d) is not supported", name, info.ID)
	}
	return nil, fmt.Errorf("unknown filter ID %d", info.ID)
}

// clientData is implemented by filters whose parameters are recorded in
// the pipeline message.
type clientData interface {
	ClientData() []uint32
}
