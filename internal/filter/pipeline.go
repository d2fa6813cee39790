package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-omx/internal/message"
)

// Pipeline is an ordered list of filters.
type Pipeline struct {
	filters []Filter
}

// NewPipeline builds the read pipeline for a filter pipeline message. A
// nil message gives an empty pipeline.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for _, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, err
		}
		if f != nil {
			p.filters = append(p.filters, f)
		}
	}
	return p, nil
}

// NewEncodingPipeline builds a write pipeline from encoders in the order
// they are applied.
func NewEncodingPipeline(encoders ...Encoder) *Pipeline {
	p := &Pipeline{filters: make([]Filter, 0, len(encoders))}
	for _, e := range encoders {
		p.filters = append(p.filters, e)
	}
	return p
}

func (p *Pipeline) Empty() bool { return len(p.filters) == 0 }

// Decode undoes the pipeline, skipping filter i when bit i of mask is set.
func (p *Pipeline) Decode(input []byte, mask uint32) ([]byte, error) {
	data := input
	for i := len(p.filters) - 1; i >= 0; i-- {
		if mask&(1<<i) != 0 {
			continue
		}
		var err error
		if data, err = p.filters[i].Decode(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Encode applies every filter in order. It fails if a filter only decodes.
func (p *Pipeline) Encode(input []byte) ([]byte, error) {
	data := input
	for _, f := range p.filters {
		enc, ok := f.(Encoder)
		if !ok {
			return nil, fmt.Errorf("filter %d cannot encode", f.ID())
		}
		var err error
		if data, err = enc.Encode(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Message describes the pipeline for a dataset's object header.
func (p *Pipeline) Message() *message.FilterPipeline {
	infos := make([]message.FilterInfo, len(p.filters))
	for i, f := range p.filters {
		infos[i].ID = f.ID()
		if f.ID() >= 256 {
			infos[i].Name = names[f.ID()]
		}
		if cd, ok := f.(clientData); ok {
			infos[i].ClientData = cd.ClientData()
		}
	}
	return message.NewFilterPipeline(infos...)
}
