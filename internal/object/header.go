// Package object reads and writes HDF5 object headers, the message lists
// that describe every group and dataset in a file. Version 1 and 2
// headers are read; version 2 headers are written.
package object

import (
	"errors"

	"github.com/robert-malhotra/go-omx/internal/message"
)

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
)

// Header is a parsed object header with continuation blocks flattened
// into one message list.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8
	Messages []message.Message
}

// GetMessage returns the first message of type typ, or nil.
func (h *Header) GetMessage(typ message.Type) message.Message {
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			return msg
		}
	}
	return nil
}

// GetMessages returns every message of type typ in header order.
func (h *Header) GetMessages(typ message.Type) []message.Message {
	var out []message.Message
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			out = append(out, msg)
		}
	}
	return out
}

func first[T message.Message](h *Header, typ message.Type) T {
	var zero T
	if msg, ok := h.GetMessage(typ).(T); ok {
		return msg
	}
	return zero
}

func (h *Header) Dataspace() *message.Dataspace {
	return first[*message.Dataspace](h, message.TypeDataspace)
}

func (h *Header) Datatype() *message.Datatype {
	return first[*message.Datatype](h, message.TypeDatatype)
}

func (h *Header) DataLayout() *message.DataLayout {
	return first[*message.DataLayout](h, message.TypeDataLayout)
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	return first[*message.FilterPipeline](h, message.TypeFilterPipeline)
}
