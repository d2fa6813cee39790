package object

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/message"
)

var (
	signatureV2   = []byte("OHDR")
	signatureCont = []byte("OCHK")
)

const maxContinuations = 64

// v2 header flags
const (
	flagChunkSizeWidth = 0x03
	flagTrackOrder     = 0x04
	flagPhaseChange    = 0x10
	flagTimes          = 0x20
)

// Read parses the object header at addr.
func Read(r *binary.Reader, addr uint64) (*Header, error) {
	hr := r.At(int64(addr))
	peek, err := hr.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %d: %w", addr, err)
	}
	h := &Header{Address: addr}
	switch {
	case bytes.Equal(peek, signatureV2):
		err = readV2(hr, h)
	case peek[0] == 1:
		err = readV1(hr, h)
	default:
		err = fmt.Errorf("%w: no header at %d", ErrInvalidHeader, addr)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// readV1 parses a version 1 prefix: version, reserved, message count,
// reference count and message bytes, padded to 8.
func readV1(r *binary.Reader, h *Header) error {
	prefix, err := r.ReadBytes(12)
	if err != nil {
		return err
	}
	h.Version = prefix[0]
	size := int64(r.ByteOrder().Uint32(prefix[8:]))
	r.Skip(4)
	budget := maxContinuations
	return readV1Messages(r, r.Pos()+size, h, &budget)
}

func readV1Messages(r *binary.Reader, end int64, h *Header, budget *int) error {
	for r.Pos()+8 <= end {
		fields, err := r.ReadBytes(8)
		if err != nil {
			return err
		}
		typ := message.Type(r.ByteOrder().Uint16(fields))
		size := int(r.ByteOrder().Uint16(fields[2:]))
		data, err := r.ReadBytes(size)
		if err != nil {
			return err
		}
		r.Align(8)
		if typ != message.TypeObjectHeaderContinuation {
			h.add(typ, data, fields[4], r)
			continue
		}
		cont, err := continuation(data, r, budget)
		if err != nil {
			return err
		}
		if err := readV1Messages(r.At(int64(cont.Offset)), int64(cont.Offset+cont.Length), h, budget); err != nil {
			return err
		}
	}
	return nil
}

func readV2(r *binary.Reader, h *Header) error {
	start := r.Pos()
	r.Skip(4)
	fields, err := r.ReadBytes(2)
	if err != nil {
		return err
	}
	if fields[0] != 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, fields[0])
	}
	h.Version, h.Flags = fields[0], fields[1]
	if h.Flags&flagTimes != 0 {
		r.Skip(16)
	}
	if h.Flags&flagPhaseChange != 0 {
		r.Skip(4)
	}
	size, err := r.ReadUintN(1 << (h.Flags & flagChunkSizeWidth))
	if err != nil {
		return err
	}
	end := r.Pos() + int64(size)
	if err := verify(r.At(start), end-start); err != nil {
		return err
	}
	budget := maxContinuations
	return readV2Messages(r, end, h, &budget)
}

func readV2Messages(r *binary.Reader, end int64, h *Header, budget *int) error {
	headerLen := int64(4)
	if h.Flags&flagTrackOrder != 0 {
		headerLen += 2
	}
	for r.Pos()+headerLen <= end {
		fields, err := r.ReadBytes(4)
		if err != nil {
			return err
		}
		typ := message.Type(fields[0])
		size := int(r.ByteOrder().Uint16(fields[1:]))
		if h.Flags&flagTrackOrder != 0 {
			r.Skip(2)
		}
		data, err := r.ReadBytes(size)
		if err != nil {
			return err
		}
		if typ != message.TypeObjectHeaderContinuation {
			h.add(typ, data, fields[3], r)
			continue
		}
		cont, err := continuation(data, r, budget)
		if err != nil {
			return err
		}
		cr := r.At(int64(cont.Offset))
		sig, err := cr.ReadBytes(4)
		if err != nil {
			return err
		}
		if !bytes.Equal(sig, signatureCont) {
			return fmt.Errorf("%w: bad continuation block at %d", ErrInvalidHeader, cont.Offset)
		}
		blockEnd := int64(cont.Offset+cont.Length) - 4
		if err := verify(r.At(int64(cont.Offset)), blockEnd-int64(cont.Offset)); err != nil {
			return err
		}
		if err := readV2Messages(cr, blockEnd, h, budget); err != nil {
			return err
		}
	}
	return nil
}

func continuation(data []byte, r *binary.Reader, budget *int) (*message.Continuation, error) {
	if *budget--; *budget < 0 {
		return nil, fmt.Errorf("%w: too many continuation blocks", ErrInvalidHeader)
	}
	return message.ParseContinuation(data, r)
}

// add appends a parsed message. NIL messages are padding, and messages
// that fail to parse are skipped so one odd attribute does not hide the
// rest of the object.
func (h *Header) add(typ message.Type, data []byte, flags uint8, r *binary.Reader) {
	if typ == message.TypeNIL {
		return
	}
	msg, err := message.Parse(typ, data, flags, r)
	if err != nil {
		return
	}
	h.Messages = append(h.Messages, msg)
}

// verify checks the lookup3 checksum that follows n bytes at r.
func verify(r *binary.Reader, n int64) error {
	buf, err := r.ReadBytes(int(n) + 4)
	if err != nil {
		return err
	}
	if r.ByteOrder().Uint32(buf[n:]) != binary.Lookup3Checksum(buf[:n]) {
		return ErrChecksumMismatch
	}
	return nil
}
