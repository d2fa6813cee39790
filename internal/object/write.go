package object

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/message"
)

// MinGroupChunkSize pads group headers so a few links can be added
// without growing the header, the way h5py lays groups out.
const MinGroupChunkSize = 120

const messageHeaderLen = 4

// chunkSize returns the bytes used by msgs and the chunk size after
// padding to minChunk. A gap too small for a NIL message is widened.
func chunkSize(w *binary.Writer, msgs []message.Message, minChunk int) (used, chunk int) {
	for _, msg := range msgs {
		if s, ok := msg.(message.Serializable); ok {
			used += messageHeaderLen + s.SerializedSize(w)
		}
	}
	chunk = max(used, minChunk)
	if gap := chunk - used; gap > 0 && gap < messageHeaderLen {
		chunk = used + messageHeaderLen
	}
	return used, chunk
}

func sizeWidth(n int) int {
	switch {
	case n <= math.MaxUint8:
		return 1
	case n <= math.MaxUint16:
		return 2
	case n <= math.MaxUint32:
		return 4
	}
	return 8
}

// Size returns the encoded size of a version 2 header holding msgs.
func Size(w *binary.Writer, msgs []message.Message, minChunk int) int {
	_, chunk := chunkSize(w, msgs, minChunk)
	return len(signatureV2) + 2 + sizeWidth(chunk) + chunk + 4
}

// Write encodes msgs as a version 2 object header at the writer's
// position and returns the bytes written. Messages that cannot be
// serialized are dropped.
func Write(w *binary.Writer, msgs []message.Message, minChunk int) (int64, error) {
	used, chunk := chunkSize(w, msgs, minChunk)
	width := sizeWidth(chunk)

	buf := &memWriter{}
	bw := binary.NewWriter(buf, binary.Config{
		ByteOrder:  w.ByteOrder(),
		OffsetSize: w.OffsetSize(),
		LengthSize: w.LengthSize(),
	})
	if err := bw.WriteBytes(signatureV2); err != nil {
		return 0, err
	}
	if err := bw.WriteBytes([]byte{2, uint8(bits.TrailingZeros(uint(width)))}); err != nil {
		return 0, err
	}
	if err := bw.WriteUintN(uint64(chunk), width); err != nil {
		return 0, err
	}
	for _, msg := range msgs {
		s, ok := msg.(message.Serializable)
		if !ok {
			continue
		}
		size := s.SerializedSize(bw)
		if size > math.MaxUint16 {
			return 0, fmt.Errorf("%w: message type %d is %d bytes", ErrInvalidHeader, msg.Type(), size)
		}
		if err := bw.WriteUint8(uint8(msg.Type())); err != nil {
			return 0, err
		}
		if err := bw.WriteUint16(uint16(size)); err != nil {
			return 0, err
		}
		if err := bw.WriteUint8(0); err != nil {
			return 0, err
		}
		if err := s.Serialize(bw); err != nil {
			return 0, err
		}
	}
	if gap := chunk - used; gap > 0 {
		if err := bw.WriteUint8(uint8(message.TypeNIL)); err != nil {
			return 0, err
		}
		if err := bw.WriteUint16(uint16(gap - messageHeaderLen)); err != nil {
			return 0, err
		}
		if err := bw.WriteUint8(0); err != nil {
			return 0, err
		}
		if err := bw.WriteZeros(gap - messageHeaderLen); err != nil {
			return 0, err
		}
	}
	if err := bw.WriteUint32(binary.Lookup3Checksum(buf.buf)); err != nil {
		return 0, err
	}
	if err := w.WriteBytes(buf.buf); err != nil {
		return 0, err
	}
	return int64(len(buf.buf)), nil
}

type memWriter struct{ buf []byte }

func (m *memWriter) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	return copy(m.buf[off:], p), nil
}

// GroupMessages returns the messages of a new-style group holding links.
func GroupMessages(links []*message.Link) []message.Message {
	msgs := []message.Message{message.NewLinkInfo(), message.NewGroupInfo()}
	for _, l := range links {
		msgs = append(msgs, l)
	}
	return msgs
}

// DatasetMessages returns the messages of a dataset header.
func DatasetMessages(space *message.Dataspace, dt *message.Datatype, layout *message.DataLayout, extra ...message.Message) []message.Message {
	return append([]message.Message{space, dt, layout}, extra...)
}
