package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/robert-malhotra/go-omx/internal/message"
)

const lz4DefaultBlockSize = 1 << 30

// LZ4 implements the registered lz4 filter (ID 32004).
//
// Encoded layout, all integers big-endian:
//
//	uint64 decoded size
//	uint32 block size
//	per block: uint32 compressed size, then the block
//
// A block whose compressed size equals its decoded size is stored raw.
type LZ4 struct {
	blockSize int
}

// NewLZ4 creates an lz4 filter.
// Client data: [0] = block size in bytes (default 1 GiB)
func NewLZ4(clientData []uint32) *LZ4 {
	f := &LZ4{blockSize: lz4DefaultBlockSize}
	if len(clientData) > 0 && clientData[0] > 0 {
		f.blockSize = int(clientData[0])
	}
	return f
}

func (f *LZ4) ID() uint16 {
	return message.FilterLZ4
}

// ClientData returns the parameters stored in the pipeline message.
func (f *LZ4) ClientData() []uint32 {
	if f.blockSize == lz4DefaultBlockSize {
		return nil
	}
	return []uint32{uint32(f.blockSize)}
}

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < 12 {
		return nil, fmt.Errorf("lz4: input too short for header")
	}
	total := binary.BigEndian.Uint64(input[0:8])
	blockSize := int(binary.BigEndian.Uint32(input[8:12]))
	if blockSize <= 0 {
		return nil, fmt.Errorf("lz4: invalid block size %d", blockSize)
	}

	out := make([]byte, total)
	pos, in := 0, input[12:]
	for pos < len(out) {
		if len(in) < 4 {
			return nil, fmt.Errorf("lz4: truncated block header at %d", pos)
		}
		n := int(binary.BigEndian.Uint32(in[0:4]))
		in = in[4:]
		if n > len(in) {
			return nil, fmt.Errorf("lz4: truncated block at %d", pos)
		}
		want := min(blockSize, len(out)-pos)
		if n == want {
			copy(out[pos:], in[:n])
		} else {
			read, err := lz4.UncompressBlock(in[:n], out[pos:pos+want])
			if err != nil {
				return nil, fmt.Errorf("lz4 decompress: %w", err)
			}
			if read != want {
				return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, want)
			}
		}
		in = in[n:]
		pos += want
	}
	return out, nil
}

func (f *LZ4) Encode(input []byte) ([]byte, error) {
	out := make([]byte, 12, 12+len(input)/2)
	binary.BigEndian.PutUint64(out[0:8], uint64(len(input)))
	binary.BigEndian.PutUint32(out[8:12], uint32(f.blockSize))

	for pos := 0; pos < len(input); pos += f.blockSize {
		block := input[pos:min(pos+f.blockSize, len(input))]
		dst := make([]byte, lz4.CompressBlockBound(len(block)))
		written, err := lz4.CompressBlock(block, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// Incompressible blocks are stored as is.
		if written == 0 || written >= len(block) {
			dst, written = block, len(block)
		}
		out = binary.BigEndian.AppendUint32(out, uint32(written))
		out = append(out, dst[:written]...)
	}
	return out, nil
}
