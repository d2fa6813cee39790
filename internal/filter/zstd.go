package filter

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/robert-malhotra/go-omx/internal/message"
)

// The encoder and decoder are safe for concurrent use and expensive to
// build, so every filter instance shares them.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("filter: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("filter: zstd decoder initialization failed: " + err.Error())
	}
}

// Zstd implements the registered zstd filter (ID 32015). Each chunk is a
// single zstd frame.
type Zstd struct {
	level int
}

// NewZstd creates a zstd filter.
// Client data: [0] = compression level, informational only
func NewZstd(clientData []uint32) *Zstd {
	z := &Zstd{level: 3}
	if len(clientData) > 0 {
		z.level = int(clientData[0])
	}
	return z
}

func (f *Zstd) ID() uint16 {
	return message.FilterZstd
}

// ClientData returns the parameters stored in the pipeline message.
func (f *Zstd) ClientData() []uint32 {
	return []uint32{uint32(f.level)}
}

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

func (f *Zstd) Encode(input []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(input, nil), nil
}
