package filter

import "github.com/robert-malhotra/go-omx/internal/message"

// Shuffle is the byte shuffle filter (ID 2). Encoding stores byte 0 of
// every element, then byte 1, and so on. Bytes past the last whole
// element are left in place.
type Shuffle struct {
	size int
}

// NewShuffle reads the element size from cd[0], defaulting to 1.
func NewShuffle(cd []uint32) *Shuffle {
	if len(cd) == 0 || cd[0] == 0 {
		return &Shuffle{size: 1}
	}
	return &Shuffle{size: int(cd[0])}
}

func (f *Shuffle) ID() uint16           { return message.FilterShuffle }
func (f *Shuffle) ClientData() []uint32 { return []uint32{uint32(f.size)} }

func (f *Shuffle) Decode(input []byte) ([]byte, error) {
	return f.transpose(input, false), nil
}

func (f *Shuffle) Encode(input []byte) ([]byte, error) {
	return f.transpose(input, true), nil
}

func (f *Shuffle) transpose(input []byte, encode bool) []byte {
	n := len(input) / f.size
	if f.size <= 1 || n == 0 {
		return input
	}
	out := make([]byte, len(input))
	for i := range n {
		for j := range f.size {
			if encode {
				out[j*n+i] = input[i*f.size+j]
			} else {
				out[i*f.size+j] = input[j*n+i]
			}
		}
	}
	copy(out[n*f.size:], input[n*f.size:])
	return out
}
