package filter

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/message"
)

// Fletcher32 verifies the checksum the fletcher32 filter (ID 3) appends
// to each chunk. Writers never add it, so it only decodes.
type Fletcher32 struct{}

func NewFletcher32([]uint32) *Fletcher32 { return &Fletcher32{} }

func (f *Fletcher32) ID() uint16 { return message.FilterFletcher32 }

// Decode strips the trailing little-endian checksum once it matches.
func (f *Fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: %d bytes cannot hold a checksum", len(input))
	}
	data := input[:len(input)-4]
	stored := binary.LittleEndian.Uint32(input[len(data):])
	if sum := binpkg.Fletcher32(data); sum != stored {
		return nil, fmt.Errorf("fletcher32: checksum 0x%08x, computed 0x%08x", stored, sum)
	}
	return data, nil
}
