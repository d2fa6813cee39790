package superblock

import (
	"encoding/binary"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

// NewSuperblock returns a version 3 superblock with 8-byte addresses.
func NewSuperblock() *Superblock {
	return &Superblock{Version: 3, OffsetSize: 8, LengthSize: 8}
}

// Size is the encoded size of a version 2 or 3 superblock.
func (sb *Superblock) Size() int {
	o := int(sb.OffsetSize)
	if o == 0 {
		o = 8
	}
	return 12 + 4*o + 4
}

// Write encodes sb as a version 2 or 3 superblock at the writer's
// position and returns the number of bytes written. An unset extension
// address is written as undefined.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	version := sb.Version
	if version < 2 {
		version = 2
	}
	o := int(sb.OffsetSize)
	ext := sb.ExtensionAddress
	if ext == 0 {
		ext = undefined(o)
	}

	buf := make([]byte, 0, sb.Size())
	buf = append(buf, Signature...)
	buf = append(buf, version, sb.OffsetSize, sb.LengthSize, sb.Flags)
	for _, v := range []uint64{sb.BaseAddress, ext, sb.EOFAddress, sb.RootGroupAddress} {
		buf = appendAddr(buf, v, o)
	}
	buf = binary.LittleEndian.AppendUint32(buf, binpkg.Lookup3Checksum(buf))

	if err := w.WriteBytes(buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

func appendAddr(buf []byte, v uint64, n int) []byte {
	for i := 0; i < n; i++ {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}

func undefined(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*n) - 1
}
