// Package binary reads and writes the fixed-width integers and
// variable-width file addresses that HDF5 metadata is built from.
package binary

import "encoding/binary"

// Config sets the byte order and the widths of file offsets and lengths,
// which the superblock fixes for a whole file.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// DefaultConfig is the little-endian, 8-byte layout used to read a
// superblock and to write new files.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// sizes is shared by Reader and Writer.
type sizes struct {
	order  binary.ByteOrder
	offset int
	length int
}

func newSizes(cfg Config) sizes {
	return sizes{order: cfg.ByteOrder, offset: cfg.OffsetSize, length: cfg.LengthSize}
}

func (s sizes) OffsetSize() int             { return s.offset }
func (s sizes) LengthSize() int             { return s.length }
func (s sizes) ByteOrder() binary.ByteOrder { return s.order }

func (s sizes) decode(buf []byte) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(s.order.Uint16(buf))
	case 4:
		return uint64(s.order.Uint32(buf))
	case 8:
		return s.order.Uint64(buf)
	}
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

func (s sizes) encode(buf []byte, v uint64) {
	switch len(buf) {
	case 1:
		buf[0] = uint8(v)
	case 2:
		s.order.PutUint16(buf, uint16(v))
	case 4:
		s.order.PutUint32(buf, uint32(v))
	case 8:
		s.order.PutUint64(buf, v)
	default:
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
	}
}

// undefined is the all-ones address HDF5 uses for "not allocated".
func undefined(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*width) - 1
}
