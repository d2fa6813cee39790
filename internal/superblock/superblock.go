// Package superblock reads and writes the HDF5 superblock, the fixed
// record at the head of a file that locates the root group and sets the
// width of every file address.
package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
)

// Signature opens every HDF5 superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// A superblock may follow a user block, so it is searched for at these
// offsets in turn.
var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// Superblock holds the fields of a version 0 to 3 superblock that the
// rest of the package needs.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	Flags      uint8

	BaseAddress      uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// Set for version 0 and 1 files whose root entry caches its symbol
	// table in the scratch pad.
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	// FileOffset is where the signature was found.
	FileOffset int64
}

// Read finds and parses the superblock of r.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature))
	for _, off := range searchOffsets {
		n, err := r.ReadAt(sig, off)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if n < len(sig) {
			break
		}
		if !bytes.Equal(sig, Signature) {
			continue
		}
		sb, err := parse(binpkg.NewReader(r, binpkg.DefaultConfig()).At(off + int64(len(sig))))
		if err != nil {
			return nil, err
		}
		sb.FileOffset = off
		if sb.Version >= 2 {
			if err := verifyChecksum(r, sb); err != nil {
				return nil, err
			}
		}
		return sb, nil
	}
	return nil, ErrNotHDF5
}

func parse(r *binpkg.Reader) (*Superblock, error) {
	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	sb := &Superblock{Version: version}
	switch version {
	case 0, 1:
		// free-space version, root entry version, reserved, shared header version
		r.Skip(4)
		if sb.OffsetSize, err = r.ReadUint8(); err != nil {
			return nil, err
		}
		if sb.LengthSize, err = r.ReadUint8(); err != nil {
			return nil, err
		}
		// reserved, group K values, consistency flags
		r.Skip(9)
		if version == 1 {
			// indexed storage K and reserved
			r.Skip(4)
		}
	case 2, 3:
		fields, err := r.ReadBytes(3)
		if err != nil {
			return nil, err
		}
		sb.OffsetSize, sb.LengthSize, sb.Flags = fields[0], fields[1], fields[2]
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return nil, fmt.Errorf("%w: offset size %d, length size %d", ErrInvalidSuperblock, sb.OffsetSize, sb.LengthSize)
	}

	r = r.WithSizes(int(sb.OffsetSize), int(sb.LengthSize))
	if version >= 2 {
		for _, dst := range []*uint64{&sb.BaseAddress, &sb.ExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress} {
			if *dst, err = r.ReadOffset(); err != nil {
				return nil, err
			}
		}
		return sb, nil
	}

	var freeSpace, driver uint64
	for _, dst := range []*uint64{&sb.BaseAddress, &freeSpace, &sb.EOFAddress, &driver} {
		if *dst, err = r.ReadOffset(); err != nil {
			return nil, err
		}
	}
	return sb, readRootEntry(r, sb)
}

// readRootEntry parses the root group symbol table entry of a version 0
// or 1 superblock.
func readRootEntry(r *binpkg.Reader, sb *Superblock) error {
	// link name offset
	r.Skip(int64(sb.OffsetSize))
	addr, err := r.ReadOffset()
	if err != nil {
		return err
	}
	sb.RootGroupAddress = addr
	cacheType, err := r.ReadUint32()
	if err != nil {
		return err
	}
	r.Skip(4)
	if cacheType != 1 {
		return nil
	}
	if sb.RootGroupBTreeAddress, err = r.ReadOffset(); err != nil {
		return err
	}
	sb.RootGroupLocalHeapAddress, err = r.ReadOffset()
	return err
}

func verifyChecksum(r io.ReaderAt, sb *Superblock) error {
	n := sb.Size() - 4
	buf := make([]byte, sb.Size())
	if _, err := r.ReadAt(buf, sb.FileOffset); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if binary.LittleEndian.Uint32(buf[n:]) != binpkg.Lookup3Checksum(buf[:n]) {
		return fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
	}
	return nil
}

func validSize(n uint8) bool {
	return n == 2 || n == 4 || n == 8
}

// ReaderConfig returns the reader configuration the superblock implies.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}
