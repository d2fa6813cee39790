package hdf5

import (
	"os"

	"github.com/robert-malhotra/go-omx/internal/alloc"
	binpkg "github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/object"
	"github.com/robert-malhotra/go-omx/internal/superblock"
)

// Create truncates or creates the file at path and writes an empty root
// group. New files use a version 3 superblock with 8-byte addresses and
// version 2 object headers.
func Create(path string) (*File, error) {
	osFile, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*File, error) {
		osFile.Close()
		os.Remove(path)
		return nil, err
	}

	sb := superblock.NewSuperblock()
	cfg := sb.ReaderConfig()
	writer := binpkg.NewWriter(osFile, cfg)

	rootMessages := object.GroupMessages(nil)
	sb.RootGroupAddress = uint64(sb.Size())
	eofAddr := sb.RootGroupAddress + uint64(object.Size(writer, rootMessages, object.MinGroupChunkSize))
	sb.EOFAddress = eofAddr

	if _, err := sb.Write(writer); err != nil {
		return fail(err)
	}
	if _, err := object.Write(writer.At(int64(sb.RootGroupAddress)), rootMessages, object.MinGroupChunkSize); err != nil {
		return fail(err)
	}

	f := &File{
		path:       path,
		file:       osFile,
		reader:     binpkg.NewReader(osFile, cfg),
		superblock: sb,
		groups:     map[string]*Group{},
		writable:   true,
		writer:     writer,
		allocator:  alloc.New(eofAddr),
	}
	if err := f.loadRoot(); err != nil {
		return fail(err)
	}
	return f, nil
}

// Flush writes the superblock with the current EOF and root address and
// syncs the file. It does nothing until something has been written.
func (f *File) Flush() error {
	if !f.writable || !f.dirty {
		return nil
	}
	f.superblock.EOFAddress = f.allocator.EOFAddr()
	if _, err := f.superblock.Write(f.writer.At(0)); err != nil {
		return err
	}
	if err := f.file.Sync(); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// allocate reserves space at the end of the file and returns its address.
func (f *File) allocate(size int64) uint64 {
	f.dirty = true
	return f.allocator.Alloc(uint64(size))
}

// AllocStats returns allocation statistics for this session.
func (f *File) AllocStats() alloc.Stats {
	if f.allocator == nil {
		return alloc.Stats{}
	}
	return f.allocator.Stats()
}

// Size returns the logical end-of-file address.
func (f *File) Size() uint64 {
	if f.allocator != nil {
		return f.allocator.EOFAddr()
	}
	return f.superblock.EOFAddress
}
