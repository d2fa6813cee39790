package hdf5

import (
	"errors"
	"fmt"
	"os"

	"github.com/robert-malhotra/go-omx/internal/alloc"
	"github.com/robert-malhotra/go-omx/internal/binary"
	"github.com/robert-malhotra/go-omx/internal/object"
	"github.com/robert-malhotra/go-omx/internal/superblock"
)

// File is an open HDF5 file. Files opened with OpenReadWrite or Create
// append every change and write the superblock back on Flush.
type File struct {
	path       string
	file       *os.File
	reader     *binary.Reader
	superblock *superblock.Superblock
	root       *Group
	closed     bool

	// groups caches opened groups by path so that rewriting a nested
	// group can relink it in every ancestor up to the root.
	groups map[string]*Group

	writable  bool
	dirty     bool
	writer    *binary.Writer
	allocator *alloc.Allocator
}

// Open opens path read-only.
func Open(path string) (*File, error) {
	return open(path, os.O_RDONLY)
}

// OpenReadWrite opens an existing file for appending changes. Space
// held by replaced objects is not reused.
func OpenReadWrite(path string) (*File, error) {
	return open(path, os.O_RDWR)
}

func open(path string, flag int) (*File, error) {
	osFile, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}

	sb, err := superblock.Read(osFile)
	if err != nil {
		osFile.Close()
		if errors.Is(err, superblock.ErrNotHDF5) {
			return nil, fmt.Errorf("%w: %s", ErrNotHDF5, path)
		}
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	cfg := sb.ReaderConfig()
	f := &File{
		path:       path,
		file:       osFile,
		reader:     binary.NewReader(osFile, cfg),
		superblock: sb,
		groups:     map[string]*Group{},
	}
	if flag&os.O_RDWR != 0 {
		f.writable = true
		f.writer = binary.NewWriter(osFile, cfg)
		f.allocator = alloc.New(sb.EOFAddress)
	}

	if err := f.loadRoot(); err != nil {
		osFile.Close()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	return f, nil
}

func (f *File) loadRoot() error {
	addr := f.superblock.RootGroupAddress
	header, err := object.Read(f.reader, addr)
	if err != nil {
		return fmt.Errorf("reading object header: %w", err)
	}
	f.root = f.cacheGroup(&Group{file: f, path: "/", header: header, addr: addr})
	return nil
}

// cacheGroup returns the cached group for g.path, registering g if it is
// the first one seen. Callers always get the instance holding the latest
// header address.
func (f *File) cacheGroup(g *Group) *Group {
	if cached, ok := f.groups[g.path]; ok {
		return cached
	}
	f.groups[g.path] = g
	return g
}

// Close flushes a writable file and closes it. Closing twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	err := f.Flush()
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func (f *File) Root() *Group { return f.root }

// Version is the superblock version the file was written with.
func (f *File) Version() int { return int(f.superblock.Version) }

func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

// resolveAbsolute returns the address a soft link target points at.
func (f *File) resolveAbsolute(absPath string, visited map[string]bool) (uint64, error) {
	parts := splitPath(absPath)
	if len(parts) == 0 {
		return f.root.addr, nil
	}
	current := f.root
	for i, name := range parts {
		addr, err := current.resolve(name, visited)
		if err != nil {
			return 0, fmt.Errorf("resolving %q in path %s: %w", name, absPath, err)
		}
		if i == len(parts)-1 {
			return addr, nil
		}
		header, err := object.Read(f.reader, addr)
		if err != nil {
			return 0, err
		}
		if classify(header) != KindGroup {
			return 0, fmt.Errorf("%q is not a group in path %s", name, absPath)
		}
		current = &Group{file: f, path: joinPath(current.path, name), header: header, addr: addr}
	}
	return 0, fmt.Errorf("empty path")
}
