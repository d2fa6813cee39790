// Package store defines the contract between the OMX object model and a
// hierarchical backing store.
package store

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/robert-malhotra/go-omx/tree"
)

// Mode selects how a container is opened.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
	// CreateNew creates the container, replacing any existing one.
	CreateNew
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case CreateNew:
		return "create-new"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Writable reports whether containers opened in m accept writes.
func (m Mode) Writable() bool { return m == ReadWrite || m == CreateNew }

var (
	ErrNotFound = errors.New("store: not found")
	ErrReadOnly = errors.New("store: container is read-only")
	ErrClosed   = errors.New("store: container is closed")
)

// Backend opens containers by path and manages them as whole units.
type Backend interface {
	Open(path string, mode Mode) (Container, error)
	Exists(path string) (bool, error)
	Rename(from, to string) error
	Remove(path string) error
}

// Container is one open backing store.
type Container interface {
	// Snapshot reads the tree rooted at path. Datasets in the snapshot
	// report tree.IsLive until the container is closed.
	Snapshot(path string) (tree.Group, error)
	ReadPayload(datasetPath string) (any, error)
	// WriteGroup creates the group if needed and writes its attributes
	// when they changed.
	WriteGroup(g *tree.MutableGroup) error
	// WriteDataset writes whichever of name, attributes and payload the
	// overlay reports as changed.
	WriteDataset(ds *tree.MutableDataset) error
	DeleteLink(path string) error
	Close() error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Backend{}
)

// Register makes a backend available by name. It panics on duplicates,
// as database/sql drivers do.
func Register(name string, b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if b == nil {
		panic("store: Register backend is nil")
	}
	if _, dup := registry[name]; dup {
		panic("store: Register called twice for backend " + name)
	}
	registry[name] = b
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[name]
	return b, ok
}

// Backends lists registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

func sortedNames[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
