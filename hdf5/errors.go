// Package hdf5 reads and writes HDF5 files in pure Go.
//
// Writing is append-only: replacing a group, dataset or attribute writes
// a new object header and relinks it, leaving the old bytes unreachable.
// Repacking a file reclaims that space.
package hdf5

import "errors"

// Common errors
var (
	ErrNotHDF5      = errors.New("not an HDF5 file")
	ErrNotFound     = errors.New("object not found")
	ErrNotDataset   = errors.New("object is not a dataset")
	ErrNotGroup     = errors.New("object is not a group")
	ErrUnsupported  = errors.New("unsupported feature")
	ErrInvalidPath  = errors.New("invalid path")
	ErrInvalidShape = errors.New("invalid shape")
	ErrExists       = errors.New("object already exists")
	ErrClosed       = errors.New("file is closed")
	ErrNotWritable  = errors.New("file is not writable")
	ErrLinkDepth    = errors.New("maximum link depth exceeded")
)

// MaxLinkDepth is the maximum number of soft links that can be followed
// in a single path resolution.
const MaxLinkDepth = 100
