// Package tree models a hierarchical container store: groups holding
// datasets and further groups, each carrying attributes.
//
// Snapshots produced by a backing store are read-only. Edits go through
// MutableGroup and MutableDataset, which overlay a snapshot and record
// which parts changed so a store can write back only those.
package tree

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnsupportedType = errors.New("unsupported payload type")
	ErrShapeMismatch   = errors.New("payload does not match shape")
	ErrInvalidName     = errors.New("invalid name")
)
