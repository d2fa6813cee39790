// Package layout reads the stored bytes of a dataset, undoing its filter
// pipeline and assembling chunks into one row-major buffer.
//
// Compact and contiguous storage are supported, as is chunked storage
// indexed by a version 1 B-tree, held as a single chunk, or laid out
// implicitly. Fixed array, extensible array and version 2 B-tree chunk
// indexes are reported as unsupported.
package layout
