// Package dtype converts between raw HDF5 element bytes and Go slices.
//
// Only the element kinds a matrix file carries are supported: signed and
// unsigned integers of 1, 2, 4 or 8 bytes, 4 and 8 byte floats, and
// strings, either fixed-length or variable-length through the global
// heap. Decoding always yields a flat slice whose element type follows
// the stored datatype; callers that want a scalar take element zero.
//
// Compound, array, enum, reference and opaque datatypes are parsed by
// the message package but rejected here with an error.
package dtype
