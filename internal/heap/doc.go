// Package heap reads the two heaps older and variable-length data point
// into: local heaps ("HEAP"), which hold link names for symbol table
// groups, and global heap collections ("GCOL"), which hold the bytes of
// variable-length strings.
package heap
