// Package btree walks version 1 B-trees, the "TREE" nodes older files use
// to index group members and dataset chunks.
//
// Group trees lead to symbol table nodes whose entries name their links
// through a local heap. Chunk trees carry each chunk's coordinates, stored
// size and filter mask in the node keys.
package btree
