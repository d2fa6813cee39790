// Package alloc assigns file addresses to the structures written during
// one session: object headers, heaps and dataset payloads.
//
// Allocation is append-only. A rewritten header or payload gets a fresh
// extent at EOF and the old bytes are left behind, which is why a file
// that has seen many saves grows until it is repacked.
//
//	a := alloc.New(eof)
//	hdr := a.Alloc(256)
//	data := a.Alloc(uint64(len(payload)))
package alloc
