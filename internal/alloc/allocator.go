package alloc

import (
	"fmt"
	"sync"
)

// Allocator hands out file addresses for one write session. Space is
// only ever appended at the end of the file; nothing is reused, so bytes
// superseded by a rewrite stay in the file until it is repacked.
type Allocator struct {
	mu      sync.Mutex
	base    uint64
	eof     uint64
	extents []Extent
	stats   Stats
}

// Extent is one allocated range.
type Extent struct {
	Addr uint64
	Size uint64
}

// Stats summarizes a session.
type Stats struct {
	Allocations uint64
	Bytes       uint64
	Largest     uint64
}

// New starts allocating at base, normally the file's current EOF.
func New(base uint64) *Allocator {
	return &Allocator{base: base, eof: base}
}

// Alloc reserves size bytes at EOF and returns their address. A zero
// size returns EOF without reserving anything.
func (a *Allocator) Alloc(size uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	addr := a.eof
	if size == 0 {
		return addr
	}
	a.eof += size
	a.extents = append(a.extents, Extent{Addr: addr, Size: size})
	a.stats.Allocations++
	a.stats.Bytes += size
	a.stats.Largest = max(a.stats.Largest, size)
	return addr
}

func (a *Allocator) EOFAddr() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eof
}

func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Check verifies that every extent lies between the base and EOF and
// that no two overlap. Extents are appended in address order, so
// neighbours are enough.
func (a *Allocator) Check() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	prevEnd := a.base
	for _, e := range a.extents {
		if e.Addr < prevEnd {
			return fmt.Errorf("extent 0x%x+%d overlaps space ending at 0x%x", e.Addr, e.Size, prevEnd)
		}
		prevEnd = e.Addr + e.Size
	}
	if prevEnd > a.eof {
		return fmt.Errorf("extents end at 0x%x, past EOF 0x%x", prevEnd, a.eof)
	}
	return nil
}
