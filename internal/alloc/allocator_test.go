package alloc

import (
	"sync"
	"testing"
)

func TestAllocAppends(t *testing.T) {
	a := New(1024)
	if got := a.Alloc(100); got != 1024 {
		t.Errorf("first Alloc = 0x%x, want 0x400", got)
	}
	if got := a.Alloc(200); got != 1124 {
		t.Errorf("second Alloc = 0x%x, want 0x464", got)
	}
	if got := a.Alloc(0); got != 1324 {
		t.Errorf("zero Alloc = 0x%x, want EOF 0x52c", got)
	}
	if got := a.EOFAddr(); got != 1324 {
		t.Errorf("EOFAddr = 0x%x, want 0x52c", got)
	}

	want := Stats{Allocations: 2, Bytes: 300, Largest: 200}
	if got := a.Stats(); got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
	if err := a.Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestAllocConcurrent(t *testing.T) {
	a := New(0)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				a.Alloc(16)
			}
		}()
	}
	wg.Wait()

	if got := a.EOFAddr(); got != 8*100*16 {
		t.Errorf("EOFAddr = %d, want %d", got, 8*100*16)
	}
	if err := a.Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestCheckCatchesOverlap(t *testing.T) {
	a := New(100)
	a.Alloc(10)
	a.extents = append(a.extents, Extent{Addr: 105, Size: 10})
	if err := a.Check(); err == nil {
		t.Error("Check accepted overlapping extents")
	}

	b := New(100)
	b.Alloc(10)
	b.eof = 105
	if err := b.Check(); err == nil {
		t.Error("Check accepted an extent past EOF")
	}
}
