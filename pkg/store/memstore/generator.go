package memstore

import "sync"

// generator is an in-process ID allocator: a monotonic counter backed
// by a free list, grounded on the teacher's MemoryEngine ID handling
// (atomic-counter-plus-free-list rather than a persisted sequence).
type generator struct {
	mu     sync.Mutex
	next   uint64
	high   uint64
	free   []uint64
	defrag uint64
}

func newGenerator() *generator {
	return &generator{}
}

func (g *generator) nextIDLocked() uint64 {
	if n := len(g.free); n > 0 {
		id := g.free[n-1]
		g.free = g.free[:n-1]
		g.defrag++
		return id
	}
	id := g.next
	g.next++
	if id > g.high {
		g.high = id
	}
	return id
}

func (g *generator) NextID() (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextIDLocked(), nil
}

func (g *generator) FreeID(id uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.free = append(g.free, id)
	return nil
}

func (g *generator) HighID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.high
}

func (g *generator) DefragCount() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.defrag
}

func (g *generator) NextIDBatch(n int) ([]uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = g.nextIDLocked()
	}
	return ids, nil
}

// refresh bumps the counter so a subsequently allocated ID never
// collides with one already assigned during recovery replay, without
// touching the free list (recovery must not treat replayed IDs as
// available for reuse).
func (g *generator) refresh(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id >= g.next {
		g.next = id + 1
	}
	if id > g.high {
		g.high = id
	}
}
