package badgerstore

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/kerngraph/kerndb/pkg/record"
)

// generator allocates IDs for one record kind from a badger.Sequence
// (a persisted, pre-fetched counter backed by db.GetSequence), layered
// with an in-memory free list persisted best-effort under a dedicated
// key so freed IDs survive a restart.
type generator struct {
	mu   sync.Mutex
	db   *badger.DB
	kind record.Kind
	seq  *badger.Sequence

	free   []uint64
	defrag uint64
	// high is a process-local approximation of the allocator's high
	// water mark. badger.Sequence does not expose its persisted
	// counter directly, so across restarts this resets to the first
	// ID issued after reopening rather than the true historical max;
	// callers that need an exact high-water mark should track it
	// themselves from record traffic.
	high uint64
}

func newGenerator(db *badger.DB, kind record.Kind) (*generator, error) {
	seq, err := db.GetSequence(sequenceKey(kind), 100)
	if err != nil {
		return nil, err
	}
	g := &generator{db: db, kind: kind, seq: seq}
	if err := g.loadFreeList(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *generator) loadFreeList() error {
	return g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(freeListKey(g.kind))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&g.free)
		})
	})
}

// persistFreeList must be called with g.mu held.
func (g *generator) persistFreeList() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(g.free); err != nil {
		return err
	}
	return g.db.Update(func(txn *badger.Txn) error {
		return txn.Set(freeListKey(g.kind), buf.Bytes())
	})
}

func (g *generator) nextIDLocked() (uint64, error) {
	if n := len(g.free); n > 0 {
		id := g.free[n-1]
		g.free = g.free[:n-1]
		g.defrag++
		return id, g.persistFreeList()
	}
	id, err := g.seq.Next()
	if err != nil {
		return 0, err
	}
	if id > g.high {
		g.high = id
	}
	return id, nil
}

func (g *generator) NextID() (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextIDLocked()
}

func (g *generator) FreeID(id uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.free = append(g.free, id)
	return g.persistFreeList()
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
		id, err := g.nextIDLocked()
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// refresh fast-forwards the sequence past id during recovery replay,
// by discarding intermediate values, so no subsequently allocated ID
// collides with one already assigned during replay.
func (g *generator) refresh(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.high <= id {
		next, err := g.seq.Next()
		if err != nil {
			return
		}
		if next > g.high {
			g.high = next
		}
	}
}

func (g *generator) release() error {
	return g.seq.Release()
}
