package lock

import (
	"context"
	"sync"

	"github.com/kerngraph/kerndb/pkg/record"
)

func isKnownKind(k record.Kind) bool {
	switch k {
	case record.NodeKind, record.RelationshipKind, record.PropertyKind,
		record.PropertyIndexKind, record.RelationshipTypeKind,
		record.DynamicStringKind, record.DynamicArrayKind:
		return true
	default:
		return false
	}
}

type lockState struct {
	readers map[TxID]bool
	writer  TxID // 0 means unheld
}

func (ls *lockState) empty() bool {
	return ls.writer == 0 && len(ls.readers) == 0
}

func (ls *lockState) holders() []TxID {
	h := make([]TxID, 0, len(ls.readers)+1)
	if ls.writer != 0 {
		h = append(h, ls.writer)
	}
	for r := range ls.readers {
		h = append(h, r)
	}
	return h
}

func (ls *lockState) canAcquire(mode Mode, holder TxID) bool {
	switch mode {
	case ReadLock:
		return ls.writer == 0 || ls.writer == holder
	case WriteLock:
		if ls.writer != 0 && ls.writer != holder {
			return false
		}
		for r := range ls.readers {
			if r != holder {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (ls *lockState) grant(mode Mode, holder TxID) {
	switch mode {
	case ReadLock:
		ls.readers[holder] = true
	case WriteLock:
		ls.writer = holder
	}
}

// InProcessManager is a single-process read/write lock manager with
// wait-for-graph deadlock detection. It has no analogue among the
// example repos' storage engines, which rely on their key-value
// store's own optimistic conflict detection rather than a symmetric
// acquire/release protocol with an explicit lock releaser; this
// implementation is built directly from the behavioral contract the
// write-transaction engine and master coordinator require.
type InProcessManager struct {
	mu      sync.Mutex
	cond    *sync.Cond
	locks   map[Key]*lockState
	waitFor map[TxID]map[TxID]bool // waiter -> set of holders it is blocked on
}

// NewInProcessManager returns an empty lock manager.
func NewInProcessManager() *InProcessManager {
	m := &InProcessManager{
		locks:   make(map[Key]*lockState),
		waitFor: make(map[TxID]map[TxID]bool),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *InProcessManager) Acquire(ctx context.Context, holder TxID, mode Mode, key Key) error {
	if holder == 0 {
		panic("lock: holder TxID must be non-zero")
	}
	if !isKnownKind(key.Kind) {
		return ErrIllegalResource{Key: key}
	}

	// Wake waiters if ctx is (or becomes) done, since sync.Cond has no
	// native cancellation.
	done := make(chan struct{})
	defer close(done)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				m.mu.Lock()
				m.cond.Broadcast()
				m.mu.Unlock()
			case <-done:
			}
		}()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		ls := m.locks[key]
		if ls == nil {
			ls = &lockState{readers: make(map[TxID]bool)}
			m.locks[key] = ls
		}
		if ls.canAcquire(mode, holder) {
			ls.grant(mode, holder)
			delete(m.waitFor, holder)
			return nil
		}

		if err := ctx.Err(); err != nil {
			delete(m.waitFor, holder)
			return err
		}

		edges := make(map[TxID]bool)
		for _, h := range ls.holders() {
			if h != holder {
				edges[h] = true
			}
		}
		m.waitFor[holder] = edges

		if cycle, ok := m.findCycle(holder); ok {
			delete(m.waitFor, holder)
			return ErrDeadlock{Waiter: holder, Cycle: cycle}
		}

		m.cond.Wait()
		delete(m.waitFor, holder)
	}
}

func (m *InProcessManager) Release(holder TxID, mode Mode, key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ls := m.locks[key]
	if ls == nil {
		return
	}
	switch mode {
	case ReadLock:
		delete(ls.readers, holder)
	case WriteLock:
		if ls.writer == holder {
			ls.writer = 0
		}
	}
	if ls.empty() {
		delete(m.locks, key)
	}
	m.cond.Broadcast()
}

// findCycle reports whether start can reach itself via the current
// wait-for graph, returning the path if so. Callers must hold m.mu.
func (m *InProcessManager) findCycle(start TxID) ([]TxID, bool) {
	visited := make(map[TxID]bool)
	var path []TxID
	var dfs func(TxID) bool
	dfs = func(n TxID) bool {
		for next := range m.waitFor[n] {
			path = append(path, next)
			if next == start {
				return true
			}
			if !visited[next] {
				visited[next] = true
				if dfs(next) {
					return true
				}
			}
			path = path[:len(path)-1]
		}
		return false
	}
	if dfs(start) {
		return path, true
	}
	return nil, false
}
