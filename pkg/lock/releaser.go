package lock

import (
	"context"
	"sync"
)

type heldLock struct {
	mode Mode
	key  Key
}

// Releaser accumulates every lock a transaction acquires so commit and
// rollback can free them all in one call, mirroring the source
// system's LockReleaser.addLockToTransaction bookkeeping.
type Releaser struct {
	mgr    Manager
	holder TxID

	mu   sync.Mutex
	held []heldLock
}

// NewReleaser returns a Releaser that acquires locks through mgr on
// behalf of holder.
func NewReleaser(mgr Manager, holder TxID) *Releaser {
	return &Releaser{mgr: mgr, holder: holder}
}

// Acquire acquires the lock through the underlying manager and, on
// success, registers it for release by ReleaseAll.
func (r *Releaser) Acquire(ctx context.Context, mode Mode, key Key) error {
	if err := r.mgr.Acquire(ctx, r.holder, mode, key); err != nil {
		return err
	}
	r.mu.Lock()
	r.held = append(r.held, heldLock{mode: mode, key: key})
	r.mu.Unlock()
	return nil
}

// ReleaseAll releases every lock this releaser has acquired, in
// reverse acquisition order, and clears its bookkeeping. Safe to call
// more than once; a second call is a no-op.
func (r *Releaser) ReleaseAll() {
	r.mu.Lock()
	held := r.held
	r.held = nil
	r.mu.Unlock()

	for i := len(held) - 1; i >= 0; i-- {
		r.mgr.Release(r.holder, held[i].mode, held[i].key)
	}
}
