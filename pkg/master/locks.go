package master

import (
	"errors"

	"github.com/kerngraph/kerndb/pkg/lock"
	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/txn"
)

// acquire runs one entity lock request through the dispatch envelope,
// translating the transaction engine's lock errors into the three
// LockStatus outcomes spec.md §4.4 names: a deadlock is embedded in
// the response rather than raised, an illegal resource comes back as
// NOT_LOCKED, and anything else granted is OK_LOCKED.
func (c *Coordinator) acquire(handle *WorkerHandle, ctx record.SlaveContext, key lock.Key, mode lock.Mode) Response[struct{}] {
	var deadlockErr lock.ErrDeadlock
	var illegalErr lock.ErrIllegalResource

	err := c.dispatch(handle, ctx, func(tx *txn.Transaction) error {
		switch key.Kind {
		case record.NodeKind:
			return tx.AcquireNodeLock(record.NodeID(key.ID), mode)
		case record.RelationshipKind:
			return tx.AcquireRelationshipLock(record.RelationshipID(key.ID), mode)
		default:
			return lock.ErrIllegalResource{Key: key}
		}
	})

	switch {
	case err == nil:
		return ok(struct{}{}, nil)
	case errors.As(err, &deadlockErr):
		return deadlock[struct{}](&deadlockErr)
	case errors.As(err, &illegalErr):
		return notLocked[struct{}]()
	default:
		return failed[struct{}](err)
	}
}

// AcquireNodeReadLock brokers a shared read lock on id for ctx.
func (c *Coordinator) AcquireNodeReadLock(handle *WorkerHandle, ctx record.SlaveContext, id record.NodeID) Response[struct{}] {
	return c.acquire(handle, ctx, lock.NodeKey(id), lock.ReadLock)
}

// AcquireNodeWriteLock brokers an exclusive write lock on id for ctx.
func (c *Coordinator) AcquireNodeWriteLock(handle *WorkerHandle, ctx record.SlaveContext, id record.NodeID) Response[struct{}] {
	return c.acquire(handle, ctx, lock.NodeKey(id), lock.WriteLock)
}

// AcquireRelationshipReadLock brokers a shared read lock on id for ctx.
func (c *Coordinator) AcquireRelationshipReadLock(handle *WorkerHandle, ctx record.SlaveContext, id record.RelationshipID) Response[struct{}] {
	return c.acquire(handle, ctx, lock.RelationshipKey(id), lock.ReadLock)
}

// AcquireRelationshipWriteLock brokers an exclusive write lock on id
// for ctx.
func (c *Coordinator) AcquireRelationshipWriteLock(handle *WorkerHandle, ctx record.SlaveContext, id record.RelationshipID) Response[struct{}] {
	return c.acquire(handle, ctx, lock.RelationshipKey(id), lock.WriteLock)
}
