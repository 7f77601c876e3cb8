package txn

import (
	"github.com/kerngraph/kerndb/pkg/lock"
	"github.com/kerngraph/kerndb/pkg/record"
)

// AcquireNodeLock acquires a read or write lock on id directly, without
// any accompanying mutation. It exists for the master coordinator,
// which brokers raw lock requests on behalf of slaves ahead of the
// mutating RPCs that will actually use them.
func (tx *Transaction) AcquireNodeLock(id record.NodeID, mode lock.Mode) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	return tx.acquireLock(lock.NodeKey(id), mode)
}

// AcquireRelationshipLock acquires a read or write lock on id directly,
// mirroring AcquireNodeLock for the relationship keyspace.
func (tx *Transaction) AcquireRelationshipLock(id record.RelationshipID, mode lock.Mode) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	return tx.acquireLock(lock.RelationshipKey(id), mode)
}
