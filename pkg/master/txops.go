package master

import (
	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/txn"
)

// CreateRelationshipType stages a new relationship-type record on
// ctx's transaction, dispatched under the usual suspend/resume
// envelope.
func (c *Coordinator) CreateRelationshipType(handle *WorkerHandle, ctx record.SlaveContext, id record.RelationshipTypeID, name string) Response[struct{}] {
	err := c.dispatch(handle, ctx, func(tx *txn.Transaction) error {
		return tx.CreateRelationshipType(id, name)
	})
	if err != nil {
		return failed[struct{}](err)
	}
	return ok(struct{}{}, nil)
}

// IDBatch is the result of AllocateIds: a contiguous batch of fresh
// IDs plus the generator's current high-water mark and defrag count,
// matching spec.md §6's "ID allocation response".
type IDBatch struct {
	IDs         []uint64
	HighID      uint64
	DefragCount uint64
}

// AllocateIds reserves c.grabSize consecutive IDs from kind's
// generator. It is not wrapped in a transaction: ID allocation is a
// standalone atomic operation on the shared generator, per spec.md
// §4.4.
func (c *Coordinator) AllocateIds(kind record.Kind) Response[IDBatch] {
	gen := c.engine.Store().IDGenerator(kind)
	ids, err := gen.NextIDBatch(c.grabSize)
	if err != nil {
		return failed[IDBatch](err)
	}
	return ok(IDBatch{IDs: ids, HighID: gen.HighID(), DefragCount: gen.DefragCount()}, nil)
}
