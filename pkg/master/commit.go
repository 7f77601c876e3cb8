package master

import (
	"errors"

	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/txn"
	"github.com/kerngraph/kerndb/pkg/walog"
)

// CommitSingleResourceTransaction resumes ctx's transaction, applies
// the slave's prepared command stream to it via injectCommand, prepares
// and commits the result against resourceName's log, and returns
// (txID, txID-1) so the response stream packs every transaction
// strictly up to txID-1 and the new one is delivered as the result
// itself — the slave already knows it, having built it locally. The
// row is dropped from the table once committed, successfully or not:
// a failed commit leaves nothing to resume.
//
// commands is the slave's fully-prepared record stream (its local
// transaction's Node/Relationship/Property/... commands, in the order
// produced by Prepare); each command is staged into the resumed
// transaction itself, so whatever that transaction had already staged
// via earlier dispatched calls is committed along with them, and an
// injected record replaces a staged record with the same ID.
func (c *Coordinator) CommitSingleResourceTransaction(handle *WorkerHandle, ctx record.SlaveContext, commands []walog.Command) Response[uint64] {
	defer c.dropRow(ctx)

	var txID uint64
	err := c.dispatch(handle, ctx, func(tx *txn.Transaction) error {
		for _, cmd := range commands {
			if err := tx.InjectCommand(cmd); err != nil {
				return err
			}
		}
		id, commitErr := tx.Commit()
		txID = id
		return commitErr
	})
	if err != nil {
		var integrity txn.ErrIntegrityViolation
		var outOfOrder txn.ErrOutOfOrderCommit
		var closed txn.ErrTransactionClosed
		if errors.As(err, &integrity) || errors.As(err, &outOfOrder) ||
			errors.As(err, &closed) || errors.Is(err, ErrCoordinatorClosed{}) {
			return failed[uint64](err)
		}
		return failed[uint64](IOError{Op: "commit single resource transaction", Err: err})
	}
	var missing []MissingTransaction
	if txID > 1 {
		missing = []MissingTransaction{{ResourceName: resourceName, TxID: txID - 1}}
	}
	return Response[uint64]{Result: txID, Missing: missing, Status: StatusOK}
}

// FinishTransaction closes out ctx's transaction: commits it if
// success is true, otherwise rolls it back. Either way the row is
// removed from the table. Used for read-only or slave-cancelled
// transactions that never reach CommitSingleResourceTransaction.
func (c *Coordinator) FinishTransaction(handle *WorkerHandle, ctx record.SlaveContext, success bool) Response[struct{}] {
	defer c.dropRow(ctx)

	err := c.dispatch(handle, ctx, func(tx *txn.Transaction) error {
		if success {
			_, commitErr := tx.Commit()
			return commitErr
		}
		return tx.Rollback()
	})
	if err != nil {
		return failed[struct{}](err)
	}
	return ok(struct{}{}, nil)
}

// GetMasterIdForCommittedTx reports which master authored txID. This
// implementation never fails over to a different master, so every
// committed transaction was authored by this coordinator's own
// machine ID; an unrecognized (not-yet-committed) txID is reported as
// an error instead of a guessed machine ID.
func (c *Coordinator) GetMasterIdForCommittedTx(txID uint64) Response[int32] {
	if txID == 0 || txID > c.engine.LastCommittedTx() {
		return failed[int32](ErrUnknownContext{Key: "<no such committed transaction>"})
	}
	return ok(c.machine, nil)
}

// PullUpdates reports every transaction committed beyond ctx's
// recorded horizon for resourceName, without touching the slave's
// registered transaction (this is metadata, not staged work, so it
// runs outside the dispatch envelope).
func (c *Coordinator) PullUpdates(ctx record.SlaveContext) Response[struct{}] {
	horizon := ctx.LastAppliedTx[resourceName]
	latest := int64(c.engine.LastCommittedTx())
	if latest <= horizon {
		return ok(struct{}{}, nil)
	}
	missing := make([]MissingTransaction, 0, latest-horizon)
	for id := horizon + 1; id <= latest; id++ {
		missing = append(missing, MissingTransaction{ResourceName: resourceName, TxID: uint64(id)})
	}
	return Response[struct{}]{Status: StatusOK, Missing: missing}
}
