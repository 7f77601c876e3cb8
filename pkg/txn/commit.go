package txn

import (
	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/walog"
)

// Commit assigns the next sequential transaction ID automatically and
// applies the transaction, preparing it first if it is still active.
// Unlike CommitAt, it takes no ID from the caller (CommitAt rejects 0).
func (tx *Transaction) Commit() (uint64, error) {
	return tx.commit(0)
}

// CommitAt applies the transaction under an explicit commit ID, failing
// with ErrOutOfOrderCommit if it does not equal lastCommittedTx+1. It
// exists so callers (recovery, the master coordinator assigning IDs out
// of band) can drive commit ordering directly; ordinary callers should
// use Commit.
func (tx *Transaction) CommitAt(txID uint64) (uint64, error) {
	if txID == 0 {
		return 0, ErrOutOfOrderCommit{Expected: tx.engine.LastCommittedTx() + 1, Got: 0}
	}
	return tx.commit(txID)
}

func (tx *Transaction) commit(explicitTxID uint64) (uint64, error) {
	if tx.state != txPrepared {
		if tx.state == txActive {
			if err := tx.Prepare(); err != nil {
				return 0, err
			}
		} else {
			return 0, ErrTransactionClosed{State: tx.state.String()}
		}
	}

	tx.engine.mu.Lock()
	defer tx.engine.mu.Unlock()

	expected := tx.engine.lastCommittedTx + 1
	txID := expected
	if explicitTxID != 0 {
		txID = explicitTxID
	}
	if txID != expected {
		return 0, ErrOutOfOrderCommit{Expected: expected, Got: txID}
	}

	if err := tx.applyCommit(); err != nil {
		return 0, err
	}

	tx.engine.lastCommittedTx = txID
	tx.state = txCommitted
	tx.locks.ReleaseAll()

	if tx.engine.log != nil {
		if _, err := tx.engine.log.Append(walog.TxCommitCommand(txID)); err != nil {
			return 0, err
		}
	}

	return txID, nil
}

// applyCommit writes every staged record to the store in commit order:
// relationship types, property indexes, dynamic records (which have no
// back references and so are always safe to write first), then created,
// modified, and deleted records in that order — within each, properties
// before relationships before nodes.
func (tx *Transaction) applyCommit() error {
	st := tx.engine.store

	for _, id := range sortedRelTypeIDs(tx.relTypes) {
		if err := st.UpdateRelationshipType(tx.relTypes[id]); err != nil {
			return err
		}
	}
	for _, id := range sortedPropIdxIDs(tx.propIdx) {
		if err := st.UpdatePropertyIndex(tx.propIdx[id]); err != nil {
			return err
		}
	}
	for _, kind := range []record.Kind{record.DynamicStringKind, record.DynamicArrayKind} {
		for _, id := range sortedDynIDs(tx.dyn[kind]) {
			if err := st.UpdateDynamic(tx.dyn[kind][id]); err != nil {
				return err
			}
		}
	}

	created := func(created_, inUse bool) bool { return created_ }
	modified := func(created_, inUse bool) bool { return !created_ && inUse }
	deleted := func(created_, inUse bool) bool { return !created_ && !inUse }

	for _, classify := range []func(bool, bool) bool{created, modified, deleted} {
		for _, id := range sortedPropIDs(tx.props) {
			p := tx.props[id]
			if classify(p.Created, p.InUse) {
				if err := st.UpdateProperty(p); err != nil {
					return err
				}
			}
		}
		for _, id := range sortedRelIDs(tx.rels) {
			r := tx.rels[id]
			if classify(r.Created, r.InUse) {
				if err := st.UpdateRelationship(r); err != nil {
					return err
				}
			}
		}
		for _, id := range sortedNodeIDs(tx.nodes) {
			n := tx.nodes[id]
			if classify(n.Created, n.InUse) {
				if err := st.UpdateNode(n); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Rollback discards every staged change without touching the store,
// returns every ID this transaction allocated to its generator's free
// list, and releases any locks this transaction holds. A record that
// was loaded but not created by this transaction is left untouched:
// nothing was ever written for it, so there is nothing to undo.
func (tx *Transaction) Rollback() error {
	if tx.state == txCommitted {
		return ErrTransactionClosed{State: tx.state.String()}
	}

	for _, n := range tx.nodes {
		if n.Created {
			_ = tx.engine.store.IDGenerator(record.NodeKind).FreeID(uint64(n.ID))
		}
	}
	for _, r := range tx.rels {
		if r.Created {
			_ = tx.engine.store.IDGenerator(record.RelationshipKind).FreeID(uint64(r.ID))
		}
	}
	for _, p := range tx.props {
		if p.Created {
			_ = tx.engine.store.IDGenerator(record.PropertyKind).FreeID(uint64(p.ID))
		}
	}
	for _, pi := range tx.propIdx {
		if pi.Created {
			_ = tx.engine.store.IDGenerator(record.PropertyIndexKind).FreeID(uint64(pi.ID))
		}
	}
	for _, rt := range tx.relTypes {
		if rt.Created {
			_ = tx.engine.store.IDGenerator(record.RelationshipTypeKind).FreeID(uint64(rt.ID))
		}
	}
	for kind, m := range tx.dyn {
		for _, d := range m {
			if d.Created {
				_ = tx.engine.store.IDGenerator(kind).FreeID(uint64(d.ID))
			}
		}
	}

	// Every node and relationship this transaction touched may have been
	// read into a cache on the strength of the (now-discarded) staged
	// change, so each one is invalidated unconditionally, unlike
	// Prepare's InUse-gated invalidation of deletions only.
	for _, n := range tx.nodes {
		tx.engine.invalidator.InvalidateNode(n.ID)
	}
	for _, r := range tx.rels {
		tx.engine.invalidator.InvalidateRelationship(r.ID)
	}

	tx.locks.ReleaseAll()
	tx.state = txRolledBack
	return nil
}
