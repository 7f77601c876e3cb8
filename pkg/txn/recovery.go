package txn

import (
	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/walog"
)

// recoveryBatch accumulates commands for one not-yet-closed transaction
// while replaying the log, keyed exactly like Transaction's staging
// maps so applying it can reuse the same commit-order helpers.
type recoveryBatch struct {
	nodes    map[record.NodeID]*record.Node
	rels     map[record.RelationshipID]*record.Relationship
	props    map[record.PropertyID]*record.PropertyRecord
	propIdx  map[record.PropertyIndexID]*record.PropertyIndex
	relTypes map[record.RelationshipTypeID]*record.RelationshipType
	dyn      map[record.Kind]map[record.DynamicID]*record.DynamicRecord
}

func newRecoveryBatch() *recoveryBatch {
	return &recoveryBatch{
		nodes:    make(map[record.NodeID]*record.Node),
		rels:     make(map[record.RelationshipID]*record.Relationship),
		props:    make(map[record.PropertyID]*record.PropertyRecord),
		propIdx:  make(map[record.PropertyIndexID]*record.PropertyIndex),
		relTypes: make(map[record.RelationshipTypeID]*record.RelationshipType),
		dyn: map[record.Kind]map[record.DynamicID]*record.DynamicRecord{
			record.DynamicStringKind: make(map[record.DynamicID]*record.DynamicRecord),
			record.DynamicArrayKind:  make(map[record.DynamicID]*record.DynamicRecord),
		},
	}
}

func (b *recoveryBatch) reset() {
	*b = *newRecoveryBatch()
}

func (b *recoveryBatch) absorb(cmd walog.Command) {
	switch cmd.Type {
	case walog.NodeCommandType:
		b.nodes[cmd.Node.ID] = cmd.Node
	case walog.RelationshipCommandType:
		b.rels[cmd.Relationship.ID] = cmd.Relationship
	case walog.PropertyCommandType:
		b.props[cmd.Property.ID] = cmd.Property
	case walog.PropertyIndexCommandType:
		b.propIdx[cmd.PropertyIndex.ID] = cmd.PropertyIndex
	case walog.RelationshipTypeCommandType:
		b.relTypes[cmd.RelationshipType.ID] = cmd.RelationshipType
	case walog.DynamicCommandType:
		b.dyn[cmd.Dynamic.Kind][cmd.Dynamic.ID] = cmd.Dynamic
	}
}

// recover replays the log from fromSeq, applying each transaction whose
// commit marker it finds and whose ID is still ahead of the store's
// lastCommittedTx, in recovery-commit order: property indexes, dynamic
// records, properties (invalidating owning primitives), relationship
// types, relationships (invalidating endpoints), nodes.
func (e *Engine) recover(fromSeq uint64) error {
	if e.log == nil {
		return nil
	}
	e.store.SetRecoveryMode(true)
	defer e.store.SetRecoveryMode(false)

	batch := newRecoveryBatch()
	return e.log.Replay(fromSeq, func(seq uint64, cmd walog.Command) error {
		if cmd.Type != walog.TxCommitCommandType {
			batch.absorb(cmd)
			return nil
		}
		txID := cmd.TxCommit.TxID
		defer batch.reset()

		e.mu.Lock()
		alreadyApplied := txID <= e.lastCommittedTx
		e.mu.Unlock()
		if alreadyApplied {
			return nil
		}
		if err := e.applyRecoveryBatch(batch); err != nil {
			return err
		}
		e.mu.Lock()
		e.lastCommittedTx = txID
		e.mu.Unlock()
		return nil
	})
}

func (e *Engine) applyRecoveryBatch(b *recoveryBatch) error {
	for _, id := range sortedPropIdxIDs(b.propIdx) {
		if err := e.store.UpdatePropertyIndex(b.propIdx[id]); err != nil {
			return err
		}
	}
	for _, kind := range []record.Kind{record.DynamicStringKind, record.DynamicArrayKind} {
		for _, id := range sortedDynIDs(b.dyn[kind]) {
			if err := e.store.UpdateDynamic(b.dyn[kind][id]); err != nil {
				return err
			}
		}
	}
	for _, id := range sortedPropIDs(b.props) {
		p := b.props[id]
		if err := e.store.UpdateProperty(p); err != nil {
			return err
		}
		switch p.OwnerKind {
		case record.NodeKind:
			e.invalidator.InvalidateNode(record.NodeID(p.OwnerID))
		case record.RelationshipKind:
			e.invalidator.InvalidateRelationship(record.RelationshipID(p.OwnerID))
		}
	}
	for _, id := range sortedRelTypeIDs(b.relTypes) {
		if err := e.store.UpdateRelationshipType(b.relTypes[id]); err != nil {
			return err
		}
	}
	for _, id := range sortedRelIDs(b.rels) {
		r := b.rels[id]
		if err := e.store.UpdateRelationship(r); err != nil {
			return err
		}
		e.invalidator.InvalidateRelationship(r.ID)
		e.invalidator.InvalidateNode(r.FirstNode)
		e.invalidator.InvalidateNode(r.SecondNode)
	}
	for _, id := range sortedNodeIDs(b.nodes) {
		n := b.nodes[id]
		if err := e.store.UpdateNode(n); err != nil {
			return err
		}
		e.invalidator.InvalidateNode(n.ID)
	}
	return nil
}
