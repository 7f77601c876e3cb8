package txn

import (
	"fmt"
	"sort"

	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/walog"
)

func sortedNodeIDs(m map[record.NodeID]*record.Node) []record.NodeID {
	ids := make([]record.NodeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedRelIDs(m map[record.RelationshipID]*record.Relationship) []record.RelationshipID {
	ids := make([]record.RelationshipID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedPropIDs(m map[record.PropertyID]*record.PropertyRecord) []record.PropertyID {
	ids := make([]record.PropertyID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedPropIdxIDs(m map[record.PropertyIndexID]*record.PropertyIndex) []record.PropertyIndexID {
	ids := make([]record.PropertyIndexID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedRelTypeIDs(m map[record.RelationshipTypeID]*record.RelationshipType) []record.RelationshipTypeID {
	ids := make([]record.RelationshipTypeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedDynIDs(m map[record.DynamicID]*record.DynamicRecord) []record.DynamicID {
	ids := make([]record.DynamicID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Prepare checks I-NODE-CLEAN, journals every staged record to the
// logical log, and dispatches cache invalidation for every node and
// relationship transitioning to not-in-use. Prepare order is
// relationship types, nodes, relationships, property indexes,
// properties, then dynamic records; it exists to give the log a
// complete, self-contained record of the transaction before Commit
// touches the store at all.
func (tx *Transaction) Prepare() error {
	if err := tx.requireActive(); err != nil {
		return err
	}

	for _, id := range sortedNodeIDs(tx.nodes) {
		n := tx.nodes[id]
		if !n.InUse && n.NextRel != record.NoRelID {
			return ErrIntegrityViolation{Reason: fmt.Sprintf("node %d is not in use but still has a live relationship chain", n.ID)}
		}
	}

	if tx.engine.log != nil {
		appenders := []func() error{
			func() error {
				for _, id := range sortedRelTypeIDs(tx.relTypes) {
					if _, err := tx.engine.log.Append(walog.RelationshipTypeCommand(tx.relTypes[id])); err != nil {
						return err
					}
				}
				return nil
			},
			func() error {
				for _, id := range sortedNodeIDs(tx.nodes) {
					if _, err := tx.engine.log.Append(walog.NodeCommand(tx.nodes[id])); err != nil {
						return err
					}
				}
				return nil
			},
			func() error {
				for _, id := range sortedRelIDs(tx.rels) {
					if _, err := tx.engine.log.Append(walog.RelationshipCommand(tx.rels[id])); err != nil {
						return err
					}
				}
				return nil
			},
			func() error {
				for _, id := range sortedPropIdxIDs(tx.propIdx) {
					if _, err := tx.engine.log.Append(walog.PropertyIndexCommand(tx.propIdx[id])); err != nil {
						return err
					}
				}
				return nil
			},
			func() error {
				for _, id := range sortedPropIDs(tx.props) {
					if _, err := tx.engine.log.Append(walog.PropertyCommand(tx.props[id])); err != nil {
						return err
					}
				}
				return nil
			},
			func() error {
				for _, kind := range []record.Kind{record.DynamicStringKind, record.DynamicArrayKind} {
					for _, id := range sortedDynIDs(tx.dyn[kind]) {
						if _, err := tx.engine.log.Append(walog.DynamicCommand(tx.dyn[kind][id])); err != nil {
							return err
						}
					}
				}
				return nil
			},
		}
		for _, appendFn := range appenders {
			if err := appendFn(); err != nil {
				return err
			}
		}
	}

	for _, n := range tx.nodes {
		if !n.InUse {
			tx.engine.invalidator.InvalidateNode(n.ID)
		}
	}
	for _, r := range tx.rels {
		if !r.InUse {
			tx.engine.invalidator.InvalidateRelationship(r.ID)
		}
	}

	tx.state = txPrepared
	return nil
}
