package memstore

import (
	"encoding/gob"
	"io"

	"github.com/kerngraph/kerndb/pkg/record"
)

// snapshot is the wire shape written by Backup and read by Restore. It
// exists only to give gob one self-contained value to encode; nothing
// else in the package depends on its layout.
type snapshot struct {
	Nodes      map[record.NodeID]*record.Node
	Rels       map[record.RelationshipID]*record.Relationship
	Props      map[record.PropertyID]*record.PropertyRecord
	PropIdx    map[record.PropertyIndexID]*record.PropertyIndex
	RelTypes   map[record.RelationshipTypeID]*record.RelationshipType
	DynStrings map[record.DynamicID]*record.DynamicRecord
	DynArrays  map[record.DynamicID]*record.DynamicRecord
}

// Backup gob-encodes every record in the store to w, satisfying
// store.Backuper. There is no on-disk file to stream for an in-memory
// store, so this is the store-copy path's only way to move a MemStore's
// contents to a slave.
func (m *MemStore) Backup(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := snapshot{
		Nodes: m.nodes, Rels: m.rels, Props: m.props,
		PropIdx: m.propIdx, RelTypes: m.relTypes,
		DynStrings: m.dynStrings, DynArrays: m.dynArrays,
	}
	return gob.NewEncoder(w).Encode(snap)
}

// Restore replaces the store's contents with a snapshot previously
// written by Backup. Intended for a freshly-opened, empty MemStore on
// the receiving side of a store copy.
func (m *MemStore) Restore(r io.Reader) error {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes, m.rels, m.props = snap.Nodes, snap.Rels, snap.Props
	m.propIdx, m.relTypes = snap.PropIdx, snap.RelTypes
	m.dynStrings, m.dynArrays = snap.DynStrings, snap.DynArrays
	return nil
}
