// Package badgerstore is the durable store.Store implementation,
// backed by github.com/dgraph-io/badger/v4, grounded on the teacher's
// badger.go: one key-prefix keyspace per record kind, gob-encoded
// values, db.View/db.Update for reads/writes, and db.GetSequence for
// ID generators.
package badgerstore

import (
	"bytes"
	"encoding/gob"

	"github.com/dgraph-io/badger/v4"
	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/store"
	"github.com/kerngraph/kerndb/pkg/walog"
)

// BadgerStore is the persistent record store used by graphkerneld's
// serve command.
type BadgerStore struct {
	db     *badger.DB
	gens   map[record.Kind]*generator
	logger walog.Logger

	recovery bool
}

// Open opens (creating if necessary) a badger database at dataDir.
func Open(dataDir string, logger walog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = walog.NopLogger{}
	}
	opts := badger.DefaultOptions(dataDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	s := &BadgerStore{db: db, gens: make(map[record.Kind]*generator), logger: logger}
	for _, k := range []record.Kind{
		record.NodeKind, record.RelationshipKind, record.PropertyKind,
		record.PropertyIndexKind, record.RelationshipTypeKind,
		record.DynamicStringKind, record.DynamicArrayKind,
	} {
		g, err := newGenerator(db, k)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.gens[k] = g
	}
	logger.Log("info", "opened badger store", map[string]any{"data_dir": dataDir})
	return s, nil
}

func (s *BadgerStore) IDGenerator(kind record.Kind) store.IDGenerator {
	return s.gens[kind]
}

func (s *BadgerStore) SetRecoveryMode(on bool) {
	s.recovery = on
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func get(db *badger.DB, key []byte, v any) error {
	return db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(v)
		})
	})
}

func put(db *badger.DB, key []byte, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) GetNode(id record.NodeID) (*record.Node, error) {
	var n record.Node
	if err := get(s.db, nodeKey(id), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BadgerStore) LoadLightNode(id record.NodeID) (*record.Node, error) {
	return s.GetNode(id)
}

func (s *BadgerStore) UpdateNode(n *record.Node) error {
	if err := put(s.db, nodeKey(n.ID), n); err != nil {
		return err
	}
	if s.recovery {
		s.gens[record.NodeKind].refresh(uint64(n.ID))
	}
	return nil
}

func (s *BadgerStore) GetRelationship(id record.RelationshipID) (*record.Relationship, error) {
	var r record.Relationship
	if err := get(s.db, relKey(id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *BadgerStore) LoadLightRelationship(id record.RelationshipID) (*record.Relationship, error) {
	return s.GetRelationship(id)
}

func (s *BadgerStore) UpdateRelationship(r *record.Relationship) error {
	if err := put(s.db, relKey(r.ID), r); err != nil {
		return err
	}
	if s.recovery {
		s.gens[record.RelationshipKind].refresh(uint64(r.ID))
	}
	return nil
}

func (s *BadgerStore) GetProperty(id record.PropertyID) (*record.PropertyRecord, error) {
	var p record.PropertyRecord
	if err := get(s.db, propKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BadgerStore) UpdateProperty(p *record.PropertyRecord) error {
	if err := put(s.db, propKey(p.ID), p); err != nil {
		return err
	}
	if s.recovery {
		s.gens[record.PropertyKind].refresh(uint64(p.ID))
	}
	return nil
}

func (s *BadgerStore) GetPropertyIndex(id record.PropertyIndexID) (*record.PropertyIndex, error) {
	var pi record.PropertyIndex
	if err := get(s.db, propIdxKey(id), &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

func (s *BadgerStore) UpdatePropertyIndex(pi *record.PropertyIndex) error {
	if err := put(s.db, propIdxKey(pi.ID), pi); err != nil {
		return err
	}
	if s.recovery {
		s.gens[record.PropertyIndexKind].refresh(uint64(pi.ID))
	}
	return nil
}

func (s *BadgerStore) GetRelationshipType(id record.RelationshipTypeID) (*record.RelationshipType, error) {
	var rt record.RelationshipType
	if err := get(s.db, relTypeKey(id), &rt); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (s *BadgerStore) UpdateRelationshipType(rt *record.RelationshipType) error {
	if err := put(s.db, relTypeKey(rt.ID), rt); err != nil {
		return err
	}
	if s.recovery {
		s.gens[record.RelationshipTypeKind].refresh(uint64(rt.ID))
	}
	return nil
}

func (s *BadgerStore) GetDynamic(kind record.Kind, id record.DynamicID) (*record.DynamicRecord, error) {
	var d record.DynamicRecord
	if err := get(s.db, dynKey(kind, id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *BadgerStore) UpdateDynamic(d *record.DynamicRecord) error {
	if err := put(s.db, dynKey(d.Kind, d.ID), d); err != nil {
		return err
	}
	if s.recovery {
		s.gens[d.Kind].refresh(uint64(d.ID))
	}
	return nil
}

// MakeHeavy resolves every unresolved STRING/ARRAY block in p by
// walking its dynamic chain to completion.
func (s *BadgerStore) MakeHeavy(p *record.PropertyRecord) error {
	for _, b := range p.Blocks {
		if !b.Type.IsDynamic() || b.Loaded {
			continue
		}
		kind := store.KindForDynamicType(b.Type)
		var data []byte
		var chain []record.DynamicID
		cur := b.FirstDynamicID
		for cur != record.NoDynamicID {
			d, err := s.GetDynamic(kind, cur)
			if err != nil {
				return err
			}
			data = append(data, d.Data...)
			chain = append(chain, d.ID)
			cur = d.Next
		}
		b.DynamicChain = chain
		if b.Type == record.PropertyArray {
			b.DynamicValue = data
		} else {
			b.DynamicValue = string(data)
		}
		b.Loaded = true
	}
	return nil
}

// Close releases every ID generator's sequence and closes the
// underlying database.
func (s *BadgerStore) Close() error {
	for _, g := range s.gens {
		_ = g.release()
	}
	return s.db.Close()
}
