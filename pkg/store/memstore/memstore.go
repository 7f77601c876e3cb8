// Package memstore is an in-process, map-backed implementation of
// store.Store, grounded on the teacher's MemoryEngine: mutex-guarded
// maps with copy-on-read/copy-on-write semantics so callers never hold
// an alias into the store's internal state. It backs engine unit tests
// and graphkerneld's --in-memory mode.
package memstore

import (
	"sync"

	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/store"
)

// MemStore is a map-backed store.Store.
type MemStore struct {
	mu sync.RWMutex

	nodes      map[record.NodeID]*record.Node
	rels       map[record.RelationshipID]*record.Relationship
	props      map[record.PropertyID]*record.PropertyRecord
	propIdx    map[record.PropertyIndexID]*record.PropertyIndex
	relTypes   map[record.RelationshipTypeID]*record.RelationshipType
	dynStrings map[record.DynamicID]*record.DynamicRecord
	dynArrays  map[record.DynamicID]*record.DynamicRecord

	gens     map[record.Kind]*generator
	recovery bool
}

// New returns an empty MemStore with a fresh ID generator per record
// kind.
func New() *MemStore {
	m := &MemStore{
		nodes:      make(map[record.NodeID]*record.Node),
		rels:       make(map[record.RelationshipID]*record.Relationship),
		props:      make(map[record.PropertyID]*record.PropertyRecord),
		propIdx:    make(map[record.PropertyIndexID]*record.PropertyIndex),
		relTypes:   make(map[record.RelationshipTypeID]*record.RelationshipType),
		dynStrings: make(map[record.DynamicID]*record.DynamicRecord),
		dynArrays:  make(map[record.DynamicID]*record.DynamicRecord),
		gens:       make(map[record.Kind]*generator),
	}
	for _, k := range []record.Kind{
		record.NodeKind, record.RelationshipKind, record.PropertyKind,
		record.PropertyIndexKind, record.RelationshipTypeKind,
		record.DynamicStringKind, record.DynamicArrayKind,
	} {
		m.gens[k] = newGenerator()
	}
	return m
}

func (m *MemStore) IDGenerator(kind record.Kind) store.IDGenerator {
	return m.gens[kind]
}

func (m *MemStore) SetRecoveryMode(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovery = on
}

func (m *MemStore) GetNode(id record.NodeID) (*record.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return n.Clone(), nil
}

func (m *MemStore) LoadLightNode(id record.NodeID) (*record.Node, error) {
	return m.GetNode(id)
}

func (m *MemStore) UpdateNode(n *record.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n.Clone()
	if m.recovery {
		m.gens[record.NodeKind].refresh(uint64(n.ID))
	}
	return nil
}

func (m *MemStore) GetRelationship(id record.RelationshipID) (*record.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *MemStore) LoadLightRelationship(id record.RelationshipID) (*record.Relationship, error) {
	return m.GetRelationship(id)
}

func (m *MemStore) UpdateRelationship(r *record.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rels[r.ID] = r.Clone()
	if m.recovery {
		m.gens[record.RelationshipKind].refresh(uint64(r.ID))
	}
	return nil
}

func (m *MemStore) GetProperty(id record.PropertyID) (*record.PropertyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.props[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MemStore) UpdateProperty(p *record.PropertyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.props[p.ID] = p.Clone()
	if m.recovery {
		m.gens[record.PropertyKind].refresh(uint64(p.ID))
	}
	return nil
}

func (m *MemStore) GetPropertyIndex(id record.PropertyIndexID) (*record.PropertyIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pi, ok := m.propIdx[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return pi.Clone(), nil
}

func (m *MemStore) UpdatePropertyIndex(pi *record.PropertyIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.propIdx[pi.ID] = pi.Clone()
	if m.recovery {
		m.gens[record.PropertyIndexKind].refresh(uint64(pi.ID))
	}
	return nil
}

func (m *MemStore) GetRelationshipType(id record.RelationshipTypeID) (*record.RelationshipType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.relTypes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rt.Clone(), nil
}

func (m *MemStore) UpdateRelationshipType(rt *record.RelationshipType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relTypes[rt.ID] = rt.Clone()
	if m.recovery {
		m.gens[record.RelationshipTypeKind].refresh(uint64(rt.ID))
	}
	return nil
}

func (m *MemStore) dynMap(kind record.Kind) map[record.DynamicID]*record.DynamicRecord {
	if kind == record.DynamicArrayKind {
		return m.dynArrays
	}
	return m.dynStrings
}

func (m *MemStore) GetDynamic(kind record.Kind, id record.DynamicID) (*record.DynamicRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.dynMap(kind)[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d.Clone(), nil
}

func (m *MemStore) UpdateDynamic(d *record.DynamicRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dynMap(d.Kind)[d.ID] = d.Clone()
	if m.recovery {
		m.gens[d.Kind].refresh(uint64(d.ID))
	}
	return nil
}

// MakeHeavy resolves every unresolved STRING/ARRAY block in p by
// walking its dynamic chain to completion.
func (m *MemStore) MakeHeavy(p *record.PropertyRecord) error {
	for _, b := range p.Blocks {
		if !b.Type.IsDynamic() || b.Loaded {
			continue
		}
		kind := store.KindForDynamicType(b.Type)
		var data []byte
		var chain []record.DynamicID
		cur := b.FirstDynamicID
		for cur != record.NoDynamicID {
			d, err := m.GetDynamic(kind, cur)
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

func (m *MemStore) Close() error { return nil }
