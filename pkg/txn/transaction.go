package txn

import (
	"context"
	"fmt"

	"github.com/kerngraph/kerndb/pkg/lock"
	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/store"
	"github.com/kerngraph/kerndb/pkg/walog"
)

type txState int

const (
	txActive txState = iota
	txPrepared
	txCommitted
	txRolledBack
)

func (s txState) String() string {
	switch s {
	case txActive:
		return "active"
	case txPrepared:
		return "prepared"
	case txCommitted:
		return "committed"
	case txRolledBack:
		return "rolled back"
	default:
		return "unknown"
	}
}

// Transaction stages mutations against per-kind in-memory maps keyed by
// record ID. A record entering a map is always the single live copy of
// that record for the lifetime of the transaction: every load call
// returns the same pointer, so two mutations touching the same record
// (including a relationship's two endpoints colliding on a self-loop)
// accumulate onto one object instead of aliasing two independent ones.
type Transaction struct {
	engine *Engine
	ctx    context.Context
	holder lock.TxID
	locks  *lock.Releaser
	state  txState

	nodes    map[record.NodeID]*record.Node
	rels     map[record.RelationshipID]*record.Relationship
	props    map[record.PropertyID]*record.PropertyRecord
	propIdx  map[record.PropertyIndexID]*record.PropertyIndex
	relTypes map[record.RelationshipTypeID]*record.RelationshipType
	dyn      map[record.Kind]map[record.DynamicID]*record.DynamicRecord

	readOnly bool
}

func newTransaction(e *Engine, holder lock.TxID) *Transaction {
	return &Transaction{
		engine:   e,
		ctx:      context.Background(),
		holder:   holder,
		locks:    lock.NewReleaser(e.locks, holder),
		nodes:    make(map[record.NodeID]*record.Node),
		rels:     make(map[record.RelationshipID]*record.Relationship),
		props:    make(map[record.PropertyID]*record.PropertyRecord),
		propIdx:  make(map[record.PropertyIndexID]*record.PropertyIndex),
		relTypes: make(map[record.RelationshipTypeID]*record.RelationshipType),
		dyn: map[record.Kind]map[record.DynamicID]*record.DynamicRecord{
			record.DynamicStringKind: make(map[record.DynamicID]*record.DynamicRecord),
			record.DynamicArrayKind:  make(map[record.DynamicID]*record.DynamicRecord),
		},
		state:    txActive,
		readOnly: true,
	}
}

// WithContext returns the same transaction with its lock-acquisition
// context replaced, so a caller can bound how long a mutation will wait
// on contended locks.
func (tx *Transaction) WithContext(ctx context.Context) *Transaction {
	tx.ctx = ctx
	return tx
}

// IsReadOnly reports whether no mutating call has been made on this
// transaction yet.
func (tx *Transaction) IsReadOnly() bool { return tx.readOnly }

func (tx *Transaction) requireActive() error {
	if tx.state != txActive {
		return ErrTransactionClosed{State: tx.state.String()}
	}
	return nil
}

func (tx *Transaction) acquireLock(key lock.Key, mode lock.Mode) error {
	return tx.locks.Acquire(tx.ctx, mode, key)
}

// --- load/stage helpers: staging maps double as a read-through cache
// for the lifetime of the transaction. ---

func (tx *Transaction) loadNode(id record.NodeID) (*record.Node, error) {
	if n, ok := tx.nodes[id]; ok {
		return n, nil
	}
	n, err := tx.engine.store.GetNode(id)
	if err != nil {
		return nil, err
	}
	tx.nodes[id] = n
	return n, nil
}

func (tx *Transaction) stageNode(n *record.Node) { tx.nodes[n.ID] = n }

func (tx *Transaction) loadRelationship(id record.RelationshipID) (*record.Relationship, error) {
	if r, ok := tx.rels[id]; ok {
		return r, nil
	}
	r, err := tx.engine.store.GetRelationship(id)
	if err != nil {
		return nil, err
	}
	tx.rels[id] = r
	return r, nil
}

func (tx *Transaction) stageRelationship(r *record.Relationship) { tx.rels[r.ID] = r }

func (tx *Transaction) loadProperty(id record.PropertyID) (*record.PropertyRecord, error) {
	if p, ok := tx.props[id]; ok {
		return p, nil
	}
	p, err := tx.engine.store.GetProperty(id)
	if err != nil {
		return nil, err
	}
	tx.props[id] = p
	return p, nil
}

func (tx *Transaction) stageProperty(p *record.PropertyRecord) { tx.props[p.ID] = p }

func (tx *Transaction) loadDynamic(kind record.Kind, id record.DynamicID) (*record.DynamicRecord, error) {
	if d, ok := tx.dyn[kind][id]; ok {
		return d, nil
	}
	d, err := tx.engine.store.GetDynamic(kind, id)
	if err != nil {
		return nil, err
	}
	tx.dyn[kind][id] = d
	return d, nil
}

func (tx *Transaction) stageDynamic(d *record.DynamicRecord) {
	if tx.dyn[d.Kind] == nil {
		tx.dyn[d.Kind] = make(map[record.DynamicID]*record.DynamicRecord)
	}
	tx.dyn[d.Kind][d.ID] = d
}

func (tx *Transaction) nextID(kind record.Kind) (uint64, error) {
	return tx.engine.store.IDGenerator(kind).NextID()
}

func (tx *Transaction) ownerNextProp(ownerKind record.Kind, ownerID uint64) (record.PropertyID, error) {
	switch ownerKind {
	case record.NodeKind:
		n, err := tx.loadNode(record.NodeID(ownerID))
		if err != nil {
			return 0, err
		}
		return n.NextProp, nil
	case record.RelationshipKind:
		r, err := tx.loadRelationship(record.RelationshipID(ownerID))
		if err != nil {
			return 0, err
		}
		return r.NextProp, nil
	default:
		return 0, fmt.Errorf("txn: unsupported property owner kind %v", ownerKind)
	}
}

func (tx *Transaction) setOwnerNextProp(ownerKind record.Kind, ownerID uint64, propID record.PropertyID) error {
	switch ownerKind {
	case record.NodeKind:
		n, err := tx.loadNode(record.NodeID(ownerID))
		if err != nil {
			return err
		}
		n.NextProp = propID
		tx.stageNode(n)
		return nil
	case record.RelationshipKind:
		r, err := tx.loadRelationship(record.RelationshipID(ownerID))
		if err != nil {
			return err
		}
		r.NextProp = propID
		tx.stageRelationship(r)
		return nil
	default:
		return fmt.Errorf("txn: unsupported property owner kind %v", ownerKind)
	}
}

// --- node and relationship lifecycle ---

// NodeCreate stages a new, empty node record under id.
func (tx *Transaction) NodeCreate(id record.NodeID) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.readOnly = false
	tx.stageNode(record.NewNode(id))
	return nil
}

// NodeDelete stages the node as not-in-use and unlinks its property
// chain, returning the live property values it carried. It does not
// touch the node's relationship chain: deleting a node that still has
// relationships is only rejected at Prepare, by I-NODE-CLEAN.
func (tx *Transaction) NodeDelete(id record.NodeID) (map[record.PropertyIndexID]record.PropertyData, error) {
	if err := tx.requireActive(); err != nil {
		return nil, err
	}
	n, err := tx.loadNode(id)
	if err != nil {
		return nil, err
	}
	if !n.InUse {
		return nil, ErrAlreadyDeleted{Kind: record.NodeKind, ID: uint64(id)}
	}
	tx.readOnly = false
	props, err := tx.deletePropertyChain(record.NodeKind, uint64(id))
	if err != nil {
		return nil, err
	}
	n.InUse = false
	tx.stageNode(n)
	return props, nil
}

// RelationshipCreate stages a new relationship and splices it onto the
// head of both endpoints' relationship chains.
func (tx *Transaction) RelationshipCreate(id record.RelationshipID, typeID record.RelationshipTypeID, firstNode, secondNode record.NodeID) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.readOnly = false
	fn, err := tx.loadNode(firstNode)
	if err != nil {
		return err
	}
	sn, err := tx.loadNode(secondNode)
	if err != nil {
		return err
	}
	rel := record.NewRelationship(id, typeID, firstNode, secondNode)
	return tx.connectRelationship(rel, fn, sn)
}

// RelationshipDelete unlinks the relationship from both endpoint chains
// and their neighbors, removes its property chain, and stages it as
// not-in-use. Its FirstNode/SecondNode fields are left untouched.
func (tx *Transaction) RelationshipDelete(id record.RelationshipID) (map[record.PropertyIndexID]record.PropertyData, error) {
	if err := tx.requireActive(); err != nil {
		return nil, err
	}
	rel, err := tx.loadRelationship(id)
	if err != nil {
		return nil, err
	}
	if !rel.InUse {
		return nil, ErrAlreadyDeleted{Kind: record.RelationshipKind, ID: uint64(id)}
	}
	tx.readOnly = false
	props, err := tx.deletePropertyChain(record.RelationshipKind, uint64(id))
	if err != nil {
		return nil, err
	}
	if err := tx.disconnectRelationship(rel); err != nil {
		return nil, err
	}
	return props, nil
}

// CreateRelationshipType stages a new relationship-type record whose
// name is written as a dynamic string chain.
func (tx *Transaction) CreateRelationshipType(id record.RelationshipTypeID, name string) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.readOnly = false
	head, chain, err := tx.allocateDynamicChain(record.DynamicStringKind, []byte(name))
	if err != nil {
		return err
	}
	rt := &record.RelationshipType{ID: id, InUse: true, TypeBlockID: head, TypeRecords: chain, Name: name, Created: true}
	tx.relTypes[id] = rt
	return nil
}

// CreatePropertyIndex stages a new property-index record whose key is
// written as a dynamic string chain.
func (tx *Transaction) CreatePropertyIndex(key string, id record.PropertyIndexID) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.readOnly = false
	head, chain, err := tx.allocateDynamicChain(record.DynamicStringKind, []byte(key))
	if err != nil {
		return err
	}
	pi := &record.PropertyIndex{ID: id, InUse: true, KeyBlockID: head, KeyRecords: chain, Name: key, Created: true}
	tx.propIdx[id] = pi
	return nil
}

// InjectCommand stages cmd's record directly into this transaction's
// maps, bypassing the mutation wrappers above. It is how a transaction
// is reconstituted from a command stream instead of built up by calls
// like NodeCreate/RelationshipCreate: the master coordinator uses it to
// apply a slave's already-prepared commands at commit time, and
// recovery uses the same per-command shape (recoveryBatch.absorb) to
// rebuild a batch straight from the log. The record is staged exactly
// as received, so whatever chain-patching and InUse/Created state the
// original preparer computed travels with it unchanged.
func (tx *Transaction) InjectCommand(cmd walog.Command) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.readOnly = false
	switch cmd.Type {
	case walog.NodeCommandType:
		tx.stageNode(cmd.Node)
	case walog.RelationshipCommandType:
		tx.stageRelationship(cmd.Relationship)
	case walog.PropertyCommandType:
		tx.stageProperty(cmd.Property)
	case walog.PropertyIndexCommandType:
		tx.propIdx[cmd.PropertyIndex.ID] = cmd.PropertyIndex
	case walog.RelationshipTypeCommandType:
		tx.relTypes[cmd.RelationshipType.ID] = cmd.RelationshipType
	case walog.DynamicCommandType:
		tx.stageDynamic(cmd.Dynamic)
	default:
		return fmt.Errorf("txn: cannot inject command of type %v", cmd.Type)
	}
	return nil
}

// --- property mutation wrappers ---

func (tx *Transaction) NodeAddProperty(owner record.NodeID, index record.PropertyIndexID, value any) (record.PropertyData, error) {
	if err := tx.requireActive(); err != nil {
		return record.PropertyData{}, err
	}
	tx.readOnly = false
	return tx.addProperty(record.NodeKind, uint64(owner), index, value)
}

func (tx *Transaction) RelAddProperty(owner record.RelationshipID, index record.PropertyIndexID, value any) (record.PropertyData, error) {
	if err := tx.requireActive(); err != nil {
		return record.PropertyData{}, err
	}
	tx.readOnly = false
	return tx.addProperty(record.RelationshipKind, uint64(owner), index, value)
}

func (tx *Transaction) NodeChangeProperty(owner record.NodeID, old record.PropertyData, newValue any) (record.PropertyData, error) {
	if err := tx.requireActive(); err != nil {
		return record.PropertyData{}, err
	}
	tx.readOnly = false
	return tx.changeProperty(record.NodeKind, uint64(owner), old, newValue)
}

func (tx *Transaction) RelChangeProperty(owner record.RelationshipID, old record.PropertyData, newValue any) (record.PropertyData, error) {
	if err := tx.requireActive(); err != nil {
		return record.PropertyData{}, err
	}
	tx.readOnly = false
	return tx.changeProperty(record.RelationshipKind, uint64(owner), old, newValue)
}

func (tx *Transaction) NodeRemoveProperty(owner record.NodeID, target record.PropertyData) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.readOnly = false
	return tx.removeProperty(record.NodeKind, uint64(owner), target)
}

func (tx *Transaction) RelRemoveProperty(owner record.RelationshipID, target record.PropertyData) error {
	if err := tx.requireActive(); err != nil {
		return err
	}
	tx.readOnly = false
	return tx.removeProperty(record.RelationshipKind, uint64(owner), target)
}

// --- light reads ---

func (tx *Transaction) LoadLightNode(id record.NodeID) (*record.Node, error) {
	return tx.loadNode(id)
}

func (tx *Transaction) LoadLightRelationship(id record.RelationshipID) (*record.Relationship, error) {
	return tx.loadRelationship(id)
}

// LoadProperties walks the owner's property chain and returns every
// live block's value. When light is true, dynamic STRING/ARRAY chains
// are not read: a block that already carries its value (Loaded, as
// every block this engine writes does) returns it, and one that does
// not returns nil until a heavy load resolves it; this mirrors the
// light/heavy split the store itself offers for single records.
func (tx *Transaction) LoadProperties(ownerKind record.Kind, ownerID uint64, light bool) ([]record.PropertyData, error) {
	head, err := tx.ownerNextProp(ownerKind, ownerID)
	if err != nil {
		return nil, err
	}
	var out []record.PropertyData
	cur := head
	for cur != record.NoPropID {
		rec, err := tx.loadProperty(cur)
		if err != nil {
			return nil, err
		}
		if !light {
			if err := tx.makeHeavy(rec); err != nil {
				return nil, err
			}
		}
		for _, b := range rec.Blocks {
			if !b.InUse {
				continue
			}
			val := b.InlineValue
			if b.Type.IsDynamic() {
				val = b.DynamicValue
			}
			out = append(out, record.PropertyData{PropertyID: rec.ID, KeyIndexID: b.KeyIndexID, Value: val})
		}
		cur = rec.NextProp
	}
	return out, nil
}

// makeHeavy resolves every unresolved dynamic block in rec using this
// transaction's staged dynamic records first, falling back to the
// store, so a block written earlier in the same transaction is visible
// without a round trip to the store.
func (tx *Transaction) makeHeavy(rec *record.PropertyRecord) error {
	for _, b := range rec.Blocks {
		if !b.Type.IsDynamic() || b.Loaded {
			continue
		}
		kind := store.KindForDynamicType(b.Type)
		var data []byte
		var chain []record.DynamicID
		cur := b.FirstDynamicID
		for cur != record.NoDynamicID {
			d, err := tx.loadDynamic(kind, cur)
			if err != nil {
				return err
			}
			data = append(data, d.Data...)
			chain = append(chain, d.ID)
			cur = d.Next
		}
		b.DynamicChain = chain
		if b.Type == record.PropertyArray {
			b.DynamicValue = append([]byte(nil), data...)
		} else {
			b.DynamicValue = string(data)
		}
		b.Loaded = true
	}
	return nil
}
