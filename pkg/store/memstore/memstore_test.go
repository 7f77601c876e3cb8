package memstore

import (
	"testing"

	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_GetMissingReturnsErrNotFound(t *testing.T) {
	m := New()
	_, err := m.GetNode(record.NodeID(1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemStore_UpdateThenGetRoundTrips(t *testing.T) {
	m := New()
	n := record.NewNode(record.NodeID(1))
	n.NextRel = record.RelationshipID(5)
	require.NoError(t, m.UpdateNode(n))

	got, err := m.GetNode(record.NodeID(1))
	require.NoError(t, err)
	assert.Equal(t, record.RelationshipID(5), got.NextRel)
}

func TestMemStore_GetReturnsIndependentCopy(t *testing.T) {
	m := New()
	require.NoError(t, m.UpdateNode(record.NewNode(record.NodeID(1))))

	got, err := m.GetNode(record.NodeID(1))
	require.NoError(t, err)
	got.NextRel = record.RelationshipID(99)

	got2, err := m.GetNode(record.NodeID(1))
	require.NoError(t, err)
	assert.Equal(t, record.NoRelID, got2.NextRel, "mutating a returned copy must not affect the store")
}

func TestMemStore_IDGenerator_AllocatesSequentially(t *testing.T) {
	m := New()
	gen := m.IDGenerator(record.NodeKind)

	id0, err := gen.NextID()
	require.NoError(t, err)
	id1, err := gen.NextID()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id0)
	assert.Equal(t, uint64(1), id1)
}

func TestMemStore_IDGenerator_ReusesFreedIDs(t *testing.T) {
	m := New()
	gen := m.IDGenerator(record.NodeKind)

	id0, _ := gen.NextID()
	_, _ = gen.NextID()
	require.NoError(t, gen.FreeID(id0))

	reused, err := gen.NextID()
	require.NoError(t, err)
	assert.Equal(t, id0, reused)
	assert.Equal(t, uint64(1), gen.DefragCount())
}

func TestMemStore_IDGenerator_NextIDBatch(t *testing.T) {
	m := New()
	gen := m.IDGenerator(record.RelationshipKind)

	ids, err := gen.NextIDBatch(1000)
	require.NoError(t, err)
	assert.Len(t, ids, 1000)
	assert.Equal(t, uint64(0), ids[0])
	assert.Equal(t, uint64(999), ids[999])
	assert.Equal(t, uint64(999), gen.HighID())
}

func TestMemStore_MakeHeavy_ResolvesStringChain(t *testing.T) {
	m := New()
	d0 := &record.DynamicRecord{ID: 0, InUse: true, Kind: record.DynamicStringKind, Next: 1, Data: []byte("hel")}
	d1 := &record.DynamicRecord{ID: 1, InUse: true, Kind: record.DynamicStringKind, Next: record.NoDynamicID, Data: []byte("lo")}
	require.NoError(t, m.UpdateDynamic(d0))
	require.NoError(t, m.UpdateDynamic(d1))

	block := &record.PropertyBlock{Type: record.PropertyString, FirstDynamicID: 0}
	rec := &record.PropertyRecord{Blocks: []*record.PropertyBlock{block}}

	require.NoError(t, m.MakeHeavy(rec))
	assert.True(t, block.Loaded)
	assert.Equal(t, "hello", block.DynamicValue)
	assert.Equal(t, []record.DynamicID{0, 1}, block.DynamicChain)
}

func TestMemStore_RecoveryMode_RefreshesGeneratorWithoutFreeList(t *testing.T) {
	m := New()
	m.SetRecoveryMode(true)
	require.NoError(t, m.UpdateNode(&record.Node{ID: 50, InUse: true, NextRel: record.NoRelID, NextProp: record.NoPropID}))

	gen := m.IDGenerator(record.NodeKind)
	next, err := gen.NextID()
	require.NoError(t, err)
	assert.Equal(t, uint64(51), next, "recovery must bump past replayed IDs, not reuse them")
}
