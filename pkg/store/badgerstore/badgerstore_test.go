package badgerstore

import (
	"testing"

	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/store"
	"github.com/kerngraph/kerndb/pkg/walog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(t.TempDir(), walog.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerStore_GetMissingReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetNode(record.NodeID(1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBadgerStore_UpdateThenGetRoundTrips(t *testing.T) {
	s := openTestStore(t)
	n := record.NewNode(record.NodeID(1))
	n.NextRel = record.RelationshipID(7)
	require.NoError(t, s.UpdateNode(n))

	got, err := s.GetNode(record.NodeID(1))
	require.NoError(t, err)
	assert.Equal(t, record.RelationshipID(7), got.NextRel)
}

func TestBadgerStore_PropertyRecordRoundTripsWithBlocks(t *testing.T) {
	s := openTestStore(t)
	rec := &record.PropertyRecord{
		ID:    1,
		InUse: true,
		Blocks: []*record.PropertyBlock{
			{KeyIndexID: 1, Type: record.PropertyInt, InUse: true, InlineValue: int32(42)},
		},
	}
	require.NoError(t, s.UpdateProperty(rec))

	got, err := s.GetProperty(1)
	require.NoError(t, err)
	require.Len(t, got.Blocks, 1)
	assert.Equal(t, int32(42), got.Blocks[0].InlineValue)
}

func TestBadgerStore_IDGenerator_AllocatesSequentiallyAndPersistsFreeList(t *testing.T) {
	s := openTestStore(t)
	gen := s.IDGenerator(record.NodeKind)

	id0, err := gen.NextID()
	require.NoError(t, err)
	id1, err := gen.NextID()
	require.NoError(t, err)
	assert.NotEqual(t, id0, id1)

	require.NoError(t, gen.FreeID(id0))
	reused, err := gen.NextID()
	require.NoError(t, err)
	assert.Equal(t, id0, reused)
}

func TestBadgerStore_MakeHeavy_ResolvesStringChain(t *testing.T) {
	s := openTestStore(t)
	d0 := &record.DynamicRecord{ID: 10, InUse: true, Kind: record.DynamicStringKind, Next: 11, Data: []byte("ba")}
	d1 := &record.DynamicRecord{ID: 11, InUse: true, Kind: record.DynamicStringKind, Next: record.NoDynamicID, Data: []byte("dger")}
	require.NoError(t, s.UpdateDynamic(d0))
	require.NoError(t, s.UpdateDynamic(d1))

	block := &record.PropertyBlock{Type: record.PropertyString, FirstDynamicID: 10}
	rec := &record.PropertyRecord{Blocks: []*record.PropertyBlock{block}}

	require.NoError(t, s.MakeHeavy(rec))
	assert.Equal(t, "badger", block.DynamicValue)
}
