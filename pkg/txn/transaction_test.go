package txn

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/kerngraph/kerndb/pkg/lock"
	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/store/memstore"
	"github.com/kerngraph/kerndb/pkg/walog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st := memstore.New()
	locks := lock.NewInProcessManager()
	logPath := filepath.Join(t.TempDir(), "test.wal")
	log, err := walog.Open(logPath, walog.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return NewEngine(st, locks, log, nil, 64)
}

func mustCommit(t *testing.T, tx *Transaction) uint64 {
	t.Helper()
	require.NoError(t, tx.Prepare())
	id, err := tx.Commit()
	require.NoError(t, err)
	return id
}

func TestNodeCreate_CommitPersists(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(record.NodeID(1)))
	assert.False(t, tx.IsReadOnly())
	mustCommit(t, tx)

	tx2 := e.Begin()
	n, err := tx2.LoadLightNode(record.NodeID(1))
	require.NoError(t, err)
	assert.True(t, n.InUse)
	assert.Equal(t, record.NoRelID, n.NextRel)
}

func TestRelationshipCreate_ChainSymmetryBetweenDistinctNodes(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	require.NoError(t, tx.NodeCreate(2))
	require.NoError(t, tx.RelationshipCreate(10, 1, 1, 2))
	mustCommit(t, tx)

	tx2 := e.Begin()
	n1, err := tx2.LoadLightNode(1)
	require.NoError(t, err)
	n2, err := tx2.LoadLightNode(2)
	require.NoError(t, err)
	assert.Equal(t, record.RelationshipID(10), n1.NextRel)
	assert.Equal(t, record.RelationshipID(10), n2.NextRel)

	rel, err := tx2.LoadLightRelationship(10)
	require.NoError(t, err)
	assert.Equal(t, record.NoRelID, rel.FirstPrevRel)
	assert.Equal(t, record.NoRelID, rel.FirstNextRel)
	assert.Equal(t, record.NoRelID, rel.SecondPrevRel)
	assert.Equal(t, record.NoRelID, rel.SecondNextRel)
}

func TestRelationshipCreate_SecondRelationshipBecomesNewHead(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	require.NoError(t, tx.NodeCreate(2))
	require.NoError(t, tx.NodeCreate(3))
	require.NoError(t, tx.RelationshipCreate(10, 1, 1, 2))
	require.NoError(t, tx.RelationshipCreate(11, 1, 1, 3))
	mustCommit(t, tx)

	tx2 := e.Begin()
	n1, err := tx2.LoadLightNode(1)
	require.NoError(t, err)
	assert.Equal(t, record.RelationshipID(11), n1.NextRel, "second relationship becomes the new head")

	rel11, err := tx2.LoadLightRelationship(11)
	require.NoError(t, err)
	assert.Equal(t, record.RelationshipID(10), rel11.FirstNextRel)
	assert.Equal(t, record.NoRelID, rel11.FirstPrevRel)

	rel10, err := tx2.LoadLightRelationship(10)
	require.NoError(t, err)
	assert.Equal(t, record.RelationshipID(11), rel10.FirstPrevRel, "old head now points back to the new head")
}

func TestRelationshipCreate_SelfLoopDoesNotAlias(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	require.NoError(t, tx.RelationshipCreate(10, 1, 1, 1))
	mustCommit(t, tx)

	tx2 := e.Begin()
	n1, err := tx2.LoadLightNode(1)
	require.NoError(t, err)
	assert.Equal(t, record.RelationshipID(10), n1.NextRel)

	rel, err := tx2.LoadLightRelationship(10)
	require.NoError(t, err)
	assert.Equal(t, record.NoRelID, rel.FirstNextRel)
	assert.Equal(t, record.NoRelID, rel.SecondNextRel)
}

func TestRelationshipDelete_HeadRelationshipUpdatesNodeHead(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	require.NoError(t, tx.NodeCreate(2))
	require.NoError(t, tx.NodeCreate(3))
	require.NoError(t, tx.RelationshipCreate(10, 1, 1, 2))
	require.NoError(t, tx.RelationshipCreate(11, 1, 1, 3))
	mustCommit(t, tx)

	tx2 := e.Begin()
	_, err := tx2.RelationshipDelete(11)
	require.NoError(t, err)
	mustCommit(t, tx2)

	tx3 := e.Begin()
	n1, err := tx3.LoadLightNode(1)
	require.NoError(t, err)
	assert.Equal(t, record.RelationshipID(10), n1.NextRel)

	rel10, err := tx3.LoadLightRelationship(10)
	require.NoError(t, err)
	assert.Equal(t, record.NoRelID, rel10.FirstPrevRel)
}

func TestRelationshipDelete_MiddleRelationshipSplicesNeighbors(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	require.NoError(t, tx.NodeCreate(2))
	require.NoError(t, tx.NodeCreate(3))
	require.NoError(t, tx.NodeCreate(4))
	require.NoError(t, tx.RelationshipCreate(10, 1, 1, 2))
	require.NoError(t, tx.RelationshipCreate(11, 1, 1, 3))
	require.NoError(t, tx.RelationshipCreate(12, 1, 1, 4))
	mustCommit(t, tx)

	tx2 := e.Begin()
	_, err := tx2.RelationshipDelete(11)
	require.NoError(t, err)
	mustCommit(t, tx2)

	tx3 := e.Begin()
	rel12, err := tx3.LoadLightRelationship(12)
	require.NoError(t, err)
	assert.Equal(t, record.RelationshipID(10), rel12.FirstNextRel)

	rel10, err := tx3.LoadLightRelationship(10)
	require.NoError(t, err)
	assert.Equal(t, record.RelationshipID(12), rel10.FirstPrevRel)
}

func TestNodeDelete_PrepareRejectsNodeWithLiveRelationship(t *testing.T) {
	e := newTestEngine(t)
	setup := e.Begin()
	require.NoError(t, setup.NodeCreate(1))
	require.NoError(t, setup.NodeCreate(2))
	require.NoError(t, setup.RelationshipCreate(10, 1, 1, 2))
	mustCommit(t, setup)

	tx := e.Begin()
	_, err := tx.NodeDelete(1)
	require.NoError(t, err)
	err = tx.Prepare()
	var integrityErr ErrIntegrityViolation
	assert.ErrorAs(t, err, &integrityErr)
}

func TestNodeDelete_ThenRelationshipDeleteCommitsCleanly(t *testing.T) {
	e := newTestEngine(t)
	setup := e.Begin()
	require.NoError(t, setup.NodeCreate(1))
	require.NoError(t, setup.NodeCreate(2))
	require.NoError(t, setup.RelationshipCreate(10, 1, 1, 2))
	mustCommit(t, setup)

	tx := e.Begin()
	_, err := tx.RelationshipDelete(10)
	require.NoError(t, err)
	_, err = tx.NodeDelete(1)
	require.NoError(t, err)
	mustCommit(t, tx)
}

func TestAddProperty_OverflowCreatesNewHeadRecord(t *testing.T) {
	st := memstore.New()
	locks := lock.NewInProcessManager()
	logPath := filepath.Join(t.TempDir(), "overflow.wal")
	log, err := walog.Open(logPath, walog.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	e := NewEngine(st, locks, log, nil, 40) // two 16-byte long blocks fit, a third does not
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	p1, err := tx.NodeAddProperty(1, 1, int64(100))
	require.NoError(t, err)
	p2, err := tx.NodeAddProperty(1, 2, int64(200))
	require.NoError(t, err)
	p3, err := tx.NodeAddProperty(1, 3, int64(300))
	require.NoError(t, err)

	assert.Equal(t, p1.PropertyID, p2.PropertyID, "first two blocks share the first record")
	assert.NotEqual(t, p2.PropertyID, p3.PropertyID, "third block overflows into a new head record")

	mustCommit(t, tx)

	tx2 := e.Begin()
	n, err := tx2.LoadLightNode(1)
	require.NoError(t, err)
	assert.Equal(t, p3.PropertyID, n.NextProp, "newest record is the chain head")

	props, err := tx2.LoadProperties(record.NodeKind, 1, false)
	require.NoError(t, err)
	assert.Len(t, props, 3)
}

func TestChangeProperty_InPlaceForSameSizeInlineType(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	pd, err := tx.NodeAddProperty(1, 1, int64(42))
	require.NoError(t, err)
	mustCommit(t, tx)

	tx2 := e.Begin()
	updated, err := tx2.NodeChangeProperty(1, pd, int64(99))
	require.NoError(t, err)
	assert.Equal(t, pd.PropertyID, updated.PropertyID, "same-type change mutates in place")
	mustCommit(t, tx2)

	tx3 := e.Begin()
	props, err := tx3.LoadProperties(record.NodeKind, 1, false)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, int64(99), props[0].Value)
}

func TestChangeProperty_StringRoundTrips(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	pd, err := tx.NodeAddProperty(1, 1, "short")
	require.NoError(t, err)
	mustCommit(t, tx)

	tx2 := e.Begin()
	longer := "a much longer replacement string that spans more than one dynamic chunk of bytes"
	updated, err := tx2.NodeChangeProperty(1, pd, longer)
	require.NoError(t, err)
	mustCommit(t, tx2)

	tx3 := e.Begin()
	props, err := tx3.LoadProperties(record.NodeKind, 1, false)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, longer, props[0].Value)
	assert.Equal(t, record.PropertyIndexID(1), updated.KeyIndexID)
}

func TestRemoveProperty_UnlinksEmptyRecord(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	pd, err := tx.NodeAddProperty(1, 1, int64(7))
	require.NoError(t, err)
	mustCommit(t, tx)

	tx2 := e.Begin()
	require.NoError(t, tx2.NodeRemoveProperty(1, pd))
	mustCommit(t, tx2)

	tx3 := e.Begin()
	n, err := tx3.LoadLightNode(1)
	require.NoError(t, err)
	assert.Equal(t, record.NoPropID, n.NextProp)
}

func TestRemoveProperty_MissingBlockErrors(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	pd, err := tx.NodeAddProperty(1, 1, int64(7))
	require.NoError(t, err)
	mustCommit(t, tx)

	tx2 := e.Begin()
	require.NoError(t, tx2.NodeRemoveProperty(1, pd))
	err = tx2.NodeRemoveProperty(1, pd)
	var missing ErrMissingBlock
	assert.ErrorAs(t, err, &missing)
}

func TestNodeDelete_ReturnsLivePropertyValues(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	_, err := tx.NodeAddProperty(1, 1, int64(5))
	require.NoError(t, err)
	_, err = tx.NodeAddProperty(1, 2, "hello")
	require.NoError(t, err)
	mustCommit(t, tx)

	tx2 := e.Begin()
	props, err := tx2.NodeDelete(1)
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, int64(5), props[1].Value)
	assert.Equal(t, "hello", props[2].Value)
}

func TestNodeDelete_AlreadyDeletedErrors(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	_, err := tx.NodeDelete(1)
	require.NoError(t, err)
	_, err = tx.NodeDelete(1)
	var already ErrAlreadyDeleted
	assert.ErrorAs(t, err, &already)
}

func TestRollback_FreesAllocatedIDs(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	pd, err := tx.NodeAddProperty(1, 1, "a string long enough to need a dynamic chain of bytes")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	reused, err := e.Store().IDGenerator(record.PropertyKind).NextID()
	require.NoError(t, err)
	assert.Equal(t, uint64(pd.PropertyID), reused, "rolled-back property record ID is handed out again")

	tx2 := e.Begin()
	_, err = tx2.LoadLightNode(1)
	assert.Error(t, err, "rolled-back node was never written to the store")
}

func TestCommit_SequentialTxIDs(t *testing.T) {
	e := newTestEngine(t)
	tx1 := e.Begin()
	require.NoError(t, tx1.NodeCreate(1))
	id1 := mustCommit(t, tx1)
	assert.Equal(t, uint64(1), id1)

	tx2 := e.Begin()
	require.NoError(t, tx2.NodeCreate(2))
	id2 := mustCommit(t, tx2)
	assert.Equal(t, uint64(2), id2)
}

func TestCommitAt_RejectsOutOfOrderCommit(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.NodeCreate(1))
	require.NoError(t, tx.Prepare())
	_, err := tx.CommitAt(5)
	var outOfOrder ErrOutOfOrderCommit
	assert.ErrorAs(t, err, &outOfOrder)
	assert.Equal(t, uint64(0), e.LastCommittedTx())
}

func TestCreateRelationshipTypeAndPropertyIndex_NamesRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	tx := e.Begin()
	require.NoError(t, tx.CreateRelationshipType(1, "KNOWS"))
	require.NoError(t, tx.CreatePropertyIndex("name", 1))
	mustCommit(t, tx)

	rt, err := e.store.GetRelationshipType(1)
	require.NoError(t, err)
	assert.Equal(t, "KNOWS", rt.Name)
	assert.NotEqual(t, record.NoDynamicID, rt.TypeBlockID)

	pi, err := e.store.GetPropertyIndex(1)
	require.NoError(t, err)
	assert.Equal(t, "name", pi.Name)

	d, err := e.store.GetDynamic(record.DynamicStringKind, rt.TypeBlockID)
	require.NoError(t, err)
	assert.Equal(t, "KNOWS", string(d.Data))
}

// assertChainSymmetric loads every relationship in ids and, for each of
// its four chain pointers, follows it and checks that the neighbor
// points back. A neighbor that is itself a self-loop on the shared
// endpoint faces that endpoint on both sides at once, so both of the
// neighbor's pointers on that endpoint are checked independently rather
// than picking one.
func assertChainSymmetric(t *testing.T, tx *Transaction, ids []record.RelationshipID) {
	t.Helper()
	for _, id := range ids {
		rel, err := tx.LoadLightRelationship(id)
		require.NoError(t, err)
		if !rel.InUse {
			continue
		}

		if rel.FirstNextRel != record.NoRelID {
			next, err := tx.LoadLightRelationship(rel.FirstNextRel)
			require.NoError(t, err)
			nf, ns := next.FirstNode == rel.FirstNode, next.SecondNode == rel.FirstNode
			if nf {
				assert.Equal(t, id, next.FirstPrevRel)
			}
			if ns {
				assert.Equal(t, id, next.SecondPrevRel)
			}
		}
		if rel.SecondNextRel != record.NoRelID {
			next, err := tx.LoadLightRelationship(rel.SecondNextRel)
			require.NoError(t, err)
			nf, ns := next.FirstNode == rel.SecondNode, next.SecondNode == rel.SecondNode
			if nf {
				assert.Equal(t, id, next.FirstPrevRel)
			}
			if ns {
				assert.Equal(t, id, next.SecondPrevRel)
			}
		}
	}
}

// TestRelationshipChain_SymmetryHoldsOverRandomGraphs builds random
// graphs of nodes and relationships, deliberately mixing self-loops in
// with ordinary edges on the same nodes, and checks after every commit
// that the doubly-linked chains stay symmetric: whichever side of a
// neighbor record faces a shared endpoint, that side's back-pointer
// must name the relationship that pointed at it. A self-loop head with
// a second, ordinary relationship spliced onto the same node is exactly
// the case that breaks when only one side of the neighbor gets patched.
func TestRelationshipChain_SymmetryHoldsOverRandomGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 20; trial++ {
		e := newTestEngine(t)
		tx := e.Begin()

		nodeCount := 3 + rng.Intn(6)
		nodes := make([]record.NodeID, nodeCount)
		for i := range nodes {
			nodes[i] = record.NodeID(i + 1)
			require.NoError(t, tx.NodeCreate(nodes[i]))
		}

		relCount := 4 + rng.Intn(10)
		var relIDs []record.RelationshipID
		for i := 0; i < relCount; i++ {
			id := record.RelationshipID(i + 1)
			a := nodes[rng.Intn(len(nodes))]
			b := a
			if rng.Intn(3) != 0 {
				// two times out of three, an ordinary edge between
				// distinct nodes; otherwise a deliberate self-loop.
				b = nodes[rng.Intn(len(nodes))]
			}
			require.NoError(t, tx.RelationshipCreate(id, 1, a, b))
			relIDs = append(relIDs, id)
		}
		mustCommit(t, tx)

		tx2 := e.Begin()
		assertChainSymmetric(t, tx2, relIDs)

		// delete a random subset and check symmetry survives splicing too.
		for _, id := range relIDs {
			if rng.Intn(2) == 0 {
				_, err := tx2.RelationshipDelete(id)
				require.NoError(t, err)
			}
		}
		mustCommit(t, tx2)

		tx3 := e.Begin()
		assertChainSymmetric(t, tx3, relIDs)
	}
}
