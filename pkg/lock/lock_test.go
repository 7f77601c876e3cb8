package lock

import (
	"context"
	"testing"
	"time"

	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessManager_ReadLocksAreShared(t *testing.T) {
	m := NewInProcessManager()
	key := NodeKey(1)

	require.NoError(t, m.Acquire(context.Background(), 1, ReadLock, key))
	require.NoError(t, m.Acquire(context.Background(), 2, ReadLock, key))
}

func TestInProcessManager_WriteLockExcludesOthers(t *testing.T) {
	m := NewInProcessManager()
	key := NodeKey(1)

	require.NoError(t, m.Acquire(context.Background(), 1, WriteLock, key))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := m.Acquire(ctx, 2, WriteLock, key)
	assert.Error(t, err)
}

func TestInProcessManager_ReleaseUnblocksWaiter(t *testing.T) {
	m := NewInProcessManager()
	key := NodeKey(1)
	require.NoError(t, m.Acquire(context.Background(), 1, WriteLock, key))

	done := make(chan error, 1)
	go func() {
		done <- m.Acquire(context.Background(), 2, WriteLock, key)
	}()

	time.Sleep(20 * time.Millisecond)
	m.Release(1, WriteLock, key)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken after release")
	}
}

func TestInProcessManager_SameHolderCanReacquireWriteAfterRead(t *testing.T) {
	m := NewInProcessManager()
	key := NodeKey(1)
	require.NoError(t, m.Acquire(context.Background(), 1, ReadLock, key))
	require.NoError(t, m.Acquire(context.Background(), 1, WriteLock, key))
}

func TestInProcessManager_IllegalResource(t *testing.T) {
	m := NewInProcessManager()
	key := Key{Kind: record.Kind(999), ID: 1}
	err := m.Acquire(context.Background(), 1, ReadLock, key)
	var illegal ErrIllegalResource
	assert.ErrorAs(t, err, &illegal)
}

func TestInProcessManager_DeadlockDetected(t *testing.T) {
	m := NewInProcessManager()
	keyA := NodeKey(1)
	keyB := NodeKey(2)

	require.NoError(t, m.Acquire(context.Background(), 1, WriteLock, keyA))
	require.NoError(t, m.Acquire(context.Background(), 2, WriteLock, keyB))

	txADone := make(chan error, 1)
	go func() {
		txADone <- m.Acquire(context.Background(), 1, WriteLock, keyB)
	}()

	time.Sleep(20 * time.Millisecond)

	err := m.Acquire(context.Background(), 2, WriteLock, keyA)
	var deadlock ErrDeadlock
	require.ErrorAs(t, err, &deadlock)

	m.Release(1, WriteLock, keyA)
	m.Release(1, WriteLock, keyB)
	m.Release(2, WriteLock, keyB)

	select {
	case err := <-txADone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("tx A's blocked acquire never resolved")
	}
}

func TestReleaser_ReleaseAllFreesEveryHeldLock(t *testing.T) {
	m := NewInProcessManager()
	r := NewReleaser(m, TxID(1))

	require.NoError(t, r.Acquire(context.Background(), WriteLock, NodeKey(1)))
	require.NoError(t, r.Acquire(context.Background(), WriteLock, NodeKey(2)))

	r.ReleaseAll()

	require.NoError(t, m.Acquire(context.Background(), 2, WriteLock, NodeKey(1)))
	require.NoError(t, m.Acquire(context.Background(), 2, WriteLock, NodeKey(2)))
}

func TestReleaser_ReleaseAllIsIdempotent(t *testing.T) {
	m := NewInProcessManager()
	r := NewReleaser(m, TxID(1))
	require.NoError(t, r.Acquire(context.Background(), WriteLock, NodeKey(1)))

	r.ReleaseAll()
	assert.NotPanics(t, func() { r.ReleaseAll() })
}
