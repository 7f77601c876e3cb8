// Package txn is the write-transaction engine: the component that
// stages node/relationship/property mutations in per-kind in-memory
// maps, enforces the doubly-linked relationship chain and singly-linked
// property chain invariants, and either applies the staged changes to
// the store in a fixed order or discards them entirely.
package txn

import (
	"sync"
	"sync/atomic"

	"github.com/kerngraph/kerndb/pkg/lock"
	"github.com/kerngraph/kerndb/pkg/store"
	"github.com/kerngraph/kerndb/pkg/walog"
)

// Engine owns the shared state that every Transaction it begins must
// agree on: the store, the lock manager, the logical log, the cache
// invalidation side channel, and the monotonically advancing
// lastCommittedTx counter that enforces strictly sequential commits.
type Engine struct {
	store       store.Store
	locks       lock.Manager
	log         *walog.Log
	invalidator CacheInvalidator
	payloadCap  int

	mu              sync.Mutex
	lastCommittedTx uint64

	holderSeq uint64
}

// DefaultPayloadCap matches the teacher's property-record sizing
// default in the absence of an explicit config.Store.PayloadCap.
const DefaultPayloadCap = 120

// NewEngine returns an engine with no committed transactions yet.
func NewEngine(st store.Store, locks lock.Manager, log *walog.Log, invalidator CacheInvalidator, payloadCap int) *Engine {
	if invalidator == nil {
		invalidator = NopCacheInvalidator{}
	}
	if payloadCap <= 0 {
		payloadCap = DefaultPayloadCap
	}
	return &Engine{store: st, locks: locks, log: log, invalidator: invalidator, payloadCap: payloadCap}
}

// LastCommittedTx returns the ID of the most recently committed
// transaction, or 0 if none has committed yet.
func (e *Engine) LastCommittedTx() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCommittedTx
}

// Store returns the engine's underlying record store, for callers
// that need direct access to a concern the transaction API doesn't
// expose (e.g. the master coordinator's standalone ID allocation).
func (e *Engine) Store() store.Store { return e.store }

// Log returns the engine's logical log, or nil if it was built
// without one.
func (e *Engine) Log() *walog.Log { return e.log }

// Begin starts a new transaction with empty staging maps.
func (e *Engine) Begin() *Transaction {
	holder := lock.TxID(atomic.AddUint64(&e.holderSeq, 1))
	return newTransaction(e, holder)
}

// Recover replays the logical log from the given sequence number
// (0 to replay the whole log) and applies every transaction it finds
// complete (terminated by a commit marker) to the store, in the order
// described in the engine's recovery-commit rules. It is the caller's
// responsibility to run this before the store starts serving requests.
func (e *Engine) Recover(fromSeq uint64) error {
	return e.recover(fromSeq)
}
