// Package master is the master coordinator: the component a cluster's
// write-master runs to broker locks, transactions, and ID allocation
// on behalf of slave replicas, grounded on MasterImpl.java. It is
// transport-agnostic — every operation is a plain Go method taking a
// record.SlaveContext, with wire framing left to cmd/graphkerneld.
package master

import (
	"sync"
	"time"

	"github.com/kerngraph/kerndb/pkg/config"
	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/txn"
	"github.com/kerngraph/kerndb/pkg/walog"
)

// resourceName is the sole named resource this module's single
// store/log pair exposes to slaves. The source system supports many
// named data sources (neostore, index stores, ...); this
// implementation has one store and one log, so every horizon and
// missing-transaction entry is reported under this name.
const resourceName = "neostore"

// defaultGrabSize is the number of consecutive IDs allocateIds reserves
// per call, matching the source system's GRAB_SIZE.
const defaultGrabSize = 1000

// txRow is one entry of the coordinator's transaction table: the
// transaction a slave context currently owns, plus the idle-tracking
// timestamp the reaper reads. A row's own mutex serializes every
// operation dispatched against it, independent of the table's mutex,
// so two different slave contexts can be in-flight concurrently while
// requests against the same context are strictly ordered.
type txRow struct {
	mu             sync.Mutex
	tx             *txn.Transaction
	lastActivityTs int64 // unix nanoseconds; 0 means "active, do not reap"
}

// namedRow pairs a txRow with the SlaveContext it belongs to, since the
// table itself is keyed by the context's string encoding and the
// reaper and diagnostics need the original context back.
type namedRow struct {
	ctx record.SlaveContext
	row *txRow
}

// WorkerHandle stands in for the bounded worker thread of the source
// system's request-dispatch model: something that can be "on" at most
// one slave context's transaction at a time, and whose prior binding
// must be restored once a dispatched operation returns. One handle is
// meant to be reused across many sequential RPCs served by the same
// goroutine (an RPC server's worker pool slot), not allocated per
// request.
type WorkerHandle struct {
	mu      sync.Mutex
	current string // slave-context key this handle is currently bound to, "" if none
}

// swapCurrent records that handle is now bound to key, returning
// whatever it was bound to before.
func (h *WorkerHandle) swapCurrent(key string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	prior := h.current
	h.current = key
	return prior
}

// Coordinator is the master's per-cluster transaction broker.
type Coordinator struct {
	engine   *txn.Engine
	logger   walog.Logger
	grabSize int
	machine  int32

	mu           sync.Mutex
	rows         map[string]namedRow
	closed       bool
	shutdownOnce sync.Once

	reaper *reaper
}

// NewCoordinator returns a Coordinator over engine, starting its
// reaper immediately. machineID identifies this master for
// GetMasterIdForCommittedTx; it is meaningful only once multi-master
// failover exists, which this module does not implement, but the
// accessor is kept for callers that already depend on it.
func NewCoordinator(engine *txn.Engine, cfg config.ReaperConfig, machineID int32, logger walog.Logger) *Coordinator {
	if logger == nil {
		logger = walog.NopLogger{}
	}
	c := &Coordinator{
		engine:   engine,
		logger:   logger,
		grabSize: defaultGrabSize,
		machine:  machineID,
		rows:     make(map[string]namedRow),
	}
	c.reaper = newReaper(c, cfg.Period, cfg.IdleThreshold, logger)
	c.reaper.start()
	return c
}

// OngoingTransactions returns the slave contexts with a currently
// registered transaction, for diagnostics (the CLI's replica status
// output). Supplements spec.md per SPEC_FULL.md §12, grounded on
// MasterImpl.getOngoingTransactions.
func (c *Coordinator) OngoingTransactions() []record.SlaveContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]record.SlaveContext, 0, len(c.rows))
	for _, nr := range c.rows {
		out = append(out, nr.ctx.Clone())
	}
	return out
}

func (c *Coordinator) snapshotLocked() []namedRow {
	out := make([]namedRow, 0, len(c.rows))
	for _, nr := range c.rows {
		out = append(out, nr)
	}
	return out
}

// Shutdown cancels the reaper. Per spec.md §4.4 it deliberately does
// not roll back outstanding transactions; recovery handles them on
// restart. Safe to call more than once.
func (c *Coordinator) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.reaper.stop()
	})
}

// beginOrResume returns the row for ctx, creating a fresh transaction
// if this is the first request for it.
func (c *Coordinator) beginOrResume(ctx record.SlaveContext) *txRow {
	key := ctx.Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	if nr, ok := c.rows[key]; ok {
		return nr.row
	}
	row := &txRow{tx: c.engine.Begin()}
	c.rows[key] = namedRow{ctx: ctx.Clone(), row: row}
	return row
}

func (c *Coordinator) dropRow(ctx record.SlaveContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, ctx.Key())
}

// dispatch implements the request-dispatch discipline of spec.md
// §4.4: suspend whatever this handle was on, resume/begin ctx's row
// with lastActivityTs reset to "active", run op with that row's
// transaction under the row's own lock (serializing same-context
// requests), then unconditionally mark the row idle and restore the
// handle's prior binding on every exit path, including an error
// returned by op.
func (c *Coordinator) dispatch(handle *WorkerHandle, ctx record.SlaveContext, op func(tx *txn.Transaction) error) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrCoordinatorClosed{}
	}

	prior := handle.swapCurrent(ctx.Key())
	row := c.beginOrResume(ctx)

	row.mu.Lock()
	row.lastActivityTs = 0
	defer func() {
		row.lastActivityTs = time.Now().UnixNano()
		row.mu.Unlock()
		handle.swapCurrent(prior)
	}()

	return op(row.tx)
}
