package master

import (
	"sync"
	"time"

	"github.com/kerngraph/kerndb/pkg/txn"
	"github.com/kerngraph/kerndb/pkg/walog"
)

// reaper is the coordinator's single periodic idle-transaction sweep,
// grounded on MasterImpl's reaper thread. It runs on its own
// WorkerHandle, distinct from any request-serving handle, so rolling
// back an idle transaction never competes with the dispatch discipline
// a live request is using.
type reaper struct {
	c      *Coordinator
	period time.Duration
	idle   time.Duration
	logger walog.Logger
	handle *WorkerHandle

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newReaper(c *Coordinator, period, idle time.Duration, logger walog.Logger) *reaper {
	return &reaper{
		c:      c,
		period: period,
		idle:   idle,
		logger: logger,
		handle: &WorkerHandle{},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (r *reaper) start() {
	go r.loop()
}

// stop cancels the reaper and waits for its current sweep, if any, to
// finish. Safe to call more than once.
func (r *reaper) stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
	})
}

func (r *reaper) loop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep snapshots the transaction table and rolls back every row idle
// for at least r.idle. Rows with lastActivityTs == 0 are skipped: an
// active waiter (one blocked acquiring a lock, or mid-request) cannot
// be safely interrupted from here. A rollback failure is logged, never
// propagated — the reaper must not die from one bad row.
func (r *reaper) sweep() {
	r.c.mu.Lock()
	rows := r.c.snapshotLocked()
	r.c.mu.Unlock()

	now := time.Now().UnixNano()
	for _, nr := range rows {
		nr.row.mu.Lock()
		ts := nr.row.lastActivityTs
		nr.row.mu.Unlock()

		if ts == 0 || time.Duration(now-ts) < r.idle {
			continue
		}

		r.reap(nr)
	}
}

func (r *reaper) reap(nr namedRow) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Log("error", "reaper: recovered panic rolling back idle transaction", map[string]any{"recover": rec})
		}
	}()

	err := r.c.dispatch(r.handle, nr.ctx, func(tx *txn.Transaction) error {
		return tx.Rollback()
	})
	r.c.dropRow(nr.ctx)
	if err != nil {
		r.logger.Log("warn", "reaper: rollback of idle transaction failed", map[string]any{"error": err.Error()})
	}
}
