package master

import (
	"errors"
	"io"

	"github.com/kerngraph/kerndb/pkg/record"
	"github.com/kerngraph/kerndb/pkg/store"
)

var errUnsupportedBackup = errors.New("master: underlying store does not implement store.Backuper")

// CopyStore rotates the logical log so the slave sees a quiesced
// store, streams every record through w, and returns ctx adjusted so
// the slave is guaranteed to pull at least one transaction afterward —
// lowering its recorded horizon for resourceName by one, so it learns
// this master's ID for every transaction it now holds a copy of,
// exactly as spec.md's store-copy note describes for the neo store.
func (c *Coordinator) CopyStore(w io.Writer, ctx record.SlaveContext) (record.SlaveContext, Response[struct{}]) {
	if log := c.engine.Log(); log != nil {
		if _, err := log.Rotate(); err != nil {
			return ctx, failed[struct{}](IOError{Op: "rotate logical log", Err: err})
		}
	}

	backuper, isBackuper := c.engine.Store().(store.Backuper)
	if !isBackuper {
		return ctx, failed[struct{}](IOError{Op: "copy store", Err: errUnsupportedBackup})
	}
	if err := backuper.Backup(w); err != nil {
		return ctx, failed[struct{}](IOError{Op: "copy store", Err: err})
	}

	adjusted := ctx.Clone()
	if horizon := adjusted.LastAppliedTx[resourceName]; horizon > 0 {
		adjusted.LastAppliedTx[resourceName] = horizon - 1
	}
	return adjusted, ok(struct{}{}, nil)
}
