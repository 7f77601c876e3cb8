package txn

import (
	"fmt"

	"github.com/kerngraph/kerndb/pkg/record"
)

// ErrIntegrityViolation is returned by Prepare when the staged changes
// would leave the store in an inconsistent state, such as a node marked
// not-in-use while its relationship chain is still non-empty.
type ErrIntegrityViolation struct {
	Reason string
}

func (e ErrIntegrityViolation) Error() string {
	return fmt.Sprintf("integrity violation: %s", e.Reason)
}

// ErrAlreadyDeleted is returned when a delete or mutation targets a
// record that is already not in use.
type ErrAlreadyDeleted struct {
	Kind record.Kind
	ID   uint64
}

func (e ErrAlreadyDeleted) Error() string {
	return fmt.Sprintf("%s %d is already deleted", e.Kind, e.ID)
}

// ErrMissingBlock is returned by a property change or removal whose
// PropertyData no longer names a live block in its property record.
type ErrMissingBlock struct {
	PropertyID record.PropertyID
	KeyIndexID record.PropertyIndexID
}

func (e ErrMissingBlock) Error() string {
	return fmt.Sprintf("property record %d has no live block for key index %d", e.PropertyID, e.KeyIndexID)
}

// ErrTransactionClosed is returned by any mutation or Prepare call made
// against a transaction that has already been prepared, committed, or
// rolled back, by Commit on one that has been committed or rolled
// back, and by Rollback on one that has been committed.
type ErrTransactionClosed struct {
	State string
}

func (e ErrTransactionClosed) Error() string {
	return fmt.Sprintf("transaction is %s", e.State)
}

// ErrOutOfOrderCommit is returned when the commit ID supplied to
// CommitAt does not equal lastCommittedTx+1.
type ErrOutOfOrderCommit struct {
	Expected uint64
	Got      uint64
}

func (e ErrOutOfOrderCommit) Error() string {
	return fmt.Sprintf("out-of-order commit: expected tx %d, got %d", e.Expected, e.Got)
}

// ErrUnsupportedValue is returned when a property value's Go type has
// no corresponding record.PropertyType.
type ErrUnsupportedValue struct {
	Value any
}

func (e ErrUnsupportedValue) Error() string {
	return fmt.Sprintf("unsupported property value type %T", e.Value)
}
