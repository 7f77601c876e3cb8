package master

import "github.com/kerngraph/kerndb/pkg/lock"

// Status classifies how an RPC-shaped Coordinator call concluded.
type Status int

const (
	StatusOK Status = iota
	StatusDeadlock
	StatusNotLocked
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusDeadlock:
		return "DEADLOCK"
	case StatusNotLocked:
		return "NOT_LOCKED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MissingTransaction identifies one committed transaction a slave has
// not yet applied, named by resource so a multi-resource client can
// tell which log it belongs to.
type MissingTransaction struct {
	ResourceName string
	TxID         uint64
}

// Response is the shape every slave-facing Coordinator operation
// returns: a result value, the stream of committed transactions the
// slave is missing up to whatever horizon the operation defines (nil
// for idempotent/metadata calls that carry no such stream), and a
// status that distinguishes plain success from a deadlock, an illegal
// lock resource, or a failure.
type Response[T any] struct {
	Result   T
	Missing  []MissingTransaction
	Status   Status
	Deadlock *lock.ErrDeadlock
	Err      error
}

func ok[T any](result T, missing []MissingTransaction) Response[T] {
	return Response[T]{Result: result, Missing: missing, Status: StatusOK}
}

func failed[T any](err error) Response[T] {
	return Response[T]{Status: StatusFailed, Err: err}
}

func deadlock[T any](d *lock.ErrDeadlock) Response[T] {
	return Response[T]{Status: StatusDeadlock, Deadlock: d}
}

func notLocked[T any]() Response[T] {
	return Response[T]{Status: StatusNotLocked}
}
