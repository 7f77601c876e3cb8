// Package store defines the typed record-store contract the
// write-transaction engine depends on. Persistence itself is an
// out-of-scope collaborator per the specification this module
// implements; this package gives that collaborator contract two
// concrete homes (store/memstore, store/badgerstore) so the engine is
// exercisable end to end.
package store

import (
	"errors"
	"io"

	"github.com/kerngraph/kerndb/pkg/record"
)

// ErrNotFound is returned by every Get/Load method when the requested
// ID has no record.
var ErrNotFound = errors.New("store: record not found")

// IDGenerator allocates and frees IDs for one record kind. NextIDBatch
// backs the master coordinator's allocateIds RPC, which reserves a
// batch of consecutive IDs in one call rather than one at a time.
type IDGenerator interface {
	NextID() (uint64, error)
	FreeID(id uint64) error
	HighID() uint64
	DefragCount() uint64
	NextIDBatch(n int) ([]uint64, error)
}

// Store is the typed CRUD surface plus ID generation and light/heavy
// materialization that the write-transaction engine is built against.
// Every Get/Load returns a copy the caller owns exclusively; Update
// replaces the stored copy wholesale.
type Store interface {
	GetNode(id record.NodeID) (*record.Node, error)
	UpdateNode(n *record.Node) error

	GetRelationship(id record.RelationshipID) (*record.Relationship, error)
	UpdateRelationship(r *record.Relationship) error

	GetProperty(id record.PropertyID) (*record.PropertyRecord, error)
	UpdateProperty(p *record.PropertyRecord) error

	GetPropertyIndex(id record.PropertyIndexID) (*record.PropertyIndex, error)
	UpdatePropertyIndex(pi *record.PropertyIndex) error

	GetRelationshipType(id record.RelationshipTypeID) (*record.RelationshipType, error)
	UpdateRelationshipType(rt *record.RelationshipType) error

	// GetDynamic/UpdateDynamic address the dynamic value chain blocks
	// backing STRING/ARRAY property values and PropertyIndex/
	// RelationshipType names. kind distinguishes the string and array
	// keyspaces (DynamicStringKind, DynamicArrayKind).
	GetDynamic(kind record.Kind, id record.DynamicID) (*record.DynamicRecord, error)
	UpdateDynamic(d *record.DynamicRecord) error

	// LoadLightNode and LoadLightRelationship return a record without
	// resolving any dynamic chains reachable from it. For Node and
	// Relationship there is nothing to resolve directly (their
	// properties are addressed separately via GetProperty), so these
	// are equivalent to Get today; they exist so callers can express
	// "give me the light view" without depending on that being true
	// forever.
	LoadLightNode(id record.NodeID) (*record.Node, error)
	LoadLightRelationship(id record.RelationshipID) (*record.Relationship, error)

	// MakeHeavy resolves every unresolved dynamic-chain block in p in
	// place, walking each STRING/ARRAY block's chain to completion.
	MakeHeavy(p *record.PropertyRecord) error

	// IDGenerator returns the allocator for kind. Valid kinds are
	// NodeKind, RelationshipKind, PropertyKind, PropertyIndexKind,
	// RelationshipTypeKind, DynamicStringKind, DynamicArrayKind.
	IDGenerator(kind record.Kind) IDGenerator

	// SetRecoveryMode toggles whether ID generators are refreshed
	// (bumped to reflect replayed IDs) rather than rewritten during
	// txn.Engine.Recover's replay of the logical log.
	SetRecoveryMode(on bool)

	Close() error
}

// Backuper is implemented by stores that can stream a consistent
// snapshot of every record to a writer. The master coordinator's
// copyStore uses this, after rotating the logical log, to send a slave
// a full copy of the store ahead of log replay.
type Backuper interface {
	Backup(w io.Writer) error
}

// KindForDynamicType maps a dynamic property type to the DynamicRecord
// keyspace it is stored in.
func KindForDynamicType(t record.PropertyType) record.Kind {
	if t == record.PropertyArray {
		return record.DynamicArrayKind
	}
	return record.DynamicStringKind
}
