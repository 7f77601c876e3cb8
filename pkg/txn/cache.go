package txn

import (
	"sync"

	"github.com/kerngraph/kerndb/pkg/record"
)

// CacheInvalidator is notified, during Prepare, of every node and
// relationship that is transitioning to not-in-use, so a caching layer
// sitting in front of the store can drop its copies before Commit makes
// the change visible to other readers. Rollback also notifies it of
// every node and relationship the transaction touched, and recovery of
// every record a replayed batch writes and the owners and endpoints
// those records reference.
type CacheInvalidator interface {
	InvalidateNode(id record.NodeID)
	InvalidateRelationship(id record.RelationshipID)
}

// NopCacheInvalidator discards every notification. It is the default
// used when an Engine is built without a cache layer in front of it.
type NopCacheInvalidator struct{}

func (NopCacheInvalidator) InvalidateNode(record.NodeID)                 {}
func (NopCacheInvalidator) InvalidateRelationship(record.RelationshipID) {}

// RecordingInvalidator records every invalidation it receives, for use
// in tests that assert on which records were invalidated.
type RecordingInvalidator struct {
	mu    sync.Mutex
	Nodes []record.NodeID
	Rels  []record.RelationshipID
}

func (r *RecordingInvalidator) InvalidateNode(id record.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Nodes = append(r.Nodes, id)
}

func (r *RecordingInvalidator) InvalidateRelationship(id record.RelationshipID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rels = append(r.Rels, id)
}
