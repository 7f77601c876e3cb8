package record

import (
	"fmt"
	"sort"
	"strings"
)

// SlaveContext identifies a remote transaction across the wire.
// Equality is by all four fields, including the full contents of
// LastAppliedTx — two contexts with the same session/machine/event but
// a different catch-up horizon are distinct rows in the master's
// transaction table.
type SlaveContext struct {
	SessionID int64
	MachineID int32
	EventID   int32

	// LastAppliedTx maps resource name to the last transaction ID the
	// slave has applied for that resource, the slave's "knowledge
	// horizon" used to compute catch-up streams.
	LastAppliedTx map[string]int64
}

// Equals compares two contexts field-for-field, including the full
// LastAppliedTx map.
func (s SlaveContext) Equals(o SlaveContext) bool {
	if s.SessionID != o.SessionID || s.MachineID != o.MachineID || s.EventID != o.EventID {
		return false
	}
	if len(s.LastAppliedTx) != len(o.LastAppliedTx) {
		return false
	}
	for k, v := range s.LastAppliedTx {
		if ov, ok := o.LastAppliedTx[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Key returns a deterministic, comparable encoding of s suitable for
// use as a Go map key (SlaveContext itself is not comparable because
// LastAppliedTx is a map). The master coordinator's txTable is keyed
// on this.
func (s SlaveContext) Key() string {
	names := make([]string, 0, len(s.LastAppliedTx))
	for name := range s.LastAppliedTx {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d/%d", s.SessionID, s.MachineID, s.EventID)
	for _, name := range names {
		fmt.Fprintf(&b, "/%s=%d", name, s.LastAppliedTx[name])
	}
	return b.String()
}

// Clone returns a deep copy so the caller's map isn't shared with the
// stored context.
func (s SlaveContext) Clone() SlaveContext {
	c := s
	c.LastAppliedTx = make(map[string]int64, len(s.LastAppliedTx))
	for k, v := range s.LastAppliedTx {
		c.LastAppliedTx[k] = v
	}
	return c
}
