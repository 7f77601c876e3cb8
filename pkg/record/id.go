// Package record defines the plain data structures for nodes,
// relationships, properties, property indexes, relationship types, and
// the dynamic value blocks that back variable-length property payloads.
//
// Every type here is a plain struct with exported fields; none of them
// know how to persist themselves. Persistence is the concern of
// pkg/store.
package record

// NoID marks the absence of a record reference (the source system's
// "NONE" sentinel). It is used for 64-bit chain pointers (nextRel,
// nextProp, firstPrevRel, ...) and owner references alike.
const NoID uint64 = ^uint64(0)

// NoID32 is the 32-bit counterpart of NoID, the absent-reference
// sentinel for the 32-bit PropertyIndex and RelationshipType IDs.
const NoID32 uint32 = ^uint32(0)

// NodeID identifies a Node record.
type NodeID uint64

// RelationshipID identifies a Relationship record.
type RelationshipID uint64

// PropertyID identifies a PropertyRecord.
type PropertyID uint64

// DynamicID identifies a block in a dynamic value chain (STRING or
// ARRAY payloads, or the character/byte chain backing a PropertyIndex
// or RelationshipType name).
type DynamicID uint64

// PropertyIndexID identifies a PropertyIndex record. Property indexes
// and relationship types are 32-bit in the source system: there are
// orders of magnitude fewer distinct property keys and relationship
// types than there are nodes or relationships.
type PropertyIndexID uint32

// RelationshipTypeID identifies a RelationshipType record.
type RelationshipTypeID uint32

// NoNodeID is NoID typed as a NodeID, for use in zero-value-adjacent
// comparisons without a cast at every call site.
const NoNodeID = NodeID(NoID)

// NoRelID is NoID typed as a RelationshipID.
const NoRelID = RelationshipID(NoID)

// NoPropID is NoID typed as a PropertyID.
const NoPropID = PropertyID(NoID)

// NoDynamicID is NoID typed as a DynamicID.
const NoDynamicID = DynamicID(NoID)

// NoPropertyIndexID is NoID32 typed as a PropertyIndexID.
const NoPropertyIndexID = PropertyIndexID(NoID32)

// NoRelationshipTypeID is NoID32 typed as a RelationshipTypeID.
const NoRelationshipTypeID = RelationshipTypeID(NoID32)
