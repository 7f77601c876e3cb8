package record

// Relationship is the record model for a graph relationship. It
// participates in two doubly-linked chains at once, one rooted at
// FirstNode and one at SecondNode; a self-loop (FirstNode == SecondNode)
// uses both sides of the same record simultaneously and must not be
// aliased when spliced.
//
// Chain pointers on the first-node side are FirstPrevRel/FirstNextRel;
// on the second-node side, SecondPrevRel/SecondNextRel. There is no
// requirement that FirstNode <= SecondNode.
type Relationship struct {
	ID    RelationshipID
	InUse bool

	FirstNode  NodeID
	SecondNode NodeID
	Type       RelationshipTypeID

	FirstPrevRel  RelationshipID
	FirstNextRel  RelationshipID
	SecondPrevRel RelationshipID
	SecondNextRel RelationshipID

	NextProp PropertyID

	Created bool
}

// Clone returns a deep copy for staging-map insertion.
func (r *Relationship) Clone() *Relationship {
	c := *r
	return &c
}

// NewRelationship returns an in-use relationship record with no chain
// links and no properties yet, ready for connectRelationship to splice
// into its endpoints' chains.
func NewRelationship(id RelationshipID, typeID RelationshipTypeID, firstNode, secondNode NodeID) *Relationship {
	return &Relationship{
		ID:            id,
		InUse:         true,
		FirstNode:     firstNode,
		SecondNode:    secondNode,
		Type:          typeID,
		FirstPrevRel:  NoRelID,
		FirstNextRel:  NoRelID,
		SecondPrevRel: NoRelID,
		SecondNextRel: NoRelID,
		NextProp:      NoPropID,
		Created:       true,
	}
}

// OtherNode returns the endpoint of r that is not n. Callers must only
// invoke this when n is known to be one of r's endpoints; for a
// self-loop it returns n itself, matching the source system's
// treatment of self-loops as inhabiting one chain twice.
func (r *Relationship) OtherNode(n NodeID) NodeID {
	if r.FirstNode == n {
		return r.SecondNode
	}
	return r.FirstNode
}
