package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNode_Defaults(t *testing.T) {
	n := NewNode(NodeID(1))
	assert.True(t, n.InUse)
	assert.True(t, n.Created)
	assert.Equal(t, NoRelID, n.NextRel)
	assert.Equal(t, NoPropID, n.NextProp)
}

func TestNode_Clone_IsIndependent(t *testing.T) {
	n := NewNode(NodeID(1))
	c := n.Clone()
	c.NextRel = RelationshipID(5)
	assert.Equal(t, NoRelID, n.NextRel)
	assert.Equal(t, RelationshipID(5), c.NextRel)
}

func TestRelationship_OtherNode(t *testing.T) {
	r := NewRelationship(RelationshipID(100), RelationshipTypeID(0), NodeID(1), NodeID(2))
	assert.Equal(t, NodeID(2), r.OtherNode(NodeID(1)))
	assert.Equal(t, NodeID(1), r.OtherNode(NodeID(2)))
}

func TestRelationship_OtherNode_SelfLoop(t *testing.T) {
	r := NewRelationship(RelationshipID(100), RelationshipTypeID(0), NodeID(1), NodeID(1))
	assert.Equal(t, NodeID(1), r.OtherNode(NodeID(1)))
}

func TestPropertyBlock_Size_InlineVsDynamic(t *testing.T) {
	inline := &PropertyBlock{Type: PropertyLong, InUse: true}
	dynamic := &PropertyBlock{Type: PropertyString, InUse: true}
	assert.Equal(t, blockHeaderSize+8, inline.Size())
	assert.Equal(t, blockHeaderSize+8, dynamic.Size())

	small := &PropertyBlock{Type: PropertyBool, InUse: true}
	assert.Equal(t, blockHeaderSize+1, small.Size())
}

func TestPropertyRecord_LiveSizeIgnoresRemovedBlocks(t *testing.T) {
	rec := &PropertyRecord{
		Blocks: []*PropertyBlock{
			{Type: PropertyInt, InUse: true},
			{Type: PropertyLong, InUse: false},
		},
	}
	assert.Equal(t, blockHeaderSize+4, rec.LiveSize())
	assert.True(t, rec.HasLiveBlocks())

	rec.Blocks[0].InUse = false
	assert.False(t, rec.HasLiveBlocks())
}

func TestPropertyRecord_FindBlock(t *testing.T) {
	rec := &PropertyRecord{
		Blocks: []*PropertyBlock{
			{KeyIndexID: 3, Type: PropertyInt, InUse: true},
			{KeyIndexID: 5, Type: PropertyInt, InUse: false},
		},
	}
	assert.NotNil(t, rec.FindBlock(3))
	assert.Nil(t, rec.FindBlock(5), "removed block must not be found")
	assert.Nil(t, rec.FindBlock(99))
}

func TestPropertyRecord_Clone_DeepCopiesBlocks(t *testing.T) {
	rec := &PropertyRecord{Blocks: []*PropertyBlock{{KeyIndexID: 1, InUse: true}}}
	c := rec.Clone()
	c.Blocks[0].InUse = false
	assert.True(t, rec.Blocks[0].InUse)
}

func TestSlaveContext_Equals(t *testing.T) {
	a := SlaveContext{SessionID: 1, MachineID: 2, EventID: 3, LastAppliedTx: map[string]int64{"neostore": 10}}
	b := SlaveContext{SessionID: 1, MachineID: 2, EventID: 3, LastAppliedTx: map[string]int64{"neostore": 10}}
	c := SlaveContext{SessionID: 1, MachineID: 2, EventID: 3, LastAppliedTx: map[string]int64{"neostore": 11}}

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
}

func TestSlaveContext_KeyIsDeterministicAndDistinguishesHorizon(t *testing.T) {
	a := SlaveContext{SessionID: 1, MachineID: 2, EventID: 3, LastAppliedTx: map[string]int64{"a": 1, "b": 2}}
	b := SlaveContext{SessionID: 1, MachineID: 2, EventID: 3, LastAppliedTx: map[string]int64{"b": 2, "a": 1}}
	c := SlaveContext{SessionID: 1, MachineID: 2, EventID: 3, LastAppliedTx: map[string]int64{"a": 1, "b": 3}}

	assert.Equal(t, a.Key(), b.Key(), "key must not depend on map iteration order")
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestSlaveContext_CloneIsIndependent(t *testing.T) {
	a := SlaveContext{LastAppliedTx: map[string]int64{"x": 1}}
	c := a.Clone()
	c.LastAppliedTx["x"] = 2
	assert.Equal(t, int64(1), a.LastAppliedTx["x"])
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "Node", NodeKind.String())
	assert.Equal(t, "Unknown", Kind(999).String())
}
