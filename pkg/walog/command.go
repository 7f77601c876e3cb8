package walog

import "github.com/kerngraph/kerndb/pkg/record"

// CommandType tags which of Command's fields is meaningful. Unknown
// values are a fatal decode error (see Log.Replay).
type CommandType uint8

const (
	RelationshipTypeCommandType CommandType = iota
	PropertyIndexCommandType
	PropertyCommandType
	RelationshipCommandType
	NodeCommandType
	DynamicCommandType
	TxCommitCommandType
)

func (t CommandType) String() string {
	switch t {
	case RelationshipTypeCommandType:
		return "RelationshipType"
	case PropertyIndexCommandType:
		return "PropertyIndex"
	case PropertyCommandType:
		return "Property"
	case RelationshipCommandType:
		return "Relationship"
	case NodeCommandType:
		return "Node"
	case DynamicCommandType:
		return "Dynamic"
	case TxCommitCommandType:
		return "TxCommit"
	default:
		return "Unknown"
	}
}

func (t CommandType) valid() bool {
	return t <= TxCommitCommandType
}

// TxCommitMarker closes the set of Command frames belonging to one
// transaction. Replay accumulates Node/Relationship/... commands into a
// pending batch and only applies that batch to the store once it sees
// the matching marker, so a crash between Log.Append and a completed
// store write never applies a half-written transaction.
type TxCommitMarker struct {
	TxID uint64
}

// Command is one mutated store record, carried whole. A Relationship
// command always carries FirstNode/SecondNode as they stood at prepare
// time (the record's endpoint fields are never cleared, only its InUse
// flag), so recovery replay of a deleted relationship can invalidate
// exactly its two real endpoints instead of over-invalidating.
type Command struct {
	Type CommandType

	Node             *record.Node
	Relationship     *record.Relationship
	Property         *record.PropertyRecord
	PropertyIndex    *record.PropertyIndex
	RelationshipType *record.RelationshipType
	Dynamic          *record.DynamicRecord
	TxCommit         *TxCommitMarker
}

func NodeCommand(n *record.Node) Command {
	return Command{Type: NodeCommandType, Node: n}
}

func RelationshipCommand(r *record.Relationship) Command {
	return Command{Type: RelationshipCommandType, Relationship: r}
}

func PropertyCommand(p *record.PropertyRecord) Command {
	return Command{Type: PropertyCommandType, Property: p}
}

func PropertyIndexCommand(p *record.PropertyIndex) Command {
	return Command{Type: PropertyIndexCommandType, PropertyIndex: p}
}

func RelationshipTypeCommand(rt *record.RelationshipType) Command {
	return Command{Type: RelationshipTypeCommandType, RelationshipType: rt}
}

func DynamicCommand(d *record.DynamicRecord) Command {
	return Command{Type: DynamicCommandType, Dynamic: d}
}

func TxCommitCommand(txID uint64) Command {
	return Command{Type: TxCommitCommandType, TxCommit: &TxCommitMarker{TxID: txID}}
}
