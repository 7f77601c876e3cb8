package record

// PropertyType enumerates the primitive value kinds a PropertyBlock can
// carry. STRING and ARRAY values do not fit inline and are stored as a
// chain of DynamicRecord blocks instead.
type PropertyType int

const (
	PropertyBool PropertyType = iota
	PropertyByte
	PropertyShort
	PropertyChar
	PropertyInt
	PropertyLong
	PropertyFloat
	PropertyDouble
	PropertyString
	PropertyArray
)

// IsDynamic reports whether values of this type are stored out-of-line
// in a dynamic value chain rather than packed inline into the block.
func (t PropertyType) IsDynamic() bool {
	return t == PropertyString || t == PropertyArray
}

const blockHeaderSize = 8

func inlineValueSize(t PropertyType) int {
	switch t {
	case PropertyBool, PropertyByte:
		return 1
	case PropertyShort, PropertyChar:
		return 2
	case PropertyInt, PropertyFloat:
		return 4
	case PropertyLong, PropertyDouble:
		return 8
	default:
		return 8
	}
}

// PropertyBlock is one property's storage slot inside a PropertyRecord.
// A record packs as many blocks as fit under the payload cap.
type PropertyBlock struct {
	KeyIndexID PropertyIndexID
	Type       PropertyType
	InUse      bool

	// InlineValue holds the decoded value for non-dynamic types.
	InlineValue any

	// DynamicChain holds the dynamic-value block IDs backing a STRING
	// or ARRAY value. Loaded is false when the chain has not yet been
	// fetched from the store ("light"); the chain IDs may still be
	// known (from FirstDynamicID) even while Loaded is false.
	FirstDynamicID DynamicID
	DynamicChain   []DynamicID
	DynamicValue   any
	Loaded         bool

	Created bool
}

// Size returns this block's contribution to its owning record's live
// payload, used for payload-cap packing decisions. Dynamic blocks
// count only their inline header (a pointer to the chain); the chain's
// own bytes are accounted separately by the store collaborator.
func (b *PropertyBlock) Size() int {
	if b.Type.IsDynamic() {
		return blockHeaderSize + 8
	}
	return blockHeaderSize + inlineValueSize(b.Type)
}

// Clone returns a deep copy suitable for staging-map insertion.
func (b *PropertyBlock) Clone() *PropertyBlock {
	c := *b
	if b.DynamicChain != nil {
		c.DynamicChain = append([]DynamicID(nil), b.DynamicChain...)
	}
	return &c
}

// PropertyRecord packs one or more PropertyBlocks and forms one link in
// a primitive's singly-linked property chain.
type PropertyRecord struct {
	ID    PropertyID
	InUse bool

	PrevProp PropertyID
	NextProp PropertyID

	// OwnerKind is NodeKind or RelationshipKind; OwnerID is the owning
	// primitive's ID, exactly one of which is meaningful per the
	// record's owner.
	OwnerKind Kind
	OwnerID   uint64

	Blocks []*PropertyBlock

	Created bool
}

// LiveSize sums the packed size of every in-use block in the record.
func (p *PropertyRecord) LiveSize() int {
	total := 0
	for _, b := range p.Blocks {
		if b.InUse {
			total += b.Size()
		}
	}
	return total
}

// HasLiveBlocks reports whether any block in the record is still in
// use. A record with none must be unlinked from its chain.
func (p *PropertyRecord) HasLiveBlocks() bool {
	for _, b := range p.Blocks {
		if b.InUse {
			return true
		}
	}
	return false
}

// FindBlock returns the in-use block for keyIndex, or nil if absent.
func (p *PropertyRecord) FindBlock(keyIndex PropertyIndexID) *PropertyBlock {
	for _, b := range p.Blocks {
		if b.InUse && b.KeyIndexID == keyIndex {
			return b
		}
	}
	return nil
}

// Clone returns a deep copy suitable for staging-map insertion.
func (p *PropertyRecord) Clone() *PropertyRecord {
	c := *p
	c.Blocks = make([]*PropertyBlock, len(p.Blocks))
	for i, b := range p.Blocks {
		c.Blocks[i] = b.Clone()
	}
	return &c
}

// PropertyData is the caller-facing handle to one property value,
// returned by nodeAddProperty/relAddProperty and friends, and packed
// into the map handed back by nodeDelete/relDelete.
type PropertyData struct {
	PropertyID PropertyID
	KeyIndexID PropertyIndexID
	Value      any
}
