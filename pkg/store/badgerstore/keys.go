package badgerstore

import (
	"encoding/binary"

	"github.com/kerngraph/kerndb/pkg/record"
)

// Key prefixes, one byte per record kind, grounded on the teacher's
// badger.go key-builder convention (a single-byte prefix followed by
// the big-endian ID).
const (
	nodePrefix      byte = 'N'
	relPrefix       byte = 'R'
	propPrefix      byte = 'P'
	propIdxPrefix   byte = 'X'
	relTypePrefix   byte = 'T'
	dynStringPrefix byte = 'S'
	dynArrayPrefix  byte = 'A'
	freeListPrefix  byte = 'F'
)

func encodeKey(prefix byte, id uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = prefix
	binary.BigEndian.PutUint64(buf[1:], id)
	return buf
}

func nodeKey(id record.NodeID) []byte              { return encodeKey(nodePrefix, uint64(id)) }
func relKey(id record.RelationshipID) []byte       { return encodeKey(relPrefix, uint64(id)) }
func propKey(id record.PropertyID) []byte           { return encodeKey(propPrefix, uint64(id)) }
func propIdxKey(id record.PropertyIndexID) []byte   { return encodeKey(propIdxPrefix, uint64(id)) }
func relTypeKey(id record.RelationshipTypeID) []byte { return encodeKey(relTypePrefix, uint64(id)) }

func dynPrefixFor(kind record.Kind) byte {
	if kind == record.DynamicArrayKind {
		return dynArrayPrefix
	}
	return dynStringPrefix
}

func dynKey(kind record.Kind, id record.DynamicID) []byte {
	return encodeKey(dynPrefixFor(kind), uint64(id))
}

func freeListKey(kind record.Kind) []byte {
	return []byte{freeListPrefix, byte(kind)}
}

func sequenceKey(kind record.Kind) []byte {
	return []byte{'#', byte(kind)}
}
