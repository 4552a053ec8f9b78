package kvstore

import (
	"encoding/binary"

	"github.com/roach88/thinglink/internal/ir"
)

// Key layout. Every key starts with a one-byte prefix:
//
//	r<record id>                                   -> record value
//	e<edge ref>                                    -> edge value
//	i<base>\x00<partition><kind><seq:8 BE><ref>    -> empty (live edge index)
//	m                                              -> max seq (8 bytes BE)
const (
	prefixRecord byte = 'r'
	prefixEdge   byte = 'e'
	prefixIndex  byte = 'i'
	prefixMeta   byte = 'm'
)

var maxSeqKey = []byte{prefixMeta}

func recordKey(id ir.Hash) []byte {
	return append([]byte{prefixRecord}, id...)
}

func edgeKey(ref ir.Hash) []byte {
	return append([]byte{prefixEdge}, ref...)
}

// indexPrefix covers every live edge of one kind based at base in p.
func indexPrefix(base ir.Key, p ir.Partition, k ir.EdgeKind) []byte {
	key := make([]byte, 0, 1+len(base)+3)
	key = append(key, prefixIndex)
	key = append(key, base...)
	key = append(key, 0x00, byte(p), byte(k))
	return key
}

// indexKey orders entries within a prefix by seq, then ref.
func indexKey(e ir.EdgeRecord) []byte {
	key := indexPrefix(e.Base, e.Partition, e.Kind)
	key = binary.BigEndian.AppendUint64(key, uint64(e.Seq))
	return append(key, e.Ref...)
}

// refFromIndexKey extracts the edge ref from an index key under prefix.
func refFromIndexKey(key []byte, prefixLen int) ir.Hash {
	return ir.Hash(key[prefixLen+8:])
}
