// Package badgerengine implements internal/engine's storage interfaces
// on top of dgraph-io/badger/v4, the durable on-disk deployment the
// in-process memengine reference store stands in for during tests.
//
// Badger exposes a single flat keyspace, so every index's entries are
// namespaced under a 'd' byte followed by the index id as 8 big-endian
// bytes; a small metadata region under 'm' ("mn:", "mi:" and "mx") tracks
// the name->id registry and the next id counter. This
// mirrors the key-prefixing scheme the teacher's badger-backed metadata
// store uses to fold several logical collections into one database
// (pkg/metadata/store/badger/*.go's keyFile/keyShare/keyLinkCount
// helpers), generalized from a handful of fixed collections to an
// arbitrary number of caller-named indexes.
package badgerengine

import (
	"encoding/binary"
)

const (
	prefixIndexData = 'd' // d<8-byte id><userkey> -> value
	prefixMeta      = 'm' // mn:<name> -> id, mi:<8-byte id> -> name, mx -> next id
)

func indexDataKey(id int64, userKey []byte) []byte {
	key := make([]byte, 0, 9+len(userKey))
	key = append(key, prefixIndexData)
	key = binary.BigEndian.AppendUint64(key, uint64(id))
	key = append(key, userKey...)
	return key
}

// indexDataPrefix returns the shared prefix of every key belonging to
// index id, used to bound prefix iteration and prefix deletes.
func indexDataPrefix(id int64) []byte {
	return indexDataKey(id, nil)
}

func userKeyFromDataKey(id int64, dataKey []byte) []byte {
	prefix := indexDataPrefix(id)
	return dataKey[len(prefix):]
}

func metaNameKey(name string) []byte {
	return append([]byte{prefixMeta, 'n', ':'}, name...)
}

func metaIDKey(id int64) []byte {
	key := []byte{prefixMeta, 'i', ':'}
	return binary.BigEndian.AppendUint64(key, uint64(id))
}

var metaNextIDKey = []byte{prefixMeta, 'x'}

func encodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
