package boltstore

import (
	"encoding/binary"
	"strings"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

// Bucket name constants for bbolt storage.
var (
	bucketMeta        = []byte("meta")
	bucketObjects     = []byte("objects")
	bucketChannels    = []byte("channels")
	bucketChanAliases = []byte("chanaliases")
	bucketStates      = []byte("states")
)

// Meta key constants.
var (
	keyVersion = []byte("version")
	keyNextRef = []byte("nextref")
)

// refToKey converts a DBRef to an 8-byte big-endian key.
// We offset by a large constant so negative DBRefs (Nothing=-1) sort correctly.
func refToKey(ref gamedb.DBRef) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(int64(ref)+1<<32))
	return buf
}

// keyToRef converts an 8-byte big-endian key back to a DBRef.
func keyToRef(b []byte) gamedb.DBRef {
	v := binary.BigEndian.Uint64(b)
	return gamedb.DBRef(int64(v) - 1<<32)
}

// intToKey converts an int to an 8-byte big-endian key.
func intToKey(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// keyToInt converts an 8-byte big-endian key back to an int.
func keyToInt(b []byte) int {
	return int(binary.BigEndian.Uint64(b))
}

// aliasKey builds the chanaliases bucket key: player ref + "/" + lowercased alias.
func aliasKey(player gamedb.DBRef, alias string) []byte {
	return append(refToKey(player), []byte("/"+strings.ToLower(alias))...)
}

// channelKey builds the channels bucket key from a channel name.
func channelKey(name string) []byte {
	return []byte(strings.ToLower(name))
}
