package badger

import (
	"encoding/binary"
	"math"
)

// Key prefixes for different data types
const (
	turnPrefix = "convturn"
	turnIDSeq  = "convturnseq"
)

// makeTurnUserPrefix generates the prefix shared by all of a user's turns.
// Format: prefix:len(userID):userID
// The length keeps one user's prefix from being a prefix of another's.
func makeTurnUserPrefix(userID string) []byte {
	prefix := turnPrefix + ":"
	totalSize := len(prefix) + 4 + len(userID)
	buf := make([]byte, totalSize)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint32(buf[offset:], uint32(len(userID)))
	offset += 4
	copy(buf[offset:], userID)
	return buf
}

// makeTurnKey generates a composite key for one turn.
// Format: prefix:len(userID):userID:seq
func makeTurnKey(userID string, seq uint64) []byte {
	userPrefix := makeTurnUserPrefix(userID)
	buf := make([]byte, len(userPrefix)+8)
	offset := copy(buf, userPrefix)
	// Write in BigEndian order so lexicographic sort matches append order
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeLastTurnKey generates the largest possible turn key for a user, used to
// start reverse iteration.
func makeLastTurnKey(userID string) []byte {
	return makeTurnKey(userID, math.MaxUint64)
}
