package raw

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// ObjectID is the store's native 12-byte identifier: a 4-byte Unix timestamp,
// a 5-byte per-process random value, and a 3-byte incrementing counter.
type ObjectID [12]byte

func (ObjectID) value() {}

var (
	oidProcess [5]byte
	oidCounter atomic.Uint32
)

func init() {
	if _, err := rand.Read(oidProcess[:]); err != nil {
		panic("raw: cannot seed ObjectID process value: " + err.Error())
	}
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic("raw: cannot seed ObjectID counter: " + err.Error())
	}
	oidCounter.Store(binary.BigEndian.Uint32(seed[:]))
}

// NewObjectID generates a fresh ObjectID.
func NewObjectID() ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	copy(id[4:9], oidProcess[:])
	n := oidCounter.Add(1)
	id[9] = byte(n >> 16)
	id[10] = byte(n >> 8)
	id[11] = byte(n)
	return id
}

// ObjectIDFromHex parses a 24-character hex string into an ObjectID.
func ObjectIDFromHex(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 24 {
		return id, fmt.Errorf("raw: invalid ObjectID hex length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("raw: invalid ObjectID hex: %w", err)
	}
	copy(id[:], b)
	return id, nil
}

// Hex returns the 24-character lowercase hex form of the ObjectID.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Timestamp returns the creation time encoded in the ObjectID, UTC.
func (id ObjectID) Timestamp() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[0:4])), 0).UTC()
}

// IsZero reports whether the ObjectID is the all-zero value.
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}
