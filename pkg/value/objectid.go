package value

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidObjectID is returned when a string is not a 24 char hex ObjectID.
var ErrInvalidObjectID = errors.New("invalid ObjectID")

// ObjectID is a 12 byte identifier made of a 4 byte big endian timestamp in
// seconds, 5 process specific bytes and a 3 byte counter.
type ObjectID [12]byte

// NewObjectID assembles an ObjectID from its parts. Only the lower 24 bits of
// counter are used.
func NewObjectID(t time.Time, process [5]byte, counter uint32) ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
	copy(id[4:9], process[:])
	id[9] = byte(counter >> 16)
	id[10] = byte(counter >> 8)
	id[11] = byte(counter)
	return id
}

// ObjectIDFromHex parses a 24 char hex string.
func ObjectIDFromHex(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 24 {
		return id, fmt.Errorf("%w: length %d", ErrInvalidObjectID, len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("%w: %w", ErrInvalidObjectID, err)
	}
	return id, nil
}

// Hex returns the 24 char hex representation of id.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements [fmt.Stringer].
func (id ObjectID) String() string {
	return fmt.Sprintf("ObjectID(%q)", id.Hex())
}

// Timestamp returns the creation second encoded in id.
func (id ObjectID) Timestamp() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[0:4])), 0).UTC()
}

// IsZero reports whether id has only zero bytes.
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}
