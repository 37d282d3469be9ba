// Package sortid provides time-sortable unique identifiers.
//
// An ID is a version 7 UUID: a 48-bit unix millisecond timestamp, a 12-bit
// sub-millisecond sequence that keeps IDs from one process strictly
// increasing, and a random tail. The canonical string form is lowercase hex,
// so comparing two ID strings gives the same answer as comparing their
// creation times.
package sortid

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ID is a time-sortable identifier. The zero value is not a valid ID.
type ID struct {
	u uuid.UUID
}

// New returns a fresh ID stamped with the current time.
func New() (ID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return ID{}, fmt.Errorf("generate id: %w", err)
	}
	return ID{u: u}, nil
}

// Parse decodes the string form of an ID.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("parse id %q: %w", s, err)
	}
	if u.Version() != 7 {
		return ID{}, fmt.Errorf("parse id %q: want version 7, got %d", s, u.Version())
	}
	return ID{u: u}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical 36-character form.
func (id ID) String() string {
	return id.u.String()
}

// Time returns the creation time encoded in the ID, at millisecond precision.
func (id ID) Time() time.Time {
	var buf [8]byte
	copy(buf[2:], id.u[:6])
	ms := int64(binary.BigEndian.Uint64(buf[:]))
	return time.UnixMilli(ms).UTC()
}

// Compare returns -1, 0 or +1 depending on whether id sorts before, equal to
// or after other.
func (id ID) Compare(other ID) int {
	for i := range id.u {
		switch {
		case id.u[i] < other.u[i]:
			return -1
		case id.u[i] > other.u[i]:
			return 1
		}
	}
	return 0
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id.u == uuid.Nil
}
