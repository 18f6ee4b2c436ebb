package types

import (
	"time"

	"github.com/google/uuid"
)

// NewLoadID generates a UUIDv7 rule-table load identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewLoadID() LoadID {
	return LoadID(uuid.Must(uuid.NewV7()).String())
}

// NewRunID generates a UUIDv7 filter run identifier.
// Time-ordered IDs keep run history inserts clustered in the primary key index.
func NewRunID() RunID {
	return RunID(uuid.Must(uuid.NewV7()).String())
}

// ParseLoadID validates and converts a string to LoadID.
func ParseLoadID(s string) (LoadID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return LoadID(s), nil
}

// IDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func IDTime(id string) time.Time {
	u, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
