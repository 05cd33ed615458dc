package types

import (
	"time"

	"github.com/google/uuid"
)

// NewInstanceID generates a UUIDv7 instance identifier.
// Time-ordered IDs keep snapshot rows clustered by creation.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewInstanceID() InstanceID {
	return InstanceID(uuid.Must(uuid.NewV7()).String())
}

// ParseInstanceID validates and converts a string to InstanceID.
func ParseInstanceID(s string) (InstanceID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return InstanceID(s), nil
}

// InstanceIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func InstanceIDTime(id InstanceID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
