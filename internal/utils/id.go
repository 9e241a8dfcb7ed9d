package utils

import "github.com/google/uuid"

// NewID returns a time-ordered unique identifier (UUID version 1).
// Falls back to a random version 4 UUID if the node clock cannot be read.
func NewID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
