package util

import "github.com/google/uuid"

// NewID returns a unique identifier for entities and requests.
func NewID() string {
	return uuid.NewString()
}
