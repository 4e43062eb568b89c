package util

import "github.com/google/uuid"

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether s is a UUID, as issued by NewID.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
