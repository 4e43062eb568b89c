package app

import "errors"

var (
	// ErrSessionNotFound also covers sessions owned by someone else.
	ErrSessionNotFound = errors.New("session not found")
	ErrOwnerRequired   = errors.New("owner id required")
)
