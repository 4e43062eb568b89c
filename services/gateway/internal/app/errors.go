package app

import (
	"context"
	"errors"
	"strings"
)

const unknownErrorMessage = "Unknown error"

// GatewayError is a failed provider round trip: transport failure, provider
// error or malformed response. Message is safe to return to the caller.
type GatewayError struct {
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func newGatewayError(err error) *GatewayError {
	msg := ""
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		msg = "generation provider timed out"
	default:
		msg = strings.TrimSpace(err.Error())
	}
	if msg == "" {
		msg = unknownErrorMessage
	}
	return &GatewayError{Message: msg, Err: err}
}
