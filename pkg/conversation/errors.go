package conversation

import "errors"

var (
	// ErrExchangeInFlight rejects a submit while a reply is still pending.
	ErrExchangeInFlight = errors.New("an exchange is already in flight")
	ErrUnknownTurn      = errors.New("unknown pending turn")
	ErrTurnSettled      = errors.New("turn already settled")
)
