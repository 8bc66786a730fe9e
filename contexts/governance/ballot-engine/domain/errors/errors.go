package errors

import "errors"

var (
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrSessionNotOpen   = errors.New("session is not open")
	ErrSessionClosed    = errors.New("session is closed")
	ErrAlreadyClosed    = errors.New("session is already closed")
	ErrSessionNotClosed = errors.New("session is not closed")
	ErrZeroWeight       = errors.New("vote weight must be positive")
	ErrInvalidPrincipal = errors.New("principal must not be empty")
	ErrUnknownProposal  = errors.New("unknown proposal")
	ErrConflict         = errors.New("ballot state conflict")
)
