package errors

import "errors"

var (
	ErrUnknownRole      = errors.New("unknown role")
	ErrInvalidPrincipal = errors.New("invalid principal")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotMember        = errors.New("principal is not a member of role")
	ErrConflict         = errors.New("membership conflict")
)
