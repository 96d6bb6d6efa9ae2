package drift_errors

import "errors"

// Common errors
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrAlreadyExists       = errors.New("already exists")
	ErrAuthExpired         = errors.New("auth token expired")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidTransition   = errors.New("invalid status transition")
)
