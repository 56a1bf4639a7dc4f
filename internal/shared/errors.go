package shared

import "errors"

var (
	// ErrNotFound indicates the ERP has no such record.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates malformed or insufficient input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the record is in a state that forbids the operation.
	ErrConflict = errors.New("invalid state")
	// ErrBusy indicates another request holds the integration lock.
	ErrBusy = errors.New("resource busy")
	// ErrDuplicate indicates a replayed idempotency key.
	ErrDuplicate = errors.New("duplicate request")
	// ErrUnauthorized indicates a missing or invalid operator token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates operator login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
