package models

import "errors"

var (
	// ErrValidation marks a malformed or incomplete request payload.
	ErrValidation = errors.New("invalid user payload")
	// ErrNotFound marks an id with no row behind it.
	ErrNotFound = errors.New("user not found")
	// ErrConstraintViolation marks a write rejected by the schema.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrUnavailable marks a store that cannot be reached or failed transiently.
	ErrUnavailable = errors.New("store unavailable")
)
