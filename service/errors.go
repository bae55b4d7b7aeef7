package service

import (
	"errors"
	"fmt"

	"github.com/samandartukhtayev/user-registry/models"
)

// Op names one of the four resource operations.
type Op string

const (
	OpCreate Op = "create"
	OpList   Op = "list"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Generic messages returned to callers. The underlying failure kind is never
// part of the message.
const (
	MsgCreateFailed = "Failed to create user"
	MsgListFailed   = "Failed to fetch users"
	MsgUpdateFailed = "Failed to update user"
	MsgDeleteFailed = "Failed to delete user"
)

// Message returns the generic failure message of op.
func (op Op) Message() string {
	switch op {
	case OpCreate:
		return MsgCreateFailed
	case OpList:
		return MsgListFailed
	case OpUpdate:
		return MsgUpdateFailed
	case OpDelete:
		return MsgDeleteFailed
	default:
		return "Request failed"
	}
}

// Error is the uniform failure shape of every operation. Message is safe to
// show to callers; Err keeps the cause for errors.Is and for logs.
type Error struct {
	Op      Op
	Message string
	Err     error
}

// NewError wraps err as a failure of op.
func NewError(op Op, err error) *Error {
	return &Error{Op: op, Message: op.Message(), Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy sentinel behind the failure. Anything that is
// not a validation, not-found or constraint failure counts as unavailable.
func (e *Error) Kind() error {
	switch {
	case errors.Is(e.Err, models.ErrValidation):
		return models.ErrValidation
	case errors.Is(e.Err, models.ErrNotFound):
		return models.ErrNotFound
	case errors.Is(e.Err, models.ErrConstraintViolation):
		return models.ErrConstraintViolation
	default:
		return models.ErrUnavailable
	}
}
