package errors

import (
	"errors"
	"fmt"
)

/*
Kind partitions failures by how callers should react: validation errors
are the caller's fault, not-found errors are surfaced and never retried,
provider errors come from an embedding or completion backend, store
errors from the persistence layer.
*/
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindProvider
	KindStore
)

/*
Error is the typed error carried across package boundaries.  Sentinels
below share a Kind, so errors.Is matches any error derived from the same
sentinel via WithMessagef.
*/
type Error struct {
	Kind    Kind   `json:"-"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

/*
Is matches on Kind so wrapped and reworded copies of a sentinel still
compare equal to it.
*/
func (e *Error) Is(target error) bool {
	var other *Error

	if !errors.As(target, &other) {
		return false
	}

	return e.Kind == other.Kind
}

var (
	ErrValidation = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrProvider   = &Error{Kind: KindProvider, Message: "provider failure"}
	ErrStore      = &Error{Kind: KindStore, Message: "store failure"}
)

/*
WithMessagef returns a copy of the error with a formatted message.  The
original sentinel is never modified.
*/
func (e *Error) WithMessagef(format string, args ...any) *Error {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

/*
Is re-exports the stdlib matcher so callers don't need two imports.
*/
func Is(err, target error) bool {
	return errors.Is(err, target)
}
