// Package apperrors defines the domain error taxonomy shared by every service package.
// Each error carries a Kind that the HTTP layer maps to a status code.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
)

// String returns the lowercase name of the kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// NonFieldErrors is the field key used for validation errors not tied to one input field
const NonFieldErrors = "non_field_errors"

var (
	// ErrValidation is matched by every validation error
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is matched by every unauthorized error
	ErrUnauthorized = errors.New("authentication credentials were not provided")

	// ErrForbidden is matched by every forbidden error
	ErrForbidden = errors.New("you do not have permission to perform this action")

	// ErrNotFound is matched by every not found error
	ErrNotFound = errors.New("not found")
)

// Error is a domain error with a kind, an optional field and a human-readable message
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Unwrap exposes the cause so callers can match specific sentinels with errors.Is
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind-level sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// Validation returns a validation error for a field
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// ValidationWrap returns a validation error that keeps the underlying cause
func ValidationWrap(field, message string, err error) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message, Err: err}
}

// Unauthorized returns an unauthorized error
func Unauthorized(message string) *Error {
	if message == "" {
		message = ErrUnauthorized.Error()
	}
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden returns a forbidden error
func Forbidden(message string) *Error {
	if message == "" {
		message = ErrForbidden.Error()
	}
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound returns a not found error wrapping the given cause
func NotFound(cause error) *Error {
	msg := ErrNotFound.Error()
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindNotFound, Message: msg, Err: cause}
}

// KindOf returns the kind of err, or KindInternal for errors outside the taxonomy
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As extracts the domain error from err
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}
