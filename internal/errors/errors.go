// Package errors defines the error taxonomy returned by the authentication core
// and its mapping onto HTTP status codes.
//
// Every failure that crosses the service boundary is an *Error carrying a Kind
// and a caller-safe Message. The wrapped cause is kept for server-side logging
// and never serialized.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for callers.
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindConflict       Kind = "CONFLICT"
	KindAuthentication Kind = "AUTHENTICATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindInternal       Kind = "INTERNAL"
)

// internalMessage is the only message an internal failure exposes.
const internalMessage = "internal server error"

// Error is the standardized failure returned by the auth service.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same kind and message, so sentinel values
// declared with these constructors work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation reports malformed or missing input.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict reports a duplicate identity.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Authentication reports a credential or OTP mismatch.
func Authentication(message string) *Error {
	return New(KindAuthentication, message)
}

// NotFound reports an unknown identity.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Internal wraps an unexpected storage or primitive failure. The cause is kept
// for logs only.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: internalMessage, Cause: cause}
}

// From coerces any error into an *Error. Errors outside the taxonomy become
// internal errors.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// KindOf returns the taxonomy kind of err.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// HTTPStatus maps a kind to its response status. Unknown identities answer 401
// on every endpoint so login and OTP verification behave the same way.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication, KindNotFound:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
