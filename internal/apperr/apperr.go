// Package apperr is the error taxonomy shared by the workflows and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation            Kind = "VALIDATION"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindForbidden             Kind = "FORBIDDEN"
	KindNotFound              Kind = "NOT_FOUND"
	KindConflict              Kind = "CONFLICT"
	KindAlreadyProcessed      Kind = "ALREADY_PROCESSED"
	KindInsufficientInventory Kind = "INSUFFICIENT_INVENTORY"
	KindUpstream              Kind = "UPSTREAM"
	KindInternal              Kind = "INTERNAL"
)

// Error carries a user-facing message. Err, when set, is the underlying cause;
// for upstream failures its text is passed through to the caller as details.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps a kind onto its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindAlreadyProcessed, KindInsufficientInventory:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func AlreadyProcessed(message string) *Error {
	return &Error{Kind: KindAlreadyProcessed, Message: message}
}

func InsufficientInventory(message string) *Error {
	return &Error{Kind: KindInsufficientInventory, Message: message}
}

func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
