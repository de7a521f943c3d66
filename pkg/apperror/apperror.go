package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error at the point it is detected.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindIllegalTransition Kind = "illegal_transition"
	KindUnauthorized      Kind = "unauthorized"
	KindRateLimited       Kind = "rate_limited"
	KindInternal          Kind = "internal"
)

// Sentinels for errors.Is checks against a kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrIllegalTransition = &Error{Kind: KindIllegalTransition}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrRateLimited       = &Error{Kind: KindRateLimited}
)

type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus maps the kind to the status code used at the API boundary.
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Kind)
}

func StatusFor(kind Kind) int {
	switch kind {
	case KindValidation, KindIllegalTransition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: err}
}

func Validation(fields map[string]string, format string, args ...any) *Error {
	e := New(KindValidation, format, args...)
	e.Fields = fields
	return e
}

func NotFound(resource string) *Error {
	return New(KindNotFound, "%s not found", resource)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// IllegalTransition always names both the current and the rejected status.
func IllegalTransition(current, target string) *Error {
	return New(KindIllegalTransition, "cannot transition booking from %s to %s", current, target)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As is a shorthand for errors.As on *Error.
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}
