// Package apperr defines the error taxonomy shared by services and HTTP
// handlers. Services return *Error values; handlers translate the Kind into
// an HTTP status code and the uniform {status, message} envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal     Kind = iota // unexpected failure, 500
	KindInvalid                  // malformed or missing input, 400
	KindUnauthorized             // no authenticated principal, 401
	KindForbidden                // authenticated but out of scope, 403
	KindNotFound                 // no matching record, 404
	KindRejected                 // business rule refused the operation, 400
	KindDuplicate                // unique key violation, 400
	KindConflict                 // optimistic version mismatch, 409
)

// Error is a classified application error. Message is safe to show to
// clients; Err keeps the underlying cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error kind to its HTTP status code.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindInvalid, KindRejected, KindDuplicate:
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

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) *Error      { return newf(KindInvalid, format, args...) }
func Unauthorized(format string, args ...any) *Error { return newf(KindUnauthorized, format, args...) }
func Forbidden(format string, args ...any) *Error    { return newf(KindForbidden, format, args...) }
func NotFound(format string, args ...any) *Error     { return newf(KindNotFound, format, args...) }
func Rejected(format string, args ...any) *Error     { return newf(KindRejected, format, args...) }
func Duplicate(format string, args ...any) *Error    { return newf(KindDuplicate, format, args...) }
func Conflict(format string, args ...any) *Error     { return newf(KindConflict, format, args...) }

// Internal wraps an unexpected error. The message shown to clients is
// generic; the cause is kept for logs.
func Internal(err error, msg string) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
