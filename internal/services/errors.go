package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION"
	KindQuotaExceeded     ErrorKind = "QUOTA_EXCEEDED"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindMissingPriority   ErrorKind = "MISSING_PRIORITY"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindStoreUnavailable  ErrorKind = "STORE_UNAVAILABLE"
	KindNotFound          ErrorKind = "NOT_FOUND"
)

// Error is the typed failure returned by every service operation.
type Error struct {
	Kind    ErrorKind
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

// Is matches any *Error of the same kind, so errors.Is(err, ErrForbidden)
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrQuotaExceeded     = &Error{Kind: KindQuotaExceeded}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrMissingPriority   = &Error{Kind: KindMissingPriority}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrStoreUnavailable  = &Error{Kind: KindStoreUnavailable}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func storeError(msg string, err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: msg, Err: err}
}

// KindOf returns the kind of a service error, or "" for any other error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
