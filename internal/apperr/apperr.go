// Package apperr is the error taxonomy shared by the stores and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	AccessDenied        Kind = "access_denied"
	NotFound            Kind = "not_found"
	ValidationFailed    Kind = "validation_failed"
	DuplicateCredential Kind = "duplicate_credential"
)

// Error carries a Kind plus the notice shown to the caller. Err, when set, is
// the underlying cause and is never shown to the caller.
type Error struct {
	Kind   Kind
	Code   string
	Notice string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Notice
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, notice string) *Error {
	return &Error{Kind: kind, Code: string(kind), Notice: notice}
}

func Wrap(kind Kind, notice string, err error) *Error {
	return &Error{Kind: kind, Code: string(kind), Notice: notice, Err: err}
}

func Denied(notice string) *Error    { return New(AccessDenied, notice) }
func Missing(notice string) *Error   { return New(NotFound, notice) }
func Invalid(notice string) *Error   { return New(ValidationFailed, notice) }
func Duplicate(notice string) *Error { return New(DuplicateCredential, notice) }

// WithCode returns a copy of e with a more specific machine-readable code.
func (e *Error) WithCode(code string) *Error {
	c := *e
	c.Code = code
	return &c
}

// KindOf reports the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// Status maps a Kind to the HTTP status the presentation layer responds with.
func Status(kind Kind) int {
	switch kind {
	case AccessDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case ValidationFailed:
		return http.StatusBadRequest
	case DuplicateCredential:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
