// Package errs defines the error kinds every domain error is classified under.
package errs

import "errors"

type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindInvalidState Kind = "invalid_state"
	KindFatal        Kind = "fatal"
)

// Error is a classified domain error. Sentinels are compared by identity.
type Error struct {
	Kind Kind
	Code string
}

func (e *Error) Error() string {
	return e.Code
}

func New(kind Kind, code string) error {
	return &Error{Kind: kind, Code: code}
}

// KindOf returns the kind of the first classified error in the chain, or
// KindFatal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// CodeOf returns the code of the first classified error in the chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
