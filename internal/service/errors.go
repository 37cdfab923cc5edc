package service

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindPermission ErrorKind = "permission"
	KindState      ErrorKind = "state"
	KindNotFound   ErrorKind = "not_found"
	KindDependency ErrorKind = "dependency"
)

// Error is the typed failure returned by the approval services. The HTTP
// layer maps Kind to a status code; the core never swallows it.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func permissionError(format string, args ...any) *Error {
	return newError(KindPermission, format, args...)
}

func stateError(format string, args ...any) *Error {
	return newError(KindState, format, args...)
}

func notFoundError(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func dependencyError(err error, format string, args ...any) *Error {
	e := newError(KindDependency, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of a service error, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
