// Package apperr defines the error kinds surfaced by the platform's
// services and their HTTP mapping. Services return kinds, never
// transport abstractions; handlers translate with HTTPStatus.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// KindNotFound: the referenced entity does not exist.
	KindNotFound Kind = iota + 1
	// KindUnauthorized: the actor lacks the role or ownership required.
	KindUnauthorized
	// KindPrecondition: the entity exists but its state forbids the action.
	KindPrecondition
	// KindConflict: the action would duplicate an already-satisfied state
	// or lost a concurrent update race.
	KindConflict
	// KindValidation: malformed input.
	KindValidation
)

// Error is a classified failure with a human-readable reason. Internal
// detail (storage errors, stacks) never rides in the message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, format, args...)
}

func Precondition(format string, args ...interface{}) *Error {
	return newError(KindPrecondition, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

// KindOf returns the error's kind, or zero for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
func IsPrecondition(err error) bool { return KindOf(err) == KindPrecondition }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }

// HTTPStatus maps an error kind to a response status. Precondition maps
// to 400 to match what existing clients expect.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindPrecondition:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
