package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies relay failures.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindMisconfigured ErrorKind = "misconfigured"
	KindTimeout       ErrorKind = "timeout"
	KindUpstream      ErrorKind = "upstream_error"
	KindUnreachable   ErrorKind = "unreachable"
)

// Error is a classified failure. Status carries the upstream HTTP status
// when Kind is KindUpstream.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	wrapped error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// ErrorOption mutates an Error during construction.
type ErrorOption func(*Error)

// WithStatus sets the upstream status hint.
func WithStatus(status int) ErrorOption {
	return func(e *Error) { e.Status = status }
}

// WithCause attaches an underlying error.
func WithCause(err error) ErrorOption {
	return func(e *Error) { e.wrapped = err }
}

// NewError builds an Error explicitly.
func NewError(kind ErrorKind, message string, opts ...ErrorOption) *Error {
	e := &Error{Kind: kind, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validation builds a KindValidation error.
func Validation(message string) *Error {
	return NewError(KindValidation, message)
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusOf returns the upstream status hint of a classified error.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

func classify(kind ErrorKind) func(error) bool {
	return func(err error) bool {
		return err != nil && KindOf(err) == kind
	}
}

// Predicates for common handling branches.
var (
	IsValidation    = classify(KindValidation)
	IsMisconfigured = classify(KindMisconfigured)
	IsTimeout       = classify(KindTimeout)
	IsUpstream      = classify(KindUpstream)
	IsUnreachable   = classify(KindUnreachable)
)
