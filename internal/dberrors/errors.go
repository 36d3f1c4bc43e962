// Package dberrors defines the typed error kinds emitted by every core
// component, per the propagation policy: the lowest layer returns a typed
// error, higher layers wrap it with context (component name, id) but never
// swallow it.
package dberrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch on it with errors.Is.
type Kind string

const (
	Corruption          Kind = "corruption"
	NotFound            Kind = "not_found"
	InvalidOperation    Kind = "invalid_operation"
	SerializationError  Kind = "serialization_error"
	IO                  Kind = "io"
	ConcurrencyConflict Kind = "concurrency_conflict"
	StateProtected      Kind = "state_protected"
	PolicyViolation     Kind = "policy_violation"
)

// sentinel values so errors.Is(err, dberrors.ErrNotFound) works after wrapping.
var (
	ErrCorruption          = &Error{Kind: Corruption, Message: "corruption"}
	ErrNotFound            = &Error{Kind: NotFound, Message: "not found"}
	ErrInvalidOperation    = &Error{Kind: InvalidOperation, Message: "invalid operation"}
	ErrSerializationError  = &Error{Kind: SerializationError, Message: "serialization error"}
	ErrIO                  = &Error{Kind: IO, Message: "io error"}
	ErrConcurrencyConflict = &Error{Kind: ConcurrencyConflict, Message: "concurrency conflict"}
	ErrStateProtected      = &Error{Kind: StateProtected, Message: "state protected"}
	ErrPolicyViolation     = &Error{Kind: PolicyViolation, Message: "policy violation"}
)

// Error is a typed engine error carrying the component and identifier that
// raised it, so logs and wrapped errors keep enough context to diagnose
// without a stack trace library.
type Error struct {
	Kind      Kind
	Component string
	ID        string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Component != "" {
		if e.ID != "" {
			msg = fmt.Sprintf("%s[%s]: %s", e.Component, e.ID, msg)
		} else {
			msg = fmt.Sprintf("%s: %s", e.Component, msg)
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, dberrors.ErrNotFound) to match by Kind alone,
// ignoring Component/ID/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a component-scoped error of the given kind.
func New(kind Kind, component, id, message string) *Error {
	return &Error{Kind: kind, Component: component, ID: id, Message: message}
}

// Wrap attaches component/id context to a lower-level error while
// preserving its kind if it is already a *Error, or using the given kind
// for opaque causes (e.g. raw os/file errors).
func Wrap(kind Kind, component, id, message string, cause error) *Error {
	if cause == nil {
		return New(kind, component, id, message)
	}
	var inner *Error
	if errors.As(cause, &inner) {
		kind = inner.Kind
	}
	return &Error{Kind: kind, Component: component, ID: id, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to IO for unrecognized errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return IO
}
