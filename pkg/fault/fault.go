// Package fault defines the error taxonomy shared by the hearsay core.
//
// Every provider-facing operation returns an explicit error classified by
// [Kind]. Callers branch on the kind, not the message:
//
//	if fault.IsNotFound(err) { ... }
//
// The kinds map directly to handling policy: Validation, Configuration and
// State errors are never retried; Remote errors trigger compensating cleanup
// before being surfaced; NotFound is an ordinary lookup miss.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for handling policy.
type Kind int

const (
	// KindValidation means required input was missing or malformed.
	// Reported immediately, never retried.
	KindValidation Kind = iota + 1

	// KindConfiguration means a required credential or setting is absent.
	// Fatal for the operation, no retry.
	KindConfiguration

	// KindState means the operation is invalid for the current session or
	// profile state (e.g. sending audio to a stopped session).
	KindState

	// KindRemote means a provider call failed or timed out. Compensating
	// cleanup runs before the error is surfaced; the core does not retry.
	KindRemote

	// KindNotFound means the referenced session, profile or user is unknown.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindState:
		return "state"
	case KindRemote:
		return "remote"
	case KindNotFound:
		return "not found"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a classified error with an operation name and optional cause.
type Error struct {
	// Kind is the error classification.
	Kind Kind

	// Op names the failed operation, e.g. "profile.Enroll".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	s := e.Op + ": " + e.Message
	if e.Message == "" {
		s = e.Op + ": " + e.Kind.String() + " error"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a validation error for op.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Configuration returns a configuration error for op.
func Configuration(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// State returns a state error for op.
func State(op, format string, args ...any) *Error {
	return &Error{Kind: KindState, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Remote wraps a provider failure for op. err may be nil.
func Remote(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindRemote, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound returns a lookup-miss error for op.
func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// As extracts a *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func is(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == k
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return is(err, KindValidation) }

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return is(err, KindConfiguration) }

// IsState reports whether err is a state error.
func IsState(err error) bool { return is(err, KindState) }

// IsRemote reports whether err is a remote-service error.
func IsRemote(err error) bool { return is(err, KindRemote) }

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool { return is(err, KindNotFound) }
