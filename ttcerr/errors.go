// Package ttcerr carries the error taxonomy shared by every subsystem:
// InvalidInput, Transient, FatalJob and FatalProcess. Each error holds a
// machine tag, a free-form detail string, and optionally the offending
// identifier, and renders as "[Class] Tag: detail (ident)". Errors are
// tag-keyed rather than registered per package because they cross the
// jobstore/chainclient/prover/chainwatcher boundaries.
package ttcerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Class is the coarse recovery classification.
type Class int

const (
	// InvalidInput: malformed preferences, duplicate job key, unknown
	// token hash. Recovered locally by returning to the caller.
	InvalidInput Class = iota
	// Transient: chain node timeouts, database connection blips. Retried
	// with bounded backoff; escalated to FatalJob/FatalProcess once the
	// retry budget is spent.
	Transient
	// FatalJob: proof generation failed, guest program rejected
	// preferences, mismatched state commitment. Recorded as Failed on the
	// job; does not stop the worker.
	FatalJob
	// FatalProcess: database schema missing, chain RPC permanently
	// unreachable at startup, port bind failure. Caught at init; process
	// exits non-zero.
	FatalProcess
)

func (c Class) String() string {
	switch c {
	case InvalidInput:
		return "InvalidInput"
	case Transient:
		return "Transient"
	case FatalJob:
		return "FatalJob"
	case FatalProcess:
		return "FatalProcess"
	default:
		return "Unknown"
	}
}

// Tag is a machine-identifying name within a Class, e.g. "DuplicateJob" or
// "InvalidPreferences". JSON-RPC error codes are derived from Tag via a
// fixed lookup table in package jsonrpc.
type Tag string

const (
	TagInvalidPreferences Tag = "InvalidPreferences"
	TagDuplicateJob       Tag = "DuplicateJob"
	TagNotInProgress      Tag = "NotInProgress"
	TagUnknownJob         Tag = "UnknownJob"
	TagChainTimeout       Tag = "ChainTimeout"
	TagChainUnreachable   Tag = "ChainUnreachable"
	TagProofFailed        Tag = "ProofFailed"
	TagStateMismatch      Tag = "StateMismatch"
	TagSchemaMissing      Tag = "SchemaMissing"
	TagBindFailed         Tag = "BindFailed"
	TagCancelled          Tag = "Cancelled"
)

// Error is the concrete error value carried across every subsystem
// boundary in this module.
type Error struct {
	Class  Class
	Tag    Tag
	Detail string
	// Ident is the offending identifier: a job id, a token hash, a block
	// number, rendered as a string so callers don't need a type switch.
	Ident string
	cause error
}

func (e *Error) Error() string {
	if e.Ident != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Class, e.Tag, e.Detail, e.Ident)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Tag, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// Fatal reports whether the error class terminates its owning process
// (FatalProcess) as opposed to being recovered or job-scoped.
func (e *Error) Fatal() bool { return e.Class == FatalProcess }

func New(class Class, tag Tag, ident string, format string, args ...interface{}) *Error {
	return &Error{
		Class:  class,
		Tag:    tag,
		Detail: fmt.Sprintf(format, args...),
		Ident:  ident,
	}
}

// Wrap attaches the taxonomy to an underlying error, preserving it for
// errors.Is/As and %+v stack rendering via github.com/pkg/errors.
func Wrap(cause error, class Class, tag Tag, ident string) *Error {
	return &Error{
		Class:  class,
		Tag:    tag,
		Detail: cause.Error(),
		Ident:  ident,
		cause:  errors.WithStack(cause),
	}
}

// As is a thin convenience wrapper so callers can pattern-match without
// importing the standard errors package directly.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
