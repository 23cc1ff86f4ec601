// Package apperr defines the typed error taxonomy shared by the admission
// gate, the scheduler's retry loop, and the CLI's exit-code mapping.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the orchestrator's handling buckets.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindQuota                 Kind = "quota"
	KindCoordinationUnavail   Kind = "coordination_unavailable"
	KindProcessorUnavailable  Kind = "processor_unavailable"
	KindTransientIO           Kind = "transient_io"
	KindTimeout               Kind = "timeout"
	KindFatal                 Kind = "fatal"
	KindCancelled             Kind = "cancelled"
)

// Error is the concrete typed error every package in this module should
// return instead of a bare fmt.Errorf, so callers can branch on Kind()
// without string matching.
type Error struct {
	kind    Kind
	msg     string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.wrapped)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.wrapped }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Retriable reports whether the worker's retry loop should attempt this
// operation again. Validation, quota, fatal, and cancellation errors are
// never retried; transient I/O, timeouts, and coordination/processor
// unavailability are.
func (e *Error) Retriable() bool {
	switch e.kind {
	case KindTransientIO, KindTimeout, KindCoordinationUnavail, KindProcessorUnavailable:
		return true
	default:
		return false
	}
}

func new_(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), wrapped: err}
}

func Validation(format string, args ...any) *Error { return new_(KindValidation, format, args...) }
func Quota(format string, args ...any) *Error      { return new_(KindQuota, format, args...) }
func CoordinationUnavailable(err error, format string, args ...any) *Error {
	return wrap(KindCoordinationUnavail, err, format, args...)
}
func ProcessorUnavailable(format string, args ...any) *Error {
	return new_(KindProcessorUnavailable, format, args...)
}
func ProcessorUnavailableErr(err error, format string, args ...any) *Error {
	return wrap(KindProcessorUnavailable, err, format, args...)
}
func TransientIO(err error, format string, args ...any) *Error {
	return wrap(KindTransientIO, err, format, args...)
}
func Timeout(format string, args ...any) *Error { return new_(KindTimeout, format, args...) }
func Fatal(err error, format string, args ...any) *Error {
	return wrap(KindFatal, err, format, args...)
}
func Cancelled(format string, args ...any) *Error { return new_(KindCancelled, format, args...) }

// As extracts the classified *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindFatal if err does not wrap an
// *Error (an unclassified error is treated conservatively as non-retriable).
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.kind
	}
	return KindFatal
}

// Retriable reports whether err should be retried by the worker's retry
// loop. Unclassified errors are treated as non-retriable.
func Retriable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retriable()
	}
	return false
}

// ExitCode maps a Kind to the CLI process exit code documented in
// SPEC_FULL.md §6.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindValidation:
		return 2
	case KindQuota:
		return 3
	case KindCoordinationUnavail, KindProcessorUnavailable, KindTransientIO, KindTimeout:
		return 4
	case KindCancelled:
		return 130
	default:
		return 1
	}
}
