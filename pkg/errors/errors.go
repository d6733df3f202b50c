// Package errors defines the coded errors returned by molplace.
//
// Every failure that reaches a caller carries a [Code]. Codes group into
// classes by prefix:
//   - INVALID_*: the composition or request is malformed
//   - MISSING_*: a record the placement needs is absent mid-run
//   - GEOMETRY_*: sampling could not satisfy the geometric constraints
//   - INTERNAL_*: a bug or broken invariant
//
// CANCELLED marks a run stopped by its caller. [IsInternal] and [ExitCode]
// turn a code into the reaction a host should have.
//
//	if errors.Is(err, errors.ErrCodeGeometryExhausted) {
//		// retry with a larger box
//	}
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code is a machine-readable error class.
type Code string

const (
	ErrCodeInvalidInput         Code = "INVALID_INPUT"
	ErrCodeInvalidConfiguration Code = "INVALID_CONFIGURATION"
	ErrCodeInvalidTopology      Code = "INVALID_TOPOLOGY"
	ErrCodeInvalidFormat        Code = "INVALID_FORMAT"
	ErrCodeInvalidPath          Code = "INVALID_PATH"

	ErrCodeNotFound Code = "NOT_FOUND"

	ErrCodeMissingConfiguration Code = "MISSING_CONFIGURATION"
	ErrCodeGeometryExhausted    Code = "GEOMETRY_EXHAUSTED"
	ErrCodeCancelled            Code = "CANCELLED"

	ErrCodeInternal              Code = "INTERNAL_ERROR"
	ErrCodeInternalInconsistency Code = "INTERNAL_INCONSISTENCY"
	ErrCodeUnsupported           Code = "UNSUPPORTED"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	s := string(e.Code) + ": " + e.Message
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an *Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap is New with a cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	e := New(code, format, args...)
	e.Cause = cause
	return e
}

// Is reports whether the first *Error in err's chain has code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	if e := find(err); e != nil {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix, or err.Error()
// for uncoded errors.
func UserMessage(err error) string {
	if e := find(err); e != nil {
		return e.Message
	}
	return err.Error()
}

func find(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsInternal reports whether err should be surfaced as an alert rather than
// as an unsuccessful placement. Cancellation and input errors are not internal.
func IsInternal(err error) bool {
	switch GetCode(err) {
	case ErrCodeMissingConfiguration, ErrCodeInternal, ErrCodeInternalInconsistency:
		return true
	}
	return false
}

// Process exit codes returned by ExitCode.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitInternal  = 2
	ExitCancelled = 130
)

// ExitCode maps err to a process exit status. Context cancellation counts as
// CANCELLED.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case Is(err, ErrCodeCancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	case IsInternal(err):
		return ExitInternal
	}
	return ExitFailure
}
