// Package apperr defines the error kinds shared by the meeting pipeline.
// Each kind wraps its cause so callers can use errors.As and errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed external reference or request input.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string { return join("validation", e.Msg, e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports a referenced object, result or meeting that does not exist.
type NotFoundError struct {
	Msg string
	Err error
}

func (e *NotFoundError) Error() string { return join("not found", e.Msg, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// TransientJobError is a recognition job failure. It is recovered by resubmitting
// and is never returned to API callers.
type TransientJobError struct {
	Msg string
}

func (e *TransientJobError) Error() string { return "job failed: " + e.Msg }

// FatalConfigError aborts an aggregation because required data is missing.
type FatalConfigError struct {
	Msg string
}

func (e *FatalConfigError) Error() string { return "fatal config: " + e.Msg }

// ParsingError reports a raw recognition result that does not match the expected schema.
type ParsingError struct {
	Msg string
	Err error
}

func (e *ParsingError) Error() string { return join("parse", e.Msg, e.Err) }
func (e *ParsingError) Unwrap() error { return e.Err }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

func FatalConfig(format string, args ...any) error {
	return &FatalConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Parsing wraps err (which may be nil) as a ParsingError.
func Parsing(err error, format string, args ...any) error {
	return &ParsingError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsFatalConfig reports whether err is or wraps a FatalConfigError.
func IsFatalConfig(err error) bool {
	var target *FatalConfigError
	return errors.As(err, &target)
}

// IsParsing reports whether err is or wraps a ParsingError.
func IsParsing(err error) bool {
	var target *ParsingError
	return errors.As(err, &target)
}

func join(kind, msg string, err error) string {
	if err == nil {
		return kind + ": " + msg
	}
	return kind + ": " + msg + ": " + err.Error()
}
