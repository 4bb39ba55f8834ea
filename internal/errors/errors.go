// Package errors defines structured error types for patch runs.
package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
)

// ErrorCode defines specific error types for a patch run.
type ErrorCode string

const (
	// ErrFileAbsent is returned when the store file does not exist. Callers
	// usually treat it as a no-op.
	ErrFileAbsent ErrorCode = "FILE_ABSENT"
	// ErrReadFailure is returned when the store exists but cannot be read.
	ErrReadFailure ErrorCode = "READ_FAILURE"
	// ErrRecordParseFailure is returned when a line is not a JSON object.
	ErrRecordParseFailure ErrorCode = "RECORD_PARSE_FAILURE"
	// ErrWriteFailure is returned when the rewrite could not be completed.
	ErrWriteFailure ErrorCode = "WRITE_FAILURE"

	// ErrInvalidPatch is returned when the patch set or options are unusable.
	ErrInvalidPatch ErrorCode = "INVALID_PATCH"
	// ErrInvalidManifest is returned when the manifest cannot be parsed or validated.
	ErrInvalidManifest ErrorCode = "INVALID_MANIFEST"
)

// Error is a concrete error type with a code and optional details.
type Error struct {
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		code:    code,
		message: message,
		details: make(map[string]any),
	}
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return ""
}

// Predefined error constructors for common cases

// FileAbsent creates an error for a missing store file. It matches fs.ErrNotExist.
func FileAbsent(path string) *Error {
	return New(ErrFileAbsent, fmt.Sprintf("%s does not exist", path)).WithDetail("path", path).Wrap(fs.ErrNotExist)
}

// ReadFailure creates an error for a store that could not be read.
func ReadFailure(path string, err error) *Error {
	return New(ErrReadFailure, fmt.Sprintf("failed to read %s", path)).WithDetail("path", path).Wrap(err)
}

// RecordParseFailure creates an error for a line that is not a JSON object.
func RecordParseFailure(line int, err error) *Error {
	return New(ErrRecordParseFailure, fmt.Sprintf("line %d is not a JSON object", line)).WithDetail("line", line).Wrap(err)
}

// WriteFailure creates an error for a rewrite that could not be completed.
func WriteFailure(path string, err error) *Error {
	return New(ErrWriteFailure, fmt.Sprintf("failed to write %s", path)).WithDetail("path", path).Wrap(err)
}

// InvalidPatch creates an error for an unusable patch set.
func InvalidPatch(message string) *Error {
	return New(ErrInvalidPatch, message)
}

// InvalidManifest creates an error for a manifest that failed to parse or validate.
func InvalidManifest(message string) *Error {
	return New(ErrInvalidManifest, message)
}
