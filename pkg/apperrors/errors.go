package apperrors

import (
	"errors"
	"fmt"
)

// Code identifies an error class. Codes are stable strings so they can be
// persisted on a failed job and returned to API clients.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeTimeout            Code = "TIMEOUT_ERROR"
	CodeCircuitOpen        Code = "CIRCUIT_OPEN"
	CodeEmbeddingDimension Code = "EMBEDDING_DIMENSION_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Error is the typed error used across the pipeline.
type Error struct {
	Code    Code
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is matching against another *Error by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func NewValidation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

func NewTimeout(message string, cause error) *Error {
	return &Error{Code: CodeTimeout, Message: message, Err: cause}
}

func NewCircuitOpen(endpoint string) *Error {
	return &Error{Code: CodeCircuitOpen, Message: fmt.Sprintf("circuit open for endpoint %q", endpoint)}
}

func NewEmbeddingDimension(got, want int) *Error {
	return &Error{Code: CodeEmbeddingDimension, Message: fmt.Sprintf("embedding dimension %d does not match index dimension %d", got, want)}
}

func NewNotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", what)}
}

func NewInternal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: cause}
}

// CodeOf extracts the error code, defaulting to INTERNAL_ERROR for
// untyped errors so that workers always persist a stable code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether the error is worth retrying inside the
// component that owns the external call. Validation errors go back to
// the caller, an open circuit means the caller should back off, and a
// dimension mismatch will never succeed on retry.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeCircuitOpen, CodeEmbeddingDimension, CodeNotFound:
		return false
	}
	return true
}
