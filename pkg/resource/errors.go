package resource

import (
	"errors"
	"fmt"
)

// StoreError represents a domain error from storage operations.
//
// These are business logic errors (file not found, name taken, etc.) as
// opposed to infrastructure errors (network failure, disk error). Protocol
// handlers translate the Code to an HTTP status.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the resource name or ID related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a storage error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested file or container doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a sibling with the same name already exists
	ErrAlreadyExists

	// ErrInvalidName indicates the requested name is not legal
	ErrInvalidName

	// ErrNotEmpty indicates a container still has children
	ErrNotEmpty

	// ErrInvalidOperation indicates the operation is not allowed on the target
	// (deleting the root container, creating under a file, ...)
	ErrInvalidOperation

	// ErrIOError indicates the backend failed reading or writing
	ErrIOError
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not found"
	case ErrAlreadyExists:
		return "already exists"
	case ErrInvalidName:
		return "invalid name"
	case ErrNotEmpty:
		return "not empty"
	case ErrInvalidOperation:
		return "invalid operation"
	case ErrIOError:
		return "i/o error"
	default:
		return "unknown"
	}
}

// NewError builds a *StoreError.
func NewError(code ErrorCode, path, format string, args ...any) *StoreError {
	return &StoreError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// NotFound is shorthand for a kind-aware ErrNotFound.
func NotFound(kind Kind, id string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: kind.String() + " not found", Path: id}
}

// CodeOf extracts the ErrorCode from err. ok is false for unclassified errors.
func CodeOf(err error) (ErrorCode, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

func hasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

func IsNotFound(err error) bool { return hasCode(err, ErrNotFound) }

func IsAlreadyExists(err error) bool { return hasCode(err, ErrAlreadyExists) }

func IsInvalidName(err error) bool { return hasCode(err, ErrInvalidName) }

func IsNotEmpty(err error) bool { return hasCode(err, ErrNotEmpty) }

func IsInvalidOperation(err error) bool { return hasCode(err, ErrInvalidOperation) }
