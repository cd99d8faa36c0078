package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend operations.
var (
	// ErrNotFound indicates a search matched no record. The backend signals
	// this with a sentinel message body, not an HTTP error.
	ErrNotFound = errors.New("record not found")

	// ErrUnexpectedReply indicates a 2xx reply whose body could not be understood.
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	// Op is the operation that failed (e.g. "create client").
	Op string

	// StatusCode is the HTTP status of the reply.
	StatusCode int

	// Message is the "error" or "message" field of the reply body, if any.
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend: %s: status %d", e.Op, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// IsNotFound reports whether err means a search matched nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
