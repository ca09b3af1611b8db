package tunnelctl

import (
	"errors"
	"fmt"
)

// Common errors returned by tunnelctl operations
var (
	// ErrConfigInvalid indicates an endpoint path or bind address that cannot be persisted
	ErrConfigInvalid = errors.New("tunnelctl: invalid config")

	// ErrBinaryNotFound indicates the external tunnel binary could not be located
	ErrBinaryNotFound = errors.New("tunnelctl: tunnel binary not found")

	// ErrSpawn indicates the OS failed to create or observe the process
	ErrSpawn = errors.New("tunnelctl: spawn failed")

	// ErrCrashExit indicates the process exited with a non-zero code or a signal
	ErrCrashExit = errors.New("tunnelctl: process exited unexpectedly")

	// ErrCleanExit indicates the process exited with code 0 without being asked to
	ErrCleanExit = errors.New("tunnelctl: process exited")

	// ErrClosed indicates the supervisor has been closed
	ErrClosed = errors.New("tunnelctl: supervisor closed")
)

// Op identifies the operation an OpError came from
type Op string

// Operations reported in OpError
const (
	OpRead  Op = "read"
	OpWrite Op = "write"
	OpClear Op = "clear"
	OpWatch Op = "watch"
	OpStop  Op = "stop"
	OpProxy Op = "proxy"
)

// OpError represents an error from a tunnelctl operation
type OpError struct {
	// Op is the operation that failed
	Op Op
	// Path is the file path involved in the operation
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("tunnelctl %s %q: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// OutcomeError carries a failure Outcome returned synchronously from Start
type OutcomeError struct {
	Outcome Outcome
}

// Error returns the outcome's description
func (e *OutcomeError) Error() string {
	return e.Outcome.String()
}

// Unwrap exposes the outcome's sentinel and cause
func (e *OutcomeError) Unwrap() error {
	return e.Outcome.Err()
}
