package tunnelctl

import (
	"fmt"
	"syscall"
)

// OutcomeKind classifies what the supervisor observed about a process
type OutcomeKind int

const (
	// OutcomeUnknown is the zero value and never emitted
	OutcomeUnknown OutcomeKind = iota
	// OutcomeStable means the process survived the stability window
	OutcomeStable
	// OutcomeCleanExit means the process exited with code 0 on its own
	OutcomeCleanExit
	// OutcomeCrashExit means the process exited non-zero or was killed by a signal
	OutcomeCrashExit
	// OutcomeSpawnError means the OS failed to create or track the process
	OutcomeSpawnError
	// OutcomeBinaryNotFound means the external binary is missing
	OutcomeBinaryNotFound
	// OutcomeIntentionalStop means the process exited after Stop was requested
	OutcomeIntentionalStop
)

// OutcomeKind string constants
const (
	outcomeUnknownStr         = "unknown"
	outcomeStableStr          = "stable"
	outcomeCleanExitStr       = "clean_exit"
	outcomeCrashExitStr       = "crash_exit"
	outcomeSpawnErrorStr      = "spawn_error"
	outcomeBinaryNotFoundStr  = "binary_not_found"
	outcomeIntentionalStopStr = "intentional_stop"
)

// String returns the string representation of an OutcomeKind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeStable:
		return outcomeStableStr
	case OutcomeCleanExit:
		return outcomeCleanExitStr
	case OutcomeCrashExit:
		return outcomeCrashExitStr
	case OutcomeSpawnError:
		return outcomeSpawnErrorStr
	case OutcomeBinaryNotFound:
		return outcomeBinaryNotFoundStr
	case OutcomeIntentionalStop:
		return outcomeIntentionalStopStr
	default:
		return outcomeUnknownStr
	}
}

// Outcome is a single event reported by the Supervisor about one process.
type Outcome struct {
	// Kind is the classification of the event
	Kind OutcomeKind
	// Generation identifies the Start call that produced the process
	Generation uint64
	// PID of the process, 0 if it was never created
	PID int
	// Profile is the display label passed to Start
	Profile string
	// NewConfig mirrors StartRequest.NewConfig
	NewConfig bool
	// ExitCode is the exit status for CleanExit and CrashExit, -1 when signaled
	ExitCode int
	// Signal is the terminating signal when Signaled is true
	Signal syscall.Signal
	// Signaled reports whether the process was terminated by a signal
	Signaled bool
	// Cause is the underlying OS error for SpawnError and BinaryNotFound
	Cause error
}

// Failed reports whether the outcome should be surfaced as an error
func (o Outcome) Failed() bool {
	switch o.Kind {
	case OutcomeCleanExit, OutcomeCrashExit, OutcomeSpawnError, OutcomeBinaryNotFound:
		return true
	default:
		return false
	}
}

// Err returns the error form of a failed outcome, nil otherwise
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeBinaryNotFound:
		return wrapCause(ErrBinaryNotFound, o.Cause)
	case OutcomeSpawnError:
		return wrapCause(ErrSpawn, o.Cause)
	case OutcomeCrashExit:
		if o.Signaled {
			return fmt.Errorf("%w: signal %v", ErrCrashExit, o.Signal)
		}
		return fmt.Errorf("%w: exit code %d", ErrCrashExit, o.ExitCode)
	case OutcomeCleanExit:
		return ErrCleanExit
	default:
		return nil
	}
}

// String returns a human readable summary used in notifications and logs
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeStable:
		return fmt.Sprintf("tunnel %s is running (pid %d)", o.Profile, o.PID)
	case OutcomeIntentionalStop:
		return fmt.Sprintf("tunnel %s stopped", o.Profile)
	case OutcomeBinaryNotFound:
		return fmt.Sprintf("tunnel %s could not start, binary not found: %v", o.Profile, o.Cause)
	case OutcomeSpawnError:
		return fmt.Sprintf("tunnel %s failed: %v", o.Profile, o.Cause)
	case OutcomeCrashExit:
		if o.Signaled {
			return fmt.Sprintf("tunnel %s was killed by signal %v", o.Profile, o.Signal)
		}
		return fmt.Sprintf("tunnel %s exited with code %d", o.Profile, o.ExitCode)
	case OutcomeCleanExit:
		return fmt.Sprintf("tunnel %s exited", o.Profile)
	default:
		return outcomeUnknownStr
	}
}

func wrapCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
