//go:build !linux && !darwin

// Package unix provides platform-specific process helpers.
package unix

import (
	"os"
	"syscall"
)

// TermSignal is the signal sent to stop the tunnel process. Platforms
// without SIGTERM delivery fall back to Kill.
var TermSignal os.Signal = os.Kill

// ExitStatus decodes a finished process state. Signal information is not
// available on this platform.
func ExitStatus(ps *os.ProcessState) (code int, sig syscall.Signal, signaled bool) {
	if ps == nil {
		return -1, 0, false
	}
	return ps.ExitCode(), 0, false
}
