//go:build linux || darwin

// Package unix provides platform-specific process helpers.
package unix

import (
	"os"
	"syscall"
)

// TermSignal is the signal sent to stop the tunnel process.
var TermSignal os.Signal = syscall.SIGTERM

// ExitStatus decodes a finished process state into its exit code or the
// signal that terminated it. code is -1 when signaled is true.
func ExitStatus(ps *os.ProcessState) (code int, sig syscall.Signal, signaled bool) {
	if ps == nil {
		return -1, 0, false
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, ws.Signal(), true
	}
	return ps.ExitCode(), 0, false
}
