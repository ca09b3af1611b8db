package tunnelctl

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/axondata/go-tunnelctl/internal/unix"
	"github.com/rs/zerolog"
)

// ExitInfo describes how a process terminated
type ExitInfo struct {
	// Code is the exit code, -1 when Signaled
	Code int
	// Signal is the terminating signal when Signaled
	Signal syscall.Signal
	// Signaled reports termination by signal
	Signaled bool
}

// Process is a running external process. Implementations must be safe for
// Signal to be called concurrently with a pending Wait.
type Process interface {
	// PID returns the OS process id
	PID() int
	// Signal delivers sig; signalling an exited process is not an error
	Signal(sig os.Signal) error
	// Wait blocks until the process exits. A non-nil error means the OS
	// could not report the exit, not that the exit code was non-zero.
	Wait() (ExitInfo, error)
}

// Launcher creates processes. The Supervisor uses ExecLauncher unless
// another is supplied, which lets tests drive outcomes without real binaries.
type Launcher interface {
	Launch(ctx context.Context, binary string, args []string) (Process, error)
}

// ExecLauncher launches processes with os/exec
type ExecLauncher struct {
	// Stdout receives the process's standard output, discarded when nil
	Stdout io.Writer
	// Stderr receives the process's standard error, discarded when nil
	Stderr io.Writer
	// Env overrides the environment when non-nil
	Env []string
}

// Launch starts binary with args. The process is not tied to ctx; its
// lifetime is controlled through Signal. Output is copied through pipes the
// launcher owns, so Wait returns as soon as the process is reaped even when
// a grandchild keeps the output open.
func (l *ExecLauncher) Launch(ctx context.Context, binary string, args []string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(binary, args...)
	if l.Env != nil {
		cmd.Env = l.Env
	}

	var childEnds []*os.File
	closeChildEnds := func() {
		for _, f := range childEnds {
			_ = f.Close()
		}
	}
	if l.Stdout != nil {
		w, err := forward(l.Stdout)
		if err != nil {
			return nil, err
		}
		childEnds = append(childEnds, w)
		cmd.Stdout = w
	}
	if l.Stderr != nil {
		w, err := forward(l.Stderr)
		if err != nil {
			closeChildEnds()
			return nil, err
		}
		childEnds = append(childEnds, w)
		cmd.Stderr = w
	}

	err := cmd.Start()
	// The child holds its own copies; closing ours lets the readers see EOF.
	closeChildEnds()
	if err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

// forward returns the write end of a pipe whose contents are copied to dst
// until every writer has closed it.
func forward(dst io.Writer) (*os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	go func() {
		_, _ = io.Copy(dst, r)
		_ = r.Close()
	}()
	return w, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig os.Signal) error {
	if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *execProcess) Wait() (ExitInfo, error) {
	err := p.cmd.Wait()
	if p.cmd.ProcessState == nil {
		if err == nil {
			err = ErrSpawn
		}
		return ExitInfo{Code: -1}, err
	}
	code, sig, signaled := unix.ExitStatus(p.cmd.ProcessState)
	return ExitInfo{Code: code, Signal: sig, Signaled: signaled}, nil
}

// isBinaryNotFound reports whether a launch error means the binary is missing
func isBinaryNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// lineWriter forwards process output to a logger, one event per line
type lineWriter struct {
	log    zerolog.Logger
	stream string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\r\n"), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		w.log.Debug().Str("stream", w.stream).Msg(line)
	}
	return len(p), nil
}
