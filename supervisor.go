package tunnelctl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/axondata/go-tunnelctl/internal/unix"
	"github.com/rs/zerolog"
	"vawter.tech/stopper"
)

// StartRequest describes one process launch
type StartRequest struct {
	// ConfigPath is the absolute path passed to the binary after ConfigFlag
	ConfigPath string
	// Profile is the display label carried on every Outcome
	Profile string
	// NewConfig marks a config the user just selected
	NewConfig bool
}

// Launch identifies the process created by a successful Start
type Launch struct {
	Generation uint64
	PID        int
}

// Supervisor owns the single external tunnel process. Start always stops
// and awaits the previous process before spawning, so at most one process
// is alive at any time. Asynchronous outcomes are delivered on Events.
type Supervisor struct {
	binary   string
	window   time.Duration
	launcher Launcher
	proxy    ProxySetting
	bindHost string
	bindPort uint16
	log      zerolog.Logger

	// opMu serializes Start, Stop and Close
	opMu sync.Mutex

	// mu guards the fields below and every write to proxy
	mu       sync.Mutex
	current  *handle
	stopping *handle
	gen      uint64
	closed   bool

	events chan Outcome
	sctx   *stopper.Context
}

type handle struct {
	proc      Process
	pid       int
	gen       uint64
	profile   string
	newConfig bool
	done      chan struct{}

	mu          sync.Mutex
	intentional bool
	exited      bool
	confirmed   bool
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithBinary sets the external binary path
func WithBinary(path string) SupervisorOption {
	return func(s *Supervisor) {
		s.binary = path
	}
}

// WithLauncher replaces the os/exec launcher
func WithLauncher(l Launcher) SupervisorOption {
	return func(s *Supervisor) {
		s.launcher = l
	}
}

// WithStabilityWindow sets how long a process must survive to be Stable
func WithStabilityWindow(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.window = d
	}
}

// WithProxySetting sets the host proxy setting kept in sync with the process
func WithProxySetting(p ProxySetting) SupervisorOption {
	return func(s *Supervisor) {
		s.proxy = p
	}
}

// WithBindAddress sets the local proxy address written to the proxy setting
func WithBindAddress(host string, port uint16) SupervisorOption {
	return func(s *Supervisor) {
		s.bindHost = host
		s.bindPort = port
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.log = l
	}
}

// NewSupervisor creates a Supervisor. Its observer goroutines stop when ctx
// is done or Close is called.
func NewSupervisor(ctx context.Context, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		binary:   DefaultBinaryPath,
		window:   DefaultStabilityWindow,
		bindHost: DefaultBindHost,
		bindPort: DefaultBindPort,
		log:      zerolog.Nop(),
		events:   make(chan Outcome, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.proxy == nil {
		s.proxy = &MemoryProxySetting{}
	}
	if s.launcher == nil {
		s.launcher = &ExecLauncher{
			Stdout: &lineWriter{log: s.log, stream: "stdout"},
			Stderr: &lineWriter{log: s.log, stream: "stderr"},
		}
	}

	s.sctx = stopper.WithContext(ctx)
	s.sctx.Defer(func() {
		close(s.events)
	})
	return s
}

// Events returns the outcome stream. It is closed after Close.
func (s *Supervisor) Events() <-chan Outcome {
	return s.events
}

// ProxySetting returns the setting the supervisor writes
func (s *Supervisor) ProxySetting() ProxySetting {
	return s.proxy
}

// Running reports whether a process is currently owned
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Generation returns the generation of the most recent Start
func (s *Supervisor) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Start stops any live process, points the proxy setting at the local bind
// address and spawns the binary. Spawn failures are returned as an
// *OutcomeError and are not sent on Events.
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (Launch, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.stopLocked(ctx); err != nil {
		return Launch{}, err
	}

	s.mu.Lock()
	if s.closed || s.sctx.IsStopping() {
		s.mu.Unlock()
		return Launch{}, ErrClosed
	}
	s.gen++
	gen := s.gen
	if err := s.proxy.Set(ProxyURL(s.bindHost, s.bindPort)); err != nil {
		s.mu.Unlock()
		return Launch{}, &OpError{Op: OpProxy, Path: req.ConfigPath, Err: err}
	}
	s.mu.Unlock()

	log := s.log.With().Uint64("generation", gen).Str("profile", req.Profile).Logger()

	proc, err := s.launcher.Launch(ctx, s.binary, []string{ConfigFlag, req.ConfigPath})
	if err != nil {
		s.mu.Lock()
		if cerr := s.proxy.Clear(); cerr != nil {
			log.Warn().Err(cerr).Msg("clearing proxy setting after failed spawn")
		}
		s.mu.Unlock()

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Launch{}, err
		}
		o := Outcome{
			Kind:       OutcomeSpawnError,
			Generation: gen,
			Profile:    req.Profile,
			NewConfig:  req.NewConfig,
			ExitCode:   -1,
			Cause:      err,
		}
		if isBinaryNotFound(err) {
			o.Kind = OutcomeBinaryNotFound
		}
		log.Error().Err(err).Str("outcome", o.Kind.String()).Msg("tunnel spawn failed")
		return Launch{}, &OutcomeError{Outcome: o}
	}

	h := &handle{
		proc:      proc,
		pid:       proc.PID(),
		gen:       gen,
		profile:   req.Profile,
		newConfig: req.NewConfig,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.current = h
	s.mu.Unlock()

	log.Info().Int("pid", h.pid).Str("binary", s.binary).Msg("tunnel process started")

	s.sctx.Go(func(sctx *stopper.Context) error {
		s.observe(sctx, h)
		return nil
	})
	s.sctx.Go(func(sctx *stopper.Context) error {
		s.awaitStable(sctx, h)
		return nil
	})

	return Launch{Generation: gen, PID: h.pid}, nil
}

// Stop terminates the live process and returns once the OS has confirmed
// its exit. It is a no-op when nothing is running. There is no termination
// timeout; cancelling ctx only abandons the wait, and the next Start or
// Stop resumes waiting for the same process.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stopLocked(ctx)
}

func (s *Supervisor) stopLocked(ctx context.Context) error {
	s.mu.Lock()
	h := s.current
	s.current = nil
	pending := s.stopping
	s.mu.Unlock()

	if h == nil && pending == nil {
		return nil
	}

	if h != nil {
		h.mu.Lock()
		h.intentional = true
		h.mu.Unlock()

		s.log.Info().Int("pid", h.pid).Uint64("generation", h.gen).Msg("stopping tunnel process")
		if err := h.proc.Signal(unix.TermSignal); err != nil {
			s.log.Warn().Err(err).Int("pid", h.pid).Msg("signalling tunnel process")
		}
	}

	for _, w := range []*handle{pending, h} {
		if w == nil {
			continue
		}
		select {
		case <-w.done:
		case <-ctx.Done():
			s.mu.Lock()
			s.stopping = w
			s.mu.Unlock()
			return &OpError{Op: OpStop, Path: s.binary, Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	s.stopping = nil
	var err error
	if h != nil || pending != nil {
		if cerr := s.proxy.Clear(); cerr != nil {
			err = &OpError{Op: OpProxy, Path: s.binary, Err: cerr}
		}
	}
	s.mu.Unlock()

	if h != nil {
		s.log.Info().Int("pid", h.pid).Uint64("generation", h.gen).Msg("tunnel process stopped")
	}
	return err
}

// Close stops the live process, waits for observers to finish and closes
// the Events channel.
func (s *Supervisor) Close(ctx context.Context) error {
	s.opMu.Lock()
	err := s.stopLocked(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.opMu.Unlock()

	s.sctx.Stop(100 * time.Millisecond)
	if err != nil {
		return err
	}
	return s.sctx.Wait()
}

// observe waits for the process to exit and reports how it ended. The done
// channel is closed before the outcome is published so a Stop blocked on it
// never waits on the event consumer.
func (s *Supervisor) observe(sctx *stopper.Context, h *handle) {
	info, werr := h.proc.Wait()

	h.mu.Lock()
	h.exited = true
	intentional := h.intentional
	h.mu.Unlock()

	o := Outcome{
		Generation: h.gen,
		PID:        h.pid,
		Profile:    h.profile,
		NewConfig:  h.newConfig,
		ExitCode:   info.Code,
		Signal:     info.Signal,
		Signaled:   info.Signaled,
	}
	switch {
	case intentional:
		o.Kind = OutcomeIntentionalStop
	case werr != nil:
		o.Kind = OutcomeSpawnError
		o.Cause = werr
	case !info.Signaled && info.Code == 0:
		o.Kind = OutcomeCleanExit
	default:
		o.Kind = OutcomeCrashExit
	}

	s.mu.Lock()
	if s.current == h {
		s.current = nil
		if err := s.proxy.Clear(); err != nil {
			s.log.Warn().Err(err).Msg("clearing proxy setting after exit")
		}
	}
	s.mu.Unlock()

	close(h.done)

	ev := s.log.Info()
	if o.Failed() {
		ev = s.log.Error().AnErr("cause", o.Err())
	}
	ev.Int("pid", h.pid).Uint64("generation", h.gen).Str("outcome", o.Kind.String()).Msg("tunnel process exited")

	s.emit(sctx, o)
}

// awaitStable reports Stable once if the process outlives the window.
func (s *Supervisor) awaitStable(sctx *stopper.Context, h *handle) {
	t := time.NewTimer(s.window)
	defer t.Stop()

	select {
	case <-h.done:
		return
	case <-sctx.Stopping():
		return
	case <-t.C:
	}

	h.mu.Lock()
	if h.exited || h.intentional || h.confirmed {
		h.mu.Unlock()
		return
	}
	h.confirmed = true
	h.mu.Unlock()

	s.log.Info().Int("pid", h.pid).Uint64("generation", h.gen).Msg("tunnel process stable")
	s.emit(sctx, Outcome{
		Kind:       OutcomeStable,
		Generation: h.gen,
		PID:        h.pid,
		Profile:    h.profile,
		NewConfig:  h.newConfig,
	})
}

func (s *Supervisor) emit(sctx *stopper.Context, o Outcome) {
	select {
	case s.events <- o:
	case <-sctx.Stopping():
		s.log.Debug().Str("outcome", o.Kind.String()).Msg("dropping outcome after shutdown")
	}
}
