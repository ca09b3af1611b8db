package tunnelctl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// EndpointFilter is the picker filter for endpoint definitions
var EndpointFilter = FileFilter{
	Name:       "WireGuard config",
	Extensions: []string{EndpointFileExt},
}

// Controller drives the user-facing workflow: choose an endpoint, persist
// it, (re)start the supervisor and reflect every outcome in the status
// model. It is the single consumer of the supervisor's events.
type Controller struct {
	store    *ConfigStore
	sup      *Supervisor
	status   *StatusModel
	picker   FilePicker
	notify   Notifier
	log      zerolog.Logger
	bindHost string
	bindPort uint16

	// mu serializes workflow steps and event handling
	mu        sync.Mutex
	gen       uint64
	newConfig bool
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithControllerLogger sets the controller's logger
func WithControllerLogger(l zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = l
	}
}

// WithControllerBindAddress sets the bind address persisted with each
// endpoint. It must match the address given to the Supervisor.
func WithControllerBindAddress(host string, port uint16) ControllerOption {
	return func(c *Controller) {
		c.bindHost = host
		c.bindPort = port
	}
}

// NewController wires a controller to its collaborators. picker and notify
// may be nil; a nil notifier drops messages after logging them. The status
// model is given the controller's bind address so tooltips show the proxy
// the persisted config points at.
func NewController(store *ConfigStore, sup *Supervisor, status *StatusModel, picker FilePicker, notify Notifier, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:    store,
		sup:      sup,
		status:   status,
		picker:   picker,
		notify:   notify,
		log:      zerolog.Nop(),
		bindHost: DefaultBindHost,
		bindPort: DefaultBindPort,
	}
	for _, opt := range opts {
		opt(c)
	}
	status.SetBindAddress(c.bindHost, c.bindPort)
	return c
}

// Status returns the status model
func (c *Controller) Status() *StatusModel {
	return c.status
}

// Activate renders the initial status, hooks the indicator's click to the
// endpoint picker and starts the persisted config if there is one. A
// failure here keeps the config file so the user can retry.
func (c *Controller) Activate(ctx context.Context, indicator StatusIndicator) error {
	if indicator != nil {
		indicator.OnActivate(func() {
			if err := c.PickEndpoint(ctx); err != nil {
				c.log.Error().Err(err).Msg("endpoint selection failed")
			}
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, ok, err := c.store.Read()
	if err != nil {
		c.status.Set(StateError, "")
		c.notifyError(fmt.Sprintf("Reading tunnel config failed: %v", err))
		return err
	}
	if !ok {
		c.log.Info().Str("path", c.store.Path()).Msg("no tunnel configured")
		c.status.Set(StateNoConfig, "")
		return nil
	}

	return c.startLocked(ctx, cfg.Profile(), false)
}

// PickEndpoint asks the user for an endpoint and selects it. Cancelling the
// picker is a no-op.
func (c *Controller) PickEndpoint(ctx context.Context) error {
	if c.picker == nil {
		return nil
	}
	path, ok, err := c.picker.ChooseFile(ctx, EndpointFilter)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return c.SelectEndpoint(ctx, path)
}

// SelectEndpoint switches the tunnel to the endpoint at path. Selecting the
// active endpoint again does nothing, except in StateError, where it starts
// that endpoint again as a retry. If the new process fails, the config is
// deleted and the status resets to NoConfig.
func (c *Controller) SelectEndpoint(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &OpError{Op: OpWrite, Path: path, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if abs == c.store.Current() && c.status.State() != StateError {
		c.log.Debug().Str("path", abs).Msg("endpoint already active")
		return nil
	}

	if err := c.sup.Stop(ctx); err != nil {
		return err
	}
	if err := c.store.Write(abs, c.bindHost, c.bindPort); err != nil {
		c.notifyError(fmt.Sprintf("Saving tunnel config failed: %v", err))
		return err
	}
	c.log.Info().Str("path", abs).Msg("endpoint selected")

	return c.startLocked(ctx, ProfileName(abs), true)
}

// Deactivate stops the tunnel process for host shutdown. The config file
// and proxy setting are left consistent with "not running".
func (c *Controller) Deactivate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sup.Stop(ctx)
}

// Run consumes supervisor events until ctx is done or the supervisor is
// closed.
func (c *Controller) Run(ctx context.Context) error {
	events := c.sup.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case o, ok := <-events:
			if !ok {
				return nil
			}
			c.mu.Lock()
			c.handleLocked(o)
			c.mu.Unlock()
		}
	}
}

// HandleConfigChange reacts to edits of the persisted file made outside
// this controller. The event only signals that the file may have changed:
// the file is read again under the controller lock, since the event's copy
// can predate a write or clear the controller made since. A removed file
// stops the tunnel; a different endpoint restarts it as an existing config.
// A file matching the endpoint the controller already tracks is ignored,
// which covers its own writes.
func (c *Controller) HandleConfigChange(ctx context.Context, ev ConfigEvent) error {
	if ev.Err != nil {
		c.log.Warn().Err(ev.Err).Msg("config watch error")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, present, err := c.store.load()
	if err != nil {
		c.log.Warn().Err(err).Msg("re-reading changed config")
		return err
	}
	if present != ev.Present || cfg != ev.Config {
		c.log.Debug().Str("path", c.store.Path()).Msg("config event superseded by file contents")
	}

	if !present {
		if c.store.Current() == "" {
			return nil
		}
		c.log.Info().Str("path", c.store.Path()).Msg("config removed, stopping tunnel")
		c.gen = 0
		c.store.setCurrent("")
		if err := c.sup.Stop(ctx); err != nil {
			return err
		}
		c.status.Set(StateNoConfig, "")
		return nil
	}

	if cfg.EndpointPath == c.store.Current() {
		return nil
	}
	c.log.Info().Str("path", cfg.EndpointPath).Msg("config changed, restarting tunnel")
	c.store.setCurrent(cfg.EndpointPath)
	return c.startLocked(ctx, cfg.Profile(), false)
}

func (c *Controller) startLocked(ctx context.Context, profile string, newConfig bool) error {
	c.status.Set(StateStarting, profile)
	c.newConfig = newConfig

	launch, err := c.sup.Start(ctx, StartRequest{
		ConfigPath: c.store.Path(),
		Profile:    profile,
		NewConfig:  newConfig,
	})
	if err != nil {
		var oe *OutcomeError
		if errors.As(err, &oe) {
			c.gen = oe.Outcome.Generation
			c.handleLocked(oe.Outcome)
			return nil
		}
		c.status.Set(StateError, profile)
		c.notifyError(fmt.Sprintf("Starting tunnel %s failed: %v", profile, err))
		return err
	}
	c.gen = launch.Generation
	return nil
}

// handleLocked maps one outcome onto the status model and config store.
// Outcomes from superseded processes are ignored.
func (c *Controller) handleLocked(o Outcome) {
	log := c.log.With().Uint64("generation", o.Generation).Str("outcome", o.Kind.String()).Logger()
	if o.Generation != c.gen {
		log.Debug().Uint64("active", c.gen).Msg("ignoring outcome from superseded process")
		return
	}

	switch o.Kind {
	case OutcomeStable:
		// A config that reached Connected is no longer presumed invalid.
		c.newConfig = false
		c.status.Apply(o)
		log.Info().Str("profile", o.Profile).Msg("tunnel connected")

	case OutcomeIntentionalStop:
		if _, ok, err := c.store.Read(); err == nil && !ok {
			c.status.Set(StateNoConfig, "")
		}

	default:
		if !o.Failed() {
			return
		}
		c.notifyError(o.String())
		c.status.Apply(o)
		if c.newConfig {
			if err := c.store.Clear(); err != nil {
				log.Error().Err(err).Msg("clearing rejected config")
			}
			c.status.Set(StateNoConfig, "")
		}
		c.gen = 0
	}
}

func (c *Controller) notifyError(msg string) {
	c.log.Error().Msg(msg)
	if c.notify != nil {
		c.notify.Error(msg)
	}
}
