package tunnelctl

import (
	"fmt"
	"sync"
)

// State is the status shown to the user for the tunnel
type State int

const (
	// StateNoConfig means no endpoint is configured
	StateNoConfig State = iota
	// StateStarting means a process was spawned and the stability window is running
	StateStarting
	// StateConnected means the process survived the stability window
	StateConnected
	// StateError means the last process failed
	StateError
)

// State string constants
const (
	stateNoConfigStr  = "no_config"
	stateStartingStr  = "starting"
	stateConnectedStr = "connected"
	stateErrorStr     = "error"
	stateUnknownStr   = "unknown"
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateNoConfig:
		return stateNoConfigStr
	case StateStarting:
		return stateStartingStr
	case StateConnected:
		return stateConnectedStr
	case StateError:
		return stateErrorStr
	default:
		return stateUnknownStr
	}
}

// Presentation is what a status indicator renders
type Presentation struct {
	Label   string
	Tooltip string
}

// Describe renders a state for the status indicator, assuming the proxy
// listens on DefaultBindHost.
func Describe(state State, profile string, port uint16) Presentation {
	return DescribeAddr(state, profile, DefaultBindHost, port)
}

// DescribeAddr is Describe for a proxy bound to host.
func DescribeAddr(state State, profile, host string, port uint16) Presentation {
	switch state {
	case StateStarting:
		return Presentation{
			Label:   "Tunnel: starting",
			Tooltip: fmt.Sprintf("Starting tunnel %s on port %d", profile, port),
		}
	case StateConnected:
		return Presentation{
			Label:   "Tunnel: " + profile,
			Tooltip: fmt.Sprintf("Connected via %s, proxy %s. Click to switch endpoint.", profile, ProxyURL(host, port)),
		}
	case StateError:
		return Presentation{
			Label:   "Tunnel: error",
			Tooltip: fmt.Sprintf("Tunnel %s failed. Click to select an endpoint.", profile),
		}
	default:
		return Presentation{
			Label:   "Tunnel: off",
			Tooltip: "No tunnel configured. Click to select an endpoint.",
		}
	}
}

// Next returns the state that follows an outcome. IntentionalStop leaves the
// state unchanged; the controller decides what follows a stop it requested.
func Next(current State, o Outcome) State {
	switch o.Kind {
	case OutcomeStable:
		if current == StateStarting {
			return StateConnected
		}
		return current
	case OutcomeCleanExit, OutcomeCrashExit, OutcomeSpawnError, OutcomeBinaryNotFound:
		return StateError
	default:
		return current
	}
}

// StatusModel holds the current state and pushes every transition to an
// indicator.
type StatusModel struct {
	mu        sync.Mutex
	state     State
	profile   string
	host      string
	port      uint16
	indicator StatusIndicator
}

// NewStatusModel creates a StatusModel in StateNoConfig for a proxy on
// DefaultBindHost. indicator may be nil.
func NewStatusModel(indicator StatusIndicator, port uint16) *StatusModel {
	return &StatusModel{
		state:     StateNoConfig,
		host:      DefaultBindHost,
		port:      port,
		indicator: indicator,
	}
}

// SetBindAddress changes the proxy address shown in tooltips. It does not
// render; the next transition does.
func (m *StatusModel) SetBindAddress(host string, port uint16) {
	m.mu.Lock()
	m.host = host
	m.port = port
	m.mu.Unlock()
}

// State returns the current state
func (m *StatusModel) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Profile returns the label associated with the current state
func (m *StatusModel) Profile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// Presentation returns the rendering of the current state
func (m *StatusModel) Presentation() Presentation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return DescribeAddr(m.state, m.profile, m.host, m.port)
}

// Set transitions to state with the given profile label and renders it
func (m *StatusModel) Set(state State, profile string) {
	m.mu.Lock()
	m.state = state
	m.profile = profile
	p := DescribeAddr(state, profile, m.host, m.port)
	m.mu.Unlock()

	if m.indicator != nil {
		m.indicator.Render(p.Label, p.Tooltip)
	}
}

// Apply transitions according to Next and returns the new state
func (m *StatusModel) Apply(o Outcome) State {
	m.mu.Lock()
	next := Next(m.state, o)
	changed := next != m.state
	if changed {
		m.state = next
		if o.Profile != "" {
			m.profile = o.Profile
		}
	}
	p := DescribeAddr(m.state, m.profile, m.host, m.port)
	m.mu.Unlock()

	if changed && m.indicator != nil {
		m.indicator.Render(p.Label, p.Tooltip)
	}
	return next
}

// Render pushes the current state to the indicator without changing it
func (m *StatusModel) Render() {
	p := m.Presentation()
	if m.indicator != nil {
		m.indicator.Render(p.Label, p.Tooltip)
	}
}
