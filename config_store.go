package tunnelctl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

// Persisted config keys
const (
	keyEndpoint    = "WGConfig"
	keyBindAddress = "BindAddress"
	sectionHTTP    = "http"
)

// SupervisorConfig is the record persisted by ConfigStore. The external
// binary reads the same file, so everything it contains besides these
// fields is passed through untouched.
type SupervisorConfig struct {
	// EndpointPath is the absolute path of the endpoint definition
	EndpointPath string
	// BindAddress is the host part of the local proxy listener
	BindAddress string
	// BindPort is the local proxy port
	BindPort uint16
}

// Profile returns the display name of the configured endpoint
func (c SupervisorConfig) Profile() string {
	return ProfileName(c.EndpointPath)
}

// ProxyURL returns the host proxy setting value matching this config
func (c SupervisorConfig) ProxyURL() string {
	return ProxyURL(c.BindAddress, c.BindPort)
}

// ProfileName strips directory and extension from an endpoint path.
func ProfileName(endpointPath string) string {
	base := filepath.Base(endpointPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ConfigStore reads and writes the supervisor config file. It has no
// knowledge of processes.
type ConfigStore struct {
	path string

	mu      sync.Mutex
	current string
}

// NewConfigStore creates a ConfigStore for the file at path
func NewConfigStore(path string) *ConfigStore {
	return &ConfigStore{path: path}
}

// Path returns the location of the persisted file
func (s *ConfigStore) Path() string {
	return s.path
}

// Current returns the endpoint path last written or read, or "" if none
func (s *ConfigStore) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Read parses the persisted file. It returns false when the file is absent
// or when the endpoint field cannot be extracted; a malformed file counts
// as missing rather than as an error.
func (s *ConfigStore) Read() (SupervisorConfig, bool, error) {
	cfg, ok, err := s.load()
	if err != nil {
		return SupervisorConfig{}, false, err
	}
	s.setCurrent(cfg.EndpointPath)
	return cfg, ok, nil
}

// load parses the file without touching the current-endpoint pointer
func (s *ConfigStore) load() (SupervisorConfig, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return SupervisorConfig{}, false, nil
		}
		return SupervisorConfig{}, false, &OpError{Op: OpRead, Path: s.path, Err: err}
	}
	cfg, ok := ParseSupervisorConfig(data)
	return cfg, ok, nil
}

// Write creates the containing directory if needed and atomically replaces
// the file with the three fields.
func (s *ConfigStore) Write(endpointPath, bindAddress string, bindPort uint16) error {
	cfg := SupervisorConfig{
		EndpointPath: endpointPath,
		BindAddress:  bindAddress,
		BindPort:     bindPort,
	}
	if err := cfg.Validate(); err != nil {
		return &OpError{Op: OpWrite, Path: s.path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), DirMode); err != nil {
		return &OpError{Op: OpWrite, Path: s.path, Err: err}
	}
	if err := renameio.WriteFile(s.path, FormatSupervisorConfig(cfg), FileMode); err != nil {
		return &OpError{Op: OpWrite, Path: s.path, Err: err}
	}

	s.setCurrent(endpointPath)
	return nil
}

// Clear removes the persisted file and resets the current endpoint.
// Clearing an absent file is not an error.
func (s *ConfigStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &OpError{Op: OpClear, Path: s.path, Err: err}
	}
	s.setCurrent("")
	return nil
}

func (s *ConfigStore) setCurrent(endpointPath string) {
	s.mu.Lock()
	s.current = endpointPath
	s.mu.Unlock()
}

// Validate checks the invariants a persisted config must hold
func (c SupervisorConfig) Validate() error {
	if c.EndpointPath == "" {
		return fmt.Errorf("%w: endpoint path is empty", ErrConfigInvalid)
	}
	if !filepath.IsAbs(c.EndpointPath) {
		return fmt.Errorf("%w: endpoint path %q is not absolute", ErrConfigInvalid, c.EndpointPath)
	}
	if strings.ContainsAny(c.EndpointPath, "\"\n") {
		return fmt.Errorf("%w: endpoint path %q contains a quote or newline", ErrConfigInvalid, c.EndpointPath)
	}
	if strings.TrimSpace(c.BindAddress) == "" {
		return fmt.Errorf("%w: bind address is empty", ErrConfigInvalid)
	}
	if c.BindPort == 0 {
		return fmt.Errorf("%w: bind port is zero", ErrConfigInvalid)
	}
	return nil
}

// FormatSupervisorConfig renders cfg in the layout the tunnel binary reads.
func FormatSupervisorConfig(cfg SupervisorConfig) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s = \"%s\"\n", keyEndpoint, cfg.EndpointPath)
	b.WriteString("\n")
	fmt.Fprintf(&b, "[%s]\n", sectionHTTP)
	fmt.Fprintf(&b, "%s = %s\n", keyBindAddress, net.JoinHostPort(cfg.BindAddress, strconv.Itoa(int(cfg.BindPort))))
	return b.Bytes()
}

// ParseSupervisorConfig extracts the endpoint path from the first
// `WGConfig = "<value>"` line and, when present, the [http] BindAddress.
// It reports false if no usable endpoint path is found.
func ParseSupervisorConfig(data []byte) (SupervisorConfig, bool) {
	var cfg SupervisorConfig
	var section string
	found := false

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if line[0] == '[' && line[len(line)-1] == ']' {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case key == keyEndpoint && !found:
			path, ok := unquote(value)
			if !ok {
				continue
			}
			cfg.EndpointPath = path
			found = true
		case key == keyBindAddress && section == sectionHTTP && cfg.BindPort == 0:
			host, port, err := net.SplitHostPort(value)
			if err != nil {
				continue
			}
			n, err := strconv.ParseUint(port, 10, 16)
			if err != nil {
				continue
			}
			cfg.BindAddress = host
			cfg.BindPort = uint16(n)
		}
	}

	if !found || cfg.EndpointPath == "" || !filepath.IsAbs(cfg.EndpointPath) {
		return SupervisorConfig{}, false
	}
	return cfg, true
}

// unquote strips one pair of double quotes without interpreting escapes,
// so Windows paths survive unchanged.
func unquote(value string) (string, bool) {
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return "", false
	}
	return value[1 : len(value)-1], true
}
