// Package logging builds the zerolog logger used by tunnelctl binaries.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Environment variables that override the profile defaults
const (
	// EnvLogLevel sets the minimum level (trace, debug, info, warn, error, disabled)
	EnvLogLevel = "TUNNELCTL_LOG_LEVEL"
	// EnvLogTimestamp turns timestamps on or off
	EnvLogTimestamp = "TUNNELCTL_LOG_TIMESTAMP"
	// EnvLogNoColor disables colored console output
	EnvLogNoColor = "TUNNELCTL_LOG_NOCOLOR"
	// EnvLogJSON switches from the console writer to JSON lines
	EnvLogJSON = "TUNNELCTL_LOG_JSON"
)

// Profile selects a set of logger defaults
type Profile int

const (
	// ProfileRuntime logs at info with timestamps and color
	ProfileRuntime Profile = iota
	// ProfileTest logs at debug without timestamps or color
	ProfileTest
)

// Config controls how the logger is built
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	JSON      bool
}

// DefaultConfig returns the profile's defaults before env overrides
func DefaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false, NoColor: true}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

// New builds a logger for profile writing to out, applying env overrides.
// level, when non-empty, takes precedence over the profile default but not
// over the environment.
func New(profile Profile, out io.Writer, level string) zerolog.Logger {
	cfg := DefaultConfig(profile)
	if lvl, ok := ParseLevel(level); ok {
		cfg.Level = lvl
	}
	ApplyEnvOverrides(&cfg)
	return Build(cfg, out)
}

// Build creates the logger described by cfg
func Build(cfg Config, out io.Writer) zerolog.Logger {
	w := out
	if !cfg.JSON {
		w = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
	}
	ctx := zerolog.New(w).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// ApplyEnvOverrides reads the TUNNELCTL_LOG_* variables into cfg
func ApplyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok {
		cfg.JSON = v
	}
}

// ParseLevel maps a level name to a zerolog level. ok is false for empty
// or unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
