package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/axondata/go-tunnelctl"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment overrides, applied after the settings file and .env
const (
	envBinary       = "TUNNELCTL_BINARY"
	envConfigPath   = "TUNNELCTL_CONFIG"
	envHostSettings = "TUNNELCTL_HOST_SETTINGS"
	envBindPort     = "TUNNELCTL_BIND_PORT"
)

type settings struct {
	Binary          string        `validate:"required"`
	ConfigPath      string        `validate:"required"`
	HostSettings    string        `validate:"required"`
	BindHost        string        `validate:"required,ip"`
	BindPort        int           `validate:"required,min=1,max=65535"`
	StabilityWindow time.Duration `validate:"gt=0"`
	LogLevel        string        `validate:"omitempty,oneof=trace debug info warn warning error disabled off none"`
}

type fileSettings struct {
	Binary          string `toml:"binary"`
	ConfigPath      string `toml:"config_path"`
	HostSettings    string `toml:"host_settings"`
	BindHost        string `toml:"bind_host"`
	BindPort        int    `toml:"bind_port"`
	StabilityWindow string `toml:"stability_window"`
	LogLevel        string `toml:"log_level"`
}

func defaultSettings(baseDir string) settings {
	return settings{
		Binary:          tunnelctl.DefaultBinaryPath,
		ConfigPath:      filepath.Join(baseDir, tunnelctl.DefaultConfigFileName),
		HostSettings:    filepath.Join(baseDir, "settings.toml"),
		BindHost:        tunnelctl.DefaultBindHost,
		BindPort:        int(tunnelctl.DefaultBindPort),
		StabilityWindow: tunnelctl.DefaultStabilityWindow,
	}
}

// defaultBaseDir is the per-user directory holding the persisted config
func defaultBaseDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".tunnelctl")
	}
	return filepath.Join(dir, "tunnelctl")
}

// loadSettings overlays the TOML file at path (if it exists), the .env file
// at envPath (if it exists) and the process environment onto defaults.
func loadSettings(path, envPath, baseDir string) (settings, error) {
	cfg := defaultSettings(baseDir)

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return settings{}, fmt.Errorf("load env file: %w", err)
		}
	}

	if path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return settings{}, err
		}
	}

	if err := overlayEnv(&cfg); err != nil {
		return settings{}, err
	}

	abs, err := filepath.Abs(cfg.ConfigPath)
	if err != nil {
		return settings{}, fmt.Errorf("resolve config_path: %w", err)
	}
	cfg.ConfigPath = abs

	if err := validateSettings(cfg); err != nil {
		return settings{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *settings, path string) error {
	var raw fileSettings
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load settings: %w", err)
	}

	if meta.IsDefined("binary") {
		cfg.Binary = strings.TrimSpace(raw.Binary)
	}
	if meta.IsDefined("config_path") {
		cfg.ConfigPath = strings.TrimSpace(raw.ConfigPath)
	}
	if meta.IsDefined("host_settings") {
		cfg.HostSettings = strings.TrimSpace(raw.HostSettings)
	}
	if meta.IsDefined("bind_host") {
		cfg.BindHost = strings.TrimSpace(raw.BindHost)
	}
	if meta.IsDefined("bind_port") {
		cfg.BindPort = raw.BindPort
	}
	if meta.IsDefined("stability_window") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.StabilityWindow))
		if err != nil {
			return fmt.Errorf("parse stability_window: %w", err)
		}
		cfg.StabilityWindow = d
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}
	return nil
}

func overlayEnv(cfg *settings) error {
	if v := strings.TrimSpace(os.Getenv(envBinary)); v != "" {
		cfg.Binary = v
	}
	if v := strings.TrimSpace(os.Getenv(envConfigPath)); v != "" {
		cfg.ConfigPath = v
	}
	if v := strings.TrimSpace(os.Getenv(envHostSettings)); v != "" {
		cfg.HostSettings = v
	}
	if v := strings.TrimSpace(os.Getenv(envBindPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envBindPort, err)
		}
		cfg.BindPort = port
	}
	return nil
}

func validateSettings(cfg settings) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
