package tunnelctl

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio/v2"
)

// DefaultProxyKey is the settings key FileProxySetting writes
const DefaultProxyKey = "http.proxy"

// MemoryProxySetting keeps the proxy setting in memory
type MemoryProxySetting struct {
	mu    sync.Mutex
	value string
}

// Set stores url
func (m *MemoryProxySetting) Set(url string) error {
	m.mu.Lock()
	m.value = url
	m.mu.Unlock()
	return nil
}

// Clear resets the value to ""
func (m *MemoryProxySetting) Clear() error {
	return m.Set("")
}

// Get returns the stored value
func (m *MemoryProxySetting) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

// FileProxySetting stores the proxy setting as one key of a TOML settings
// file shared with other host settings. Unrelated keys are preserved.
type FileProxySetting struct {
	// Path is the settings file
	Path string
	// Key is the settings key, DefaultProxyKey when empty
	Key string

	mu sync.Mutex
}

// NewFileProxySetting creates a FileProxySetting for path using DefaultProxyKey
func NewFileProxySetting(path string) *FileProxySetting {
	return &FileProxySetting{Path: path, Key: DefaultProxyKey}
}

func (f *FileProxySetting) key() string {
	if f.Key == "" {
		return DefaultProxyKey
	}
	return f.Key
}

// Set writes url under the proxy key
func (f *FileProxySetting) Set(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	settings, err := f.load()
	if err != nil {
		return err
	}
	settings[f.key()] = url

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(settings); err != nil {
		return &OpError{Op: OpProxy, Path: f.Path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), DirMode); err != nil {
		return &OpError{Op: OpProxy, Path: f.Path, Err: err}
	}
	if err := renameio.WriteFile(f.Path, buf.Bytes(), 0o644); err != nil {
		return &OpError{Op: OpProxy, Path: f.Path, Err: err}
	}
	return nil
}

// Clear writes "" under the proxy key
func (f *FileProxySetting) Clear() error {
	return f.Set("")
}

// Get returns the value under the proxy key, "" if unset
func (f *FileProxySetting) Get() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	settings, err := f.load()
	if err != nil {
		return "", err
	}
	v, ok := settings[f.key()]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &OpError{Op: OpProxy, Path: f.Path, Err: fmt.Errorf("key %q is %T, not a string", f.key(), v)}
	}
	return s, nil
}

func (f *FileProxySetting) load() (map[string]any, error) {
	settings := make(map[string]any)
	if _, err := toml.DecodeFile(f.Path, &settings); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return nil, &OpError{Op: OpProxy, Path: f.Path, Err: err}
	}
	return settings, nil
}
