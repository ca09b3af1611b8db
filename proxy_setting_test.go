package tunnelctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProxySetting(t *testing.T) {
	var m MemoryProxySetting
	v, err := m.Get()
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, m.Set("http://127.0.0.1:25345"))
	v, _ = m.Get()
	assert.Equal(t, "http://127.0.0.1:25345", v)

	require.NoError(t, m.Clear())
	v, _ = m.Get()
	assert.Empty(t, v)
}

func TestFileProxySettingPreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host", "settings.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("\"editor.fontSize\" = 14\ntheme = \"dark\"\n"), 0o644))

	p := NewFileProxySetting(path)
	v, err := p.Get()
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, p.Set("http://127.0.0.1:25345"))
	v, err = p.Get()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:25345", v)

	var settings map[string]any
	_, err = toml.DecodeFile(path, &settings)
	require.NoError(t, err)
	assert.Equal(t, "dark", settings["theme"])
	assert.EqualValues(t, 14, settings["editor.fontSize"])
	assert.Equal(t, "http://127.0.0.1:25345", settings[DefaultProxyKey])

	require.NoError(t, p.Clear())
	v, err = p.Get()
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestFileProxySettingMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new", "settings.toml")
	p := &FileProxySetting{Path: path}

	v, err := p.Get()
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, p.Set("http://127.0.0.1:1"))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestFileProxySettingErrors(t *testing.T) {
	dir := t.TempDir()

	notString := filepath.Join(dir, "number.toml")
	require.NoError(t, os.WriteFile(notString, []byte("\"http.proxy\" = 3\n"), 0o644))
	_, err := NewFileProxySetting(notString).Get()
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpProxy, opErr.Op)

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("this is = = not toml"), 0o644))
	err = NewFileProxySetting(broken).Set("http://127.0.0.1:1")
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, broken, opErr.Path)
}
