package tunnelctl

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewConfigStore(filepath.Join(dir, "nested", "state", DefaultConfigFileName))
	endpoint := filepath.Join(dir, "endpoints", "office.conf")

	require.NoError(t, store.Write(endpoint, DefaultBindHost, DefaultBindPort))
	assert.Equal(t, endpoint, store.Current())

	cfg, ok, err := store.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, endpoint, cfg.EndpointPath)
	assert.Equal(t, DefaultBindHost, cfg.BindAddress)
	assert.Equal(t, DefaultBindPort, cfg.BindPort)
	assert.Equal(t, "office", cfg.Profile())
	assert.Equal(t, "http://127.0.0.1:25345", cfg.ProxyURL())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `WGConfig = "`+endpoint+`"`)
	assert.Contains(t, string(data), "[http]\nBindAddress = 127.0.0.1:25345\n")

	require.NoError(t, store.Clear())
	assert.Empty(t, store.Current())
	_, ok, err = store.Read()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfigStoreClearIdempotent(t *testing.T) {
	store := NewConfigStore(filepath.Join(t.TempDir(), DefaultConfigFileName))
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
}

func TestConfigStoreReadMissing(t *testing.T) {
	store := NewConfigStore(filepath.Join(t.TempDir(), "absent", DefaultConfigFileName))
	cfg, ok, err := store.Read()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, SupervisorConfig{}, cfg)
}

func TestConfigStoreMalformedIsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFileName)
	store := NewConfigStore(path)

	for _, content := range []string{
		"",
		"garbage\n",
		"WGConfig = /no/quotes.conf\n",
		"WGConfig = \"relative/path.conf\"\n",
		"WGConfig = \"\"\n",
	} {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		_, ok, err := store.Read()
		require.NoError(t, err, "content %q", content)
		assert.False(t, ok, "content %q", content)
	}
}

func TestConfigStoreWriteRejectsInvalid(t *testing.T) {
	store := NewConfigStore(filepath.Join(t.TempDir(), DefaultConfigFileName))

	tests := []struct {
		name     string
		endpoint string
		host     string
		port     uint16
	}{
		{"empty path", "", DefaultBindHost, DefaultBindPort},
		{"relative path", "endpoints/home.conf", DefaultBindHost, DefaultBindPort},
		{"empty host", "/etc/wg/home.conf", "", DefaultBindPort},
		{"zero port", "/etc/wg/home.conf", DefaultBindHost, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Write(tt.endpoint, tt.host, tt.port)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfigInvalid)
			var opErr *OpError
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, OpWrite, opErr.Op)
		})
	}
	_, err := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err), "invalid writes must not create the file")
}

func TestConfigStoreReadError(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission checks do not apply")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("WGConfig = \"/x.conf\"\n"), 0o000))

	_, _, err := NewConfigStore(path).Read()
	require.Error(t, err)
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpRead, opErr.Op)
}

func TestParseSupervisorConfig(t *testing.T) {
	data := []byte(`# written by hand
WGConfig = "/etc/wireguard/first.conf"
WGConfig = "/etc/wireguard/second.conf"

[Socks5]
BindAddress = 127.0.0.1:1080

[http]
BindAddress = 127.0.0.1:3128
Username = someone
`)
	cfg, ok := ParseSupervisorConfig(data)
	require.True(t, ok)
	assert.Equal(t, "/etc/wireguard/first.conf", cfg.EndpointPath)
	assert.Equal(t, "127.0.0.1", cfg.BindAddress)
	assert.Equal(t, uint16(3128), cfg.BindPort)
}

func TestParseSupervisorConfigTolerant(t *testing.T) {
	cfg, ok := ParseSupervisorConfig([]byte("   WGConfig=\"/srv/wg/edge.conf\"   \r\n"))
	require.True(t, ok)
	assert.Equal(t, "/srv/wg/edge.conf", cfg.EndpointPath)
	assert.Zero(t, cfg.BindPort)

	// An unquoted first match is skipped in favour of the next valid line.
	cfg, ok = ParseSupervisorConfig([]byte("WGConfig = broken\nWGConfig = \"/srv/wg/ok.conf\"\n"))
	require.True(t, ok)
	assert.Equal(t, "/srv/wg/ok.conf", cfg.EndpointPath)
}

func TestProfileName(t *testing.T) {
	assert.Equal(t, "home", ProfileName("/etc/wireguard/home.conf"))
	assert.Equal(t, "work.vpn", ProfileName("/etc/wireguard/work.vpn.conf"))
	assert.Equal(t, "plain", ProfileName("/etc/wireguard/plain"))
}
