package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARNING ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.raw)
		assert.Equal(t, tt.ok, ok, "ParseLevel(%q) ok", tt.raw)
		assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.raw)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogJSON, "true")
	t.Setenv(EnvLogTimestamp, "")

	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnvOverrides(&cfg)
	assert.Equal(t, zerolog.ErrorLevel, cfg.Level)
	assert.True(t, cfg.JSON)
	assert.True(t, cfg.Timestamp)
}

func TestNewJSONRespectsLevel(t *testing.T) {
	t.Setenv(EnvLogJSON, "1")
	t.Setenv(EnvLogLevel, "")
	var buf bytes.Buffer

	log := New(ProfileTest, &buf, "warn")
	log.Info().Msg("hidden")
	log.Warn().Str("pid", "42").Msg("shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"message":"shown"`)
	require.Contains(t, out, `"pid":"42"`)
}

func TestDefaultConfigProfiles(t *testing.T) {
	rt := DefaultConfig(ProfileRuntime)
	assert.Equal(t, zerolog.InfoLevel, rt.Level)
	assert.True(t, rt.Timestamp)
	assert.False(t, rt.NoColor)

	tc := DefaultConfig(ProfileTest)
	assert.Equal(t, zerolog.DebugLevel, tc.Level)
	assert.False(t, tc.Timestamp)
	assert.True(t, tc.NoColor)
}
