package tunnelctl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextConfigEvent(t *testing.T, ch <-chan ConfigEvent) ConfigEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for config event")
		return ConfigEvent{}
	}
}

func TestConfigWatch(t *testing.T) {
	dir := t.TempDir()
	store := NewConfigStore(filepath.Join(dir, "state", DefaultConfigFileName))

	ch, cleanup, err := store.Watch(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	ev := nextConfigEvent(t, ch)
	require.NoError(t, ev.Err)
	assert.False(t, ev.Present)

	endpoint := filepath.Join(dir, "home.conf")
	require.NoError(t, store.Write(endpoint, DefaultBindHost, DefaultBindPort))

	ev = nextConfigEvent(t, ch)
	require.NoError(t, ev.Err)
	require.True(t, ev.Present)
	assert.Equal(t, endpoint, ev.Config.EndpointPath)
	assert.Equal(t, DefaultBindPort, ev.Config.BindPort)

	require.NoError(t, os.Remove(store.Path()))
	ev = nextConfigEvent(t, ch)
	assert.False(t, ev.Present)

	// Watch reads leave the pointer alone; only Write and Read move it.
	assert.Equal(t, endpoint, store.Current())
}

func TestConfigWatchIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	store := NewConfigStore(filepath.Join(dir, DefaultConfigFileName))

	ch, cleanup, err := store.Watch(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	nextConfigEvent(t, ch)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.conf"), []byte("x"), 0o600))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConfigWatchCleanupClosesChannel(t *testing.T) {
	store := NewConfigStore(filepath.Join(t.TempDir(), DefaultConfigFileName))

	ch, cleanup, err := store.Watch(context.Background())
	require.NoError(t, err)
	nextConfigEvent(t, ch)

	require.NoError(t, cleanup())
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConfigWatchContextCancel(t *testing.T) {
	store := NewConfigStore(filepath.Join(t.TempDir(), DefaultConfigFileName))
	ctx, cancel := context.WithCancel(context.Background())

	ch, cleanup, err := store.Watch(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	nextConfigEvent(t, ch)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
