package tunnelctl

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// DefaultWatchDebounce coalesces the bursts of events an atomic rename produces
const DefaultWatchDebounce = 25 * time.Millisecond

// ConfigEvent reports the state of the persisted config after a change
type ConfigEvent struct {
	// Config is the parsed config when Present is true
	Config SupervisorConfig
	// Present is false when the file is absent or malformed
	Present bool
	// Err is set when the file or the watcher could not be read
	Err error
}

// WatchCleanupFunc stops a watch and waits for its goroutines to exit
type WatchCleanupFunc func() error

// Watch monitors the persisted file for changes. Reads made by the watch do
// not move the current-endpoint pointer. The first event carries the current state; later events are
// sent only when the parsed result differs from the previous one. The
// channel is closed after cleanup or when ctx is done.
func (s *ConfigStore) Watch(ctx context.Context) (<-chan ConfigEvent, WatchCleanupFunc, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return nil, nil, &OpError{Op: OpWatch, Path: s.path, Err: err}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, &OpError{Op: OpWatch, Path: s.path, Err: err}
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, nil, &OpError{Op: OpWatch, Path: s.path, Err: err}
	}

	ch := make(chan ConfigEvent, 10)

	var (
		mu        sync.Mutex
		debouncer *time.Timer
		last      *ConfigEvent

		// sendMu keeps a late debounced read from sending on a closed channel
		sendMu sync.RWMutex
		closed bool
	)

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
		sendMu.Lock()
		closed = true
		close(ch)
		sendMu.Unlock()
	})

	send := func(ev ConfigEvent) {
		sendMu.RLock()
		defer sendMu.RUnlock()
		if closed || sctx.IsStopping() {
			return
		}
		select {
		case ch <- ev:
		case <-sctx.Stopping():
		}
	}

	readAndSend := func() {
		if sctx.IsStopping() {
			return
		}
		cfg, ok, err := s.load()
		if err != nil {
			send(ConfigEvent{Err: err})
			return
		}
		ev := ConfigEvent{Config: cfg, Present: ok}

		mu.Lock()
		if last != nil && last.Present == ev.Present && last.Config == ev.Config {
			mu.Unlock()
			return
		}
		last = &ev
		mu.Unlock()

		send(ev)
	}

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	readAndSend()

	base := filepath.Base(s.path)
	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			mu.Lock()
			if debouncer != nil {
				debouncer.Stop()
			}
			mu.Unlock()
		})

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				mu.Lock()
				if debouncer != nil {
					debouncer.Stop()
				}
				debouncer = time.AfterFunc(DefaultWatchDebounce, readAndSend)
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil {
					send(ConfigEvent{Err: &OpError{Op: OpWatch, Path: s.path, Err: err}})
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}
