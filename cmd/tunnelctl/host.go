package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/axondata/go-tunnelctl"
	"github.com/rs/zerolog"
)

// terminalIndicator prints the status line and treats each line read from
// the terminal as a click.
type terminalIndicator struct {
	out io.Writer
	log zerolog.Logger

	mu       sync.Mutex
	callback func()
}

func (t *terminalIndicator) Render(label, tooltip string) {
	fmt.Fprintf(t.out, "[%s] %s\n", label, tooltip)
	t.log.Debug().Str("label", label).Msg("status rendered")
}

func (t *terminalIndicator) OnActivate(callback func()) {
	t.mu.Lock()
	t.callback = callback
	t.mu.Unlock()
}

func (t *terminalIndicator) activate() {
	t.mu.Lock()
	cb := t.callback
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// promptPicker asks for a path on the terminal. An empty answer cancels.
type promptPicker struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *promptPicker) ChooseFile(ctx context.Context, filter tunnelctl.FileFilter) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	fmt.Fprintf(p.out, "%s (%s), empty to cancel: ", filter.Name, strings.Join(filter.Extensions, ", "))
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return "", false, nil
		}
		return "", false, err
	}
	path := strings.TrimSpace(line)
	if path == "" {
		return "", false, nil
	}
	if len(filter.Extensions) > 0 && !hasExt(path, filter.Extensions) {
		fmt.Fprintf(p.out, "%s is not a %s file\n", path, strings.Join(filter.Extensions, "/"))
		return "", false, nil
	}
	return path, true, nil
}

func hasExt(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// logNotifier surfaces errors on the terminal and in the log
type logNotifier struct {
	out io.Writer
	log zerolog.Logger
}

func (n *logNotifier) Error(message string) {
	fmt.Fprintf(n.out, "error: %s\n", message)
	n.log.Debug().Str("notification", message).Msg("user notified")
}
