package tunnelctl

import "context"

// StatusIndicator is the clickable status affordance provided by the host
type StatusIndicator interface {
	// Render replaces the displayed label and tooltip
	Render(label, tooltip string)
	// OnActivate registers the callback run when the user clicks the indicator
	OnActivate(callback func())
}

// FileFilter restricts the files a picker offers
type FileFilter struct {
	// Name is a human readable description, e.g. "WireGuard config"
	Name string
	// Extensions lists accepted extensions including the dot
	Extensions []string
}

// FilePicker lets the user choose a single file. ok is false when the user
// cancelled without choosing.
type FilePicker interface {
	ChooseFile(ctx context.Context, filter FileFilter) (path string, ok bool, err error)
}

// Notifier surfaces user-visible error messages
type Notifier interface {
	Error(message string)
}

// ProxySetting is the single host-wide proxy setting. It holds "" when no
// tunnel is intended to run and ProxyURL(...) while one is.
type ProxySetting interface {
	Set(url string) error
	Clear() error
	Get() (string, error)
}
