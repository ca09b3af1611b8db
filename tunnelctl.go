package tunnelctl

import (
	"fmt"
	"time"
)

// Bind and invocation constants
const (
	// DefaultBindHost is the loopback address the tunnel's HTTP proxy listens on
	DefaultBindHost = "127.0.0.1"

	// DefaultBindPort is the fixed local proxy port shared by the persisted
	// config file and the host proxy setting
	DefaultBindPort uint16 = 25345

	// DefaultBinaryPath is the external tunnel binary, resolved through PATH
	DefaultBinaryPath = "wireproxy"

	// ConfigFlag selects config-file mode on the external binary
	ConfigFlag = "-c"

	// DefaultStabilityWindow is how long a freshly spawned process must stay
	// alive before it is reported as Stable
	DefaultStabilityWindow = 1 * time.Second

	// DefaultConfigFileName is the file name of the persisted supervisor config
	DefaultConfigFileName = "wireproxy.conf"

	// EndpointFileExt is the extension accepted by the endpoint picker
	EndpointFileExt = ".conf"
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode = 0o755

	// FileMode is the default mode for the persisted config file
	FileMode = 0o600
)

// ProxyURL returns the host proxy setting value for a local bind address.
func ProxyURL(host string, port uint16) string {
	return fmt.Sprintf("http://%s:%d", host, port)
}
