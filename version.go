package tunnelctl

// Version is the current version of the go-tunnelctl library
const Version = "0.3.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Binary is the tunnel binary the library drives by default
	Binary string
	// ConfigFlag is the flag that passes the config path to the binary
	ConfigFlag string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:    Version,
		Binary:     DefaultBinaryPath,
		ConfigFlag: ConfigFlag,
	}
}
