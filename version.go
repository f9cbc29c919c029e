package daemonize

// Version is the current version of the go-daemonize library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Platform names the process model backing this build
	Platform string
	// Supervised indicates support for the readiness-notification
	// protocol under a service manager
	Supervised bool
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:    Version,
		Platform:   platformModel,
		Supervised: supervisedCapable,
	}
}
