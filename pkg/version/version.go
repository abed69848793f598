package version

// Version is the current cartsync release.
const Version = "0.4.0"

// BuildVersion returns the version string for CLI display.
func BuildVersion() string {
	return "cartsync version " + Version
}

// APIVersion returns the bare version number for API responses.
func APIVersion() string {
	return Version
}
