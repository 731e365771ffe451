package config

// Version is the release version of paramsearch
const Version = "0.1.0"

// GetVersion returns the current version
func GetVersion() string {
	return Version
}
