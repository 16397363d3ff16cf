// Package version carries build identification for the station tools.
package version

// Set at build time via -ldflags "-X chipaoi/internal/version.Version=...".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
