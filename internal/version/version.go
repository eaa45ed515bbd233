// Package version carries build identification, overridden via ldflags.
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)
