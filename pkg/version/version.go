// Package version provides build metadata for the localai binary.
package version

import (
	"fmt"
	"runtime"
)

// Build metadata, stamped by the release build with
// -ldflags "-X github.com/rzbill/localai/pkg/version.Version=...".
// Local builds keep the placeholders.
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

// shortCommit is the eight character prefix shown in banners.
func shortCommit() string {
	if len(Commit) > 8 {
		return Commit[:8]
	}
	return Commit
}

// Info is the one line printed by `localai version`.
func Info() string {
	return fmt.Sprintf("localai %s (%s) - %s %s/%s",
		Version, shortCommit(), BuildTime, runtime.GOOS, runtime.GOARCH)
}

// Map returns the same metadata keyed for structured output.
func Map() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"buildTime": BuildTime,
		"goVersion": runtime.Version(),
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
	}
}
