// Package version exposes build metadata stamped via -ldflags.
package version

import (
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the human-readable build line printed by `musegen version`.
func String() string {
	return "musegen " + resolved() + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies musegen to the remote pipeline service.
func UserAgent() string {
	return "musegen/" + resolved()
}

// resolved prefers the stamped version, then the module version from `go install`.
func resolved() string {
	if Version != "dev" && Version != "" {
		return Version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}
