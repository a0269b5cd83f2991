package buildconfig

import "fmt"

// Build-time variables injected via ldflags:
//
//	-X github.com/Harshitk-cp/adaptive-planner/internal/buildconfig.version=v1.2.0
var (
	version = "dev"
	commit  = "unknown"
	date    = ""
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// Date is the build timestamp, empty for local builds.
func Date() string {
	return date
}

// String renders the build as "version (commit)" for CLI output.
func String() string {
	if date == "" {
		return fmt.Sprintf("%s (%s)", version, commit)
	}
	return fmt.Sprintf("%s (%s, built %s)", version, commit, date)
}

// VersionInfo returns full version information
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": version,
		"commit":  commit,
	}
	if date != "" {
		info["date"] = date
	}
	return info
}
