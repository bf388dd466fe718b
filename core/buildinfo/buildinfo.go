package buildinfo

import "fmt"

// Set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/leadbot/core/buildinfo.Version=v1.0.0'
//	-X 'github.com/m3rciful/leadbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/leadbot/core/buildinfo.Date=2026-10-01T12:00:00Z'
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders build metadata in a single line for the version command.
func String() string {
	date := Date
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("leadbot %s (commit %s, built %s)", Version, Commit, date)
}
