// Package version carries build metadata. Release builds set it with
// -ldflags "-X github.com/kailas-cloud/mailrag/internal/version.Version=...".
package version

import "fmt"

//nolint:gochecknoglobals // written by the linker
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the metadata for `mailrag version`.
func String() string {
	return fmt.Sprintf("mailrag %s (commit %s, built %s)", Version, Commit, Date)
}
