// Package version exposes the build identity stamped into the binary via
// -ldflags -X. Local builds without ldflags report "dev"/"unknown" so the
// version command always has something to print.
package version

var (
	// Version is the release tag, e.g. "v0.3.1".
	Version = "dev"
	// Commit is the short git SHA the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build timestamp in RFC3339.
	BuildDate = "unknown"
)
