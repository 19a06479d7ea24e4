// Package version exposes build metadata stamped by the release build via
// -ldflags. The defaults identify a local development build.
package version

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
