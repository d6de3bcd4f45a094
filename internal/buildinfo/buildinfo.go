// Package buildinfo stamps the binary version, set at link time via
// -ldflags "-X github.com/sramlab/chainstation/internal/buildinfo.Version=...".
package buildinfo

// Version is the station binary's version string. It defaults to "dev" for
// unstamped local builds.
var Version = "dev"

// Commit is the VCS revision the binary was built from, stamped the same
// way as Version.
var Commit = "unknown"

// String renders a one-line identifier for startup log lines.
func String() string {
	return "chainstationd " + Version + " (" + Commit + ")"
}
