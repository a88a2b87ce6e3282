// Package version holds build information, set at link time with
// -ldflags "-X github.com/Norgate-AV/cdbpatch/internal/version.Version=...".
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// String returns the version line printed by --version
func String() string {
	return Version + " (" + Commit + ") " + BuildTime
}
