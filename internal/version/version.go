package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build stamp for -version output and catalog rows.
func String() string {
	return fmt.Sprintf("waymo2bag %s (%s, built %s)", Version, GitSHA, BuildTime)
}
