// Package version carries build metadata, stamped in via -ldflags.
package version

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
)

// String formats the build for logs and the health endpoint.
func String() string {
	return Version + " (" + GitSHA + ")"
}
