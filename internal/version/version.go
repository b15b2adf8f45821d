// Package version carries build metadata, set at link time with
// -ldflags "-X github.com/banshee-data/spectral.report/internal/version.Version=...".
package version

var (
	// Version is the release tag of the spectral binary
	Version = "dev"
	// GitSHA is the commit the binary was built from
	GitSHA = "unknown"
	// BuildTime is the UTC build timestamp
	BuildTime = "unknown"
)
