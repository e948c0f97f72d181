package version

// Version and GitCommit are set at build time with -ldflags.
var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
)
