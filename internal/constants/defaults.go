package constants

// DefaultVersion is the version reported when not set at build time.
const DefaultVersion = "0.1.0-dev"

const (
	DefaultBuildTime = "unknown"
	DefaultGitCommit = "unknown"
	DefaultGoVersion = "unknown"
)

// AppName is used in banners, logs and metric namespaces.
const AppName = "pilobster"

// CLILineage is the creator recorded for jobs added from the command line.
const CLILineage = "cli"
