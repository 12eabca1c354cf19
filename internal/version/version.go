package version

import (
	"fmt"

	"github.com/pilobster/pilobster/internal/constants"
)

var (
	Version   = constants.DefaultVersion
	BuildTime = constants.DefaultBuildTime
	GitCommit = constants.DefaultGitCommit
	GoVersion = constants.DefaultGoVersion
)

func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// String is the one-line form printed by the version command.
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", constants.AppName, Version, GitCommit, BuildTime, GoVersion)
}

func FormatStartupMessage() string {
	return fmt.Sprintf("🦞 PiLobster started\nVersion: %s\nBuild: %s", Version, BuildTime)
}
