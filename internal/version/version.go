package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Version, CommitSHA, and BuildDate are set via ldflags at build time.
// Example: go build -ldflags "-X .../version.Version=0.2.0 -X .../version.CommitSHA=abc1234 -X .../version.BuildDate=2026-10-01"
var (
	Version   = "0.1.0"
	CommitSHA = "dev"
	BuildDate = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	CommitSHA string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the running binary.
func Get() Build {
	return Build{
		Version:   strings.TrimPrefix(Version, "v"),
		CommitSHA: CommitSHA,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Info returns a human-readable version string.
// For dev builds: "0.1.0"
// For release builds: "0.1.0 (abc1234, 2026-10-01)"
func Info() string {
	return Get().String()
}

func (b Build) String() string {
	if b.CommitSHA == "dev" || b.CommitSHA == "" {
		return b.Version
	}
	return fmt.Sprintf("%s (%s, %s)", b.Version, b.CommitSHA, b.BuildDate)
}
