// Package version carries the build stamp of the advisor binary.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/advisor/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/advisor/internal/version.Commit=abc123
//	  -X github.com/soyeahso/advisor/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Build is the stamp reported by `advisor version --json`.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Current() Build {
	return Build{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Info is the one-line banner printed by `advisor version`.
func Info() string {
	b := Current()
	abbrev := b.Commit
	if len(abbrev) > 7 {
		abbrev = abbrev[:7]
	}
	return fmt.Sprintf("advisor %s (commit: %s, built: %s, %s)", b.Version, abbrev, b.Date, b.Platform)
}

// UserAgent identifies the advisor on calls to the agent platform and the
// token proxy.
func UserAgent() string {
	return "advisor/" + Version + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")"
}
