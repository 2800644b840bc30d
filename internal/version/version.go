// Package version exposes the build metadata stamped into the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridden at release time, e.g.
//
//	go build -ldflags "-X github.com/easelhq/easel-api/internal/version.Version=1.2.0"
var (
	Version = "0.0.0-dev"
	Commit  = ""
	Date    = ""
)

// Info is the resolved build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Dirty     bool   `json:"dirty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get resolves the build metadata, preferring ldflags values and falling
// back to the VCS stamp the Go toolchain embeds.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.Date == "" {
					info.Date = s.Value
				}
			case "vcs.modified":
				info.Dirty = s.Value == "true"
			}
		}
	}

	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return info
}

// String renders a one-line description with a shortened commit.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	if i.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s) built %s", i.Version, commit, i.Date)
}

// Short returns just the version, marked when the tree was dirty.
func (i Info) Short() string {
	if i.Dirty {
		return i.Version + "-dirty"
	}
	return i.Version
}
