// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of the admin-requests
// binary.
//
// Release builds set the variables with -ldflags:
//
//	go build -ldflags "-X github.com/conda-forge/admin-requests/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Other builds fall back to the VCS stamp the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = ""

	// GitDirty is "true" when the tree had uncommitted changes.
	GitDirty = ""

	// BuildTime is the UTC timestamp of the build.
	BuildTime = ""

	// Version is the semantic version, set for releases.
	Version = "0.1.0-dev"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// stamp returns commit, dirty, and time, preferring -ldflags values
// over the embedded VCS settings.
func stamp() (commit string, dirty bool, built string) {
	commit, built = GitCommit, BuildTime
	dirty = GitDirty == "true"
	if commit != "" {
		return commit, dirty, orUnknown(built)
	}
	if info, ok := readBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				commit = setting.Value
				if len(commit) > 12 {
					commit = commit[:12]
				}
			case "vcs.modified":
				dirty = setting.Value == "true"
			case "vcs.time":
				if built == "" {
					built = setting.Value
				}
			}
		}
	}
	return orUnknown(commit), dirty, orUnknown(built)
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	commit, dirty, built := stamp()
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, suffix, built)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Commit returns the git commit SHA, or "unknown".
func Commit() string {
	commit, _, _ := stamp()
	return commit
}
