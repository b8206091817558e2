// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version provides build-time version information.
package version

import "fmt"

// Info contains build-time version information injected via ldflags.
type Info struct {
	Version   string `json:"version"`    // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit string `json:"git_commit"` // Short git commit hash (e.g., "abc1234")
	BuildTime string `json:"build_time"` // Build timestamp in RFC3339 format
}

// New returns Info with "dev" and "unknown" standing in for empty values.
func New(ver, commit, built string) Info {
	return Info{
		Version:   orDefault(ver, "dev"),
		GitCommit: orDefault(commit, "unknown"),
		BuildTime: orDefault(built, "unknown"),
	}
}

// String formats the info for the -version flag.
func (i Info) String() string {
	return fmt.Sprintf("sitecms %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildTime)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
