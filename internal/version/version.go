// SPDX-License-Identifier: MIT

// Package version carries build identity injected via ldflags.
package version

var (
	// Version is the release tag, overridden at build time.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// Banner is the generator identity embedded in produced guides and the
// User-Agent sent upstream.
func Banner() string {
	return "teamarr/" + Version
}
