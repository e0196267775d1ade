package versioncheck

import (
	"runtime/debug"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is set at build time:
//
//	go build -ldflags "-X github.com/portabase/cli/cmd/portabase/cli/versioncheck.Version=1.3.0"
var Version = ""

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// prereleaseMarkers are matched case-insensitively anywhere in a version.
var prereleaseMarkers = []string{"a", "b", "rc", "alpha", "beta"}

// Current returns the running version with any leading "v" removed, or
// UnknownVersion when the binary carries no release metadata. Builds from a
// source checkout report UnknownVersion, which disables update checks.
func Current() string {
	if v := normalize(Version); v != "" && v != "dev" {
		return v
	}
	if bi, ok := readBuildInfo(); ok {
		if v := normalize(bi.Main.Version); v != "" && v != "(devel)" {
			return v
		}
	}
	return UnknownVersion
}

// IsKnown reports whether v is a real release version.
func IsKnown(v string) bool {
	return v != "" && v != UnknownVersion && v != "dev"
}

// IsPrerelease reports whether v carries a pre-release marker.
func IsPrerelease(v string) bool {
	lower := strings.ToLower(v)
	for _, m := range prereleaseMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// IsOlder reports whether latest sorts before current. Both are compared as
// semantic versions when both parse as such, otherwise as plain strings.
func IsOlder(latest, current string) bool {
	l, c := "v"+normalize(latest), "v"+normalize(current)
	if semver.IsValid(l) && semver.IsValid(c) {
		return semver.Compare(l, c) < 0
	}
	return normalize(latest) < normalize(current)
}

// NeedsDowngradeConfirmation reports whether installing latest over current
// moves backwards. Leaving a pre-release for a stable build is not treated
// as a downgrade.
func NeedsDowngradeConfirmation(current, latest string) bool {
	if !IsOlder(latest, current) {
		return false
	}
	return !(IsPrerelease(current) && !IsPrerelease(latest))
}

func normalize(v string) string {
	return strings.TrimLeft(strings.TrimSpace(v), "v")
}
