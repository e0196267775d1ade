package selfupdate

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/portabase/cli/cmd/portabase/cli/paths"
	"github.com/portabase/cli/cmd/portabase/cli/versioncheck"
)

// PlatformKey identifies the release asset built for a host.
type PlatformKey struct {
	OS   string // linux, macos, windows
	Arch string // amd64, arm64
}

func (p PlatformKey) String() string {
	return p.OS + "/" + p.Arch
}

// DetectPlatform normalizes the running GOOS/GOARCH.
func DetectPlatform() PlatformKey {
	return NewPlatformKey(runtime.GOOS, runtime.GOARCH)
}

// NewPlatformKey normalizes an OS and machine name as reported by Go or uname.
func NewPlatformKey(osName, machine string) PlatformKey {
	return PlatformKey{OS: normalizeOS(osName), Arch: normalizeArch(machine)}
}

func normalizeOS(osName string) string {
	lower := strings.ToLower(osName)
	if lower == "darwin" {
		return "macos"
	}
	return lower
}

// normalizeArch maps uname and GOARCH spellings. Unrecognized machines fall
// back to amd64, matching the published asset matrix.
func normalizeArch(machine string) string {
	switch strings.ToLower(machine) {
	case "arm64", "aarch64":
		return "arm64"
	default:
		return "amd64"
	}
}

// AssetName returns portabase_<os>_<arch>, with .exe on windows.
func AssetName(p PlatformKey) string {
	name := fmt.Sprintf("%s_%s_%s", paths.BinaryName, p.OS, p.Arch)
	if p.OS == "windows" {
		name += ".exe"
	}
	return name
}

// NoMatchingAssetError reports a release without a build for the host.
type NoMatchingAssetError struct {
	Want      string
	Platform  PlatformKey
	Available []string
}

func (e *NoMatchingAssetError) Error() string {
	return fmt.Sprintf("no binary for %s in the latest release (wanted %s; available: %s)",
		e.Platform, e.Want, strings.Join(e.Available, ", "))
}

// SelectAsset finds the asset whose name exactly matches AssetName(p).
func SelectAsset(release *versioncheck.ReleaseInfo, p PlatformKey) (versioncheck.Asset, error) {
	want := AssetName(p)
	for _, a := range release.Assets {
		if a.Name == want {
			return a, nil
		}
	}
	return versioncheck.Asset{}, &NoMatchingAssetError{
		Want:      want,
		Platform:  p,
		Available: release.AssetNames(),
	}
}
