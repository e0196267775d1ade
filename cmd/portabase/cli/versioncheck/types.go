package versioncheck

import "time"

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name        string
	DownloadURL string
}

// ReleaseInfo is the subset of a GitHub release the updater needs.
// Tag has its leading "v" stripped.
type ReleaseInfo struct {
	Tag    string
	Assets []Asset
}

// AssetNames lists the names of all assets in release order.
func (r *ReleaseInfo) AssetNames() []string {
	names := make([]string, 0, len(r.Assets))
	for _, a := range r.Assets {
		names = append(names, a.Name)
	}
	return names
}

// UpdateCache is persisted to ~/.portabase/update_cache.json.
// LastCheck is unix epoch seconds.
type UpdateCache struct {
	LastCheck     float64 `json:"last_check"`
	LatestVersion string  `json:"latest_version"`
}

// GitHubRelease represents the GitHub API response for a release.
type GitHubRelease struct {
	TagName    string        `json:"tag_name"`
	Prerelease bool          `json:"prerelease"`
	Assets     []GitHubAsset `json:"assets"`
}

// GitHubAsset represents one entry of a release's assets list.
type GitHubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// githubAPIURL is the releases endpoint of the CLI repository.
// This is a var (not const) to allow overriding in tests.
var githubAPIURL = "https://api.github.com/repos/Portabase/cli/releases"

const (
	// UnknownVersion is reported when no build metadata is embedded.
	UnknownVersion = "unknown"

	// checkInterval is how long a cached latest version is trusted.
	checkInterval = 24 * time.Hour

	// httpTimeout bounds each release API request.
	httpTimeout = 5 * time.Second

	// cacheFileName is the cache file stored in the application directory.
	cacheFileName = "update_cache.json"

	// maxResponseBytes caps how much of a release API response is read.
	maxResponseBytes = 8 << 20
)
