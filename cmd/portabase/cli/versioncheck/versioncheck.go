// Package versioncheck resolves the running version, queries the GitHub
// releases API for newer builds and keeps a 24 hour cache of the answer.
// Every failure on the advisory path is silent: a broken network never
// interrupts the command the user actually ran.
package versioncheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/portabase/cli/cmd/portabase/cli/jsonutil"
	"github.com/portabase/cli/cmd/portabase/cli/logging"
	"github.com/portabase/cli/cmd/portabase/cli/paths"
	"github.com/portabase/cli/cmd/portabase/cli/settings"
)

// ErrNetwork wraps every failure to obtain release metadata.
var ErrNetwork = errors.New("fetching release metadata")

// ChannelSource supplies the persisted update channel ("stable", "beta" or "").
type ChannelSource interface {
	UpdateChannel() string
}

// Client talks to the release API on behalf of one CLI invocation.
type Client struct {
	// Current is the running version.
	Current string

	// Channel is consulted before inferring the channel from Current. May be nil.
	Channel ChannelSource

	// BaseURL is the releases endpoint; "/latest" is appended for stable.
	BaseURL string

	// CachePath is the update cache file.
	CachePath string

	HTTPClient *http.Client

	// Now is swapped in tests.
	Now func() time.Time
}

// NewClient returns a client for the running version with the cache stored
// in ~/.portabase.
func NewClient(current string, channel ChannelSource) *Client {
	cachePath := ""
	if dir, err := paths.AppDir(); err == nil {
		cachePath = filepath.Join(dir, cacheFileName)
	}
	return &Client{
		Current:    current,
		Channel:    channel,
		BaseURL:    githubAPIURL,
		CachePath:  cachePath,
		HTTPClient: &http.Client{Timeout: httpTimeout},
		Now:        time.Now,
	}
}

// IncludePrerelease decides the channel: an explicit setting wins, otherwise
// a pre-release build follows pre-releases.
func (c *Client) IncludePrerelease() bool {
	if c.Channel != nil {
		switch c.Channel.UpdateChannel() {
		case settings.ChannelBeta:
			return true
		case settings.ChannelStable:
			return false
		}
	}
	if !IsKnown(c.Current) {
		return false
	}
	return IsPrerelease(c.Current)
}

// GetLatest fetches the newest release. Stable queries /latest; with
// pre-releases the full list is fetched and its first entry used.
// All failures wrap ErrNetwork.
func (c *Client) GetLatest(ctx context.Context, includePrerelease bool) (*ReleaseInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	url := strings.TrimSuffix(c.BaseURL, "/")
	if !includePrerelease {
		url += "/latest"
	}

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	var release GitHubRelease
	if includePrerelease {
		var releases []GitHubRelease
		if err := json.Unmarshal(body, &releases); err != nil {
			return nil, fmt.Errorf("%w: parsing release list: %w", ErrNetwork, err)
		}
		if len(releases) == 0 {
			return nil, fmt.Errorf("%w: no releases published", ErrNetwork)
		}
		release = releases[0]
	} else if err := json.Unmarshal(body, &release); err != nil {
		return nil, fmt.Errorf("%w: parsing release: %w", ErrNetwork, err)
	}

	return toReleaseInfo(release)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "portabase-cli")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

func toReleaseInfo(r GitHubRelease) (*ReleaseInfo, error) {
	tag := strings.TrimLeft(r.TagName, "v")
	if tag == "" {
		return nil, fmt.Errorf("%w: empty tag name", ErrNetwork)
	}
	info := &ReleaseInfo{Tag: tag, Assets: make([]Asset, 0, len(r.Assets))}
	for _, a := range r.Assets {
		info.Assets = append(info.Assets, Asset{Name: a.Name, DownloadURL: a.BrowserDownloadURL})
	}
	return info, nil
}

// CheckForUpdates returns the newer tag and true when the latest release
// differs from the running version. A fresh cache answers without touching
// the network unless force is set. Unknown versions never check.
func (c *Client) CheckForUpdates(ctx context.Context, force bool) (string, bool) {
	ctx = logging.WithComponent(ctx, "versioncheck")

	if !IsKnown(c.Current) {
		return "", false
	}

	latest := ""
	if !force {
		if cache, err := c.loadCache(); err == nil && c.isFresh(cache) {
			latest = cache.LatestVersion
		}
	}

	if latest == "" {
		release, err := c.GetLatest(ctx, c.IncludePrerelease())
		if err != nil {
			logging.Debug(ctx, "version check: failed to fetch latest version", "error", err.Error())
			return "", false
		}
		latest = release.Tag
		c.persistCache(ctx, latest)
	}

	if latest == c.Current {
		return "", false
	}
	return latest, true
}

func (c *Client) isFresh(cache *UpdateCache) bool {
	if cache.LatestVersion == "" {
		return false
	}
	age := c.now().Sub(epochToTime(cache.LastCheck))
	return age >= 0 && age < checkInterval
}

func (c *Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// persistCache is advisory: a failed write only costs an extra request on
// the next run, so the error is logged and dropped.
func (c *Client) persistCache(ctx context.Context, latest string) {
	cache := &UpdateCache{
		LastCheck:     timeToEpoch(c.now()),
		LatestVersion: latest,
	}
	if err := c.saveCache(cache); err != nil {
		logging.Debug(ctx, "version check: failed to save cache", "error", err.Error())
	}
}

func (c *Client) loadCache() (*UpdateCache, error) {
	if c.CachePath == "" {
		return nil, errors.New("no cache path")
	}
	data, err := os.ReadFile(c.CachePath)
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	var cache UpdateCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing cache: %w", err)
	}
	return &cache, nil
}

func (c *Client) saveCache(cache *UpdateCache) error {
	if c.CachePath == "" {
		return errors.New("no cache path")
	}
	//nolint:gosec // ~/.portabase is user home directory, 0o755 is appropriate
	if err := os.MkdirAll(filepath.Dir(c.CachePath), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	return jsonutil.WriteFileAtomic(c.CachePath, cache, 0o644)
}

// ClearCache removes the cache file so the next check hits the network.
// Used when the update channel changes.
func (c *Client) ClearCache() error {
	if c.CachePath == "" {
		return nil
	}
	if err := os.Remove(c.CachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

func timeToEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func epochToTime(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}
