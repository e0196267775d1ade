package versioncheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedChannel string

func (c fixedChannel) UpdateChannel() string { return string(c) }

// releaseServer serves /latest and the bare list, counting requests.
type releaseServer struct {
	*httptest.Server
	latestHits atomic.Int32
	listHits   atomic.Int32
}

func newReleaseServer(t *testing.T, stable GitHubRelease, list []GitHubRelease) *releaseServer {
	t.Helper()
	rs := &releaseServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/vnd.github+json" {
			t.Errorf("Accept header = %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("User-Agent") != "portabase-cli" {
			t.Errorf("User-Agent header = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/releases/latest":
			rs.latestHits.Add(1)
			//nolint:errcheck // test helper
			json.NewEncoder(w).Encode(stable)
		case "/releases":
			rs.listHits.Add(1)
			//nolint:errcheck // test helper
			json.NewEncoder(w).Encode(list)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *releaseServer) hits() int32 {
	return rs.latestHits.Load() + rs.listHits.Load()
}

func newTestClient(t *testing.T, serverURL, current string, channel ChannelSource) *Client {
	t.Helper()
	return &Client{
		Current:    current,
		Channel:    channel,
		BaseURL:    serverURL + "/releases",
		CachePath:  filepath.Join(t.TempDir(), cacheFileName),
		HTTPClient: &http.Client{Timeout: time.Second},
		Now:        time.Now,
	}
}

func writeCache(t *testing.T, path string, age time.Duration, latest string) {
	t.Helper()
	data, err := json.Marshal(UpdateCache{
		LastCheck:     timeToEpoch(time.Now().Add(-age)),
		LatestVersion: latest,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func readCache(t *testing.T, path string) UpdateCache {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cache UpdateCache
	require.NoError(t, json.Unmarshal(data, &cache))
	return cache
}

func TestGetLatest_Stable(t *testing.T) {
	rs := newReleaseServer(t, GitHubRelease{
		TagName: "v1.3.0",
		Assets: []GitHubAsset{
			{Name: "portabase_linux_amd64", BrowserDownloadURL: "https://example.com/linux"},
		},
	}, nil)
	c := newTestClient(t, rs.URL, "1.2.0", nil)

	info, err := c.GetLatest(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", info.Tag, "leading v is stripped")
	require.Len(t, info.Assets, 1)
	assert.Equal(t, "https://example.com/linux", info.Assets[0].DownloadURL)
	assert.EqualValues(t, 1, rs.latestHits.Load())
	assert.EqualValues(t, 0, rs.listHits.Load())
}

func TestGetLatest_PrereleaseTakesFirstOfList(t *testing.T) {
	rs := newReleaseServer(t, GitHubRelease{TagName: "v1.3.0"}, []GitHubRelease{
		{TagName: "v1.4.0rc1", Prerelease: true},
		{TagName: "v1.3.0"},
	})
	c := newTestClient(t, rs.URL, "1.3.0", nil)

	info, err := c.GetLatest(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "1.4.0rc1", info.Tag)
	assert.EqualValues(t, 1, rs.listHits.Load())
}

func TestGetLatest_EmptyListIsNetworkError(t *testing.T) {
	rs := newReleaseServer(t, GitHubRelease{}, []GitHubRelease{})
	c := newTestClient(t, rs.URL, "1.3.0", nil)

	_, err := c.GetLatest(context.Background(), true)
	require.ErrorIs(t, err, ErrNetwork)
}

func TestGetLatest_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	c := newTestClient(t, server.URL, "1.2.0", nil)

	_, err := c.GetLatest(context.Background(), false)
	require.ErrorIs(t, err, ErrNetwork)
}

func TestGetLatest_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(server.Close)
	c := newTestClient(t, server.URL, "1.2.0", nil)

	_, err := c.GetLatest(context.Background(), false)
	require.ErrorIs(t, err, ErrNetwork)
}

func TestCheckForUpdates_ScenarioNewStableRelease(t *testing.T) {
	rs := newReleaseServer(t, GitHubRelease{TagName: "1.3.0"}, nil)
	c := newTestClient(t, rs.URL, "1.2.0", fixedChannel("stable"))

	latest, ok := c.CheckForUpdates(context.Background(), false)
	require.True(t, ok)
	assert.Equal(t, "1.3.0", latest)

	cache := readCache(t, c.CachePath)
	assert.Equal(t, "1.3.0", cache.LatestVersion)
	assert.WithinDuration(t, time.Now(), epochToTime(cache.LastCheck), time.Minute)
}

func TestCheckForUpdates_FreshCacheSkipsNetwork(t *testing.T) {
	for _, age := range []time.Duration{0, time.Hour, 23*time.Hour + 59*time.Minute} {
		rs := newReleaseServer(t, GitHubRelease{TagName: "9.9.9"}, nil)
		c := newTestClient(t, rs.URL, "1.2.0", nil)
		writeCache(t, c.CachePath, age, "1.3.0")

		latest, ok := c.CheckForUpdates(context.Background(), false)
		require.True(t, ok, "age %v", age)
		assert.Equal(t, "1.3.0", latest, "age %v", age)
		assert.EqualValues(t, 0, rs.hits(), "cache hit must not issue a request (age %v)", age)
	}
}

func TestCheckForUpdates_StaleCacheRefetches(t *testing.T) {
	for _, age := range []time.Duration{24 * time.Hour, 48 * time.Hour} {
		rs := newReleaseServer(t, GitHubRelease{TagName: "v2.0.0"}, nil)
		c := newTestClient(t, rs.URL, "1.2.0", nil)
		writeCache(t, c.CachePath, age, "1.3.0")

		latest, ok := c.CheckForUpdates(context.Background(), false)
		require.True(t, ok)
		assert.Equal(t, "2.0.0", latest)
		assert.EqualValues(t, 1, rs.hits())

		cache := readCache(t, c.CachePath)
		assert.Equal(t, "2.0.0", cache.LatestVersion)
		assert.WithinDuration(t, time.Now(), epochToTime(cache.LastCheck), time.Minute)
	}
}

func TestCheckForUpdates_ForceBypassesFreshCache(t *testing.T) {
	rs := newReleaseServer(t, GitHubRelease{TagName: "v2.0.0"}, nil)
	c := newTestClient(t, rs.URL, "1.2.0", nil)
	writeCache(t, c.CachePath, time.Minute, "1.3.0")

	latest, ok := c.CheckForUpdates(context.Background(), true)
	require.True(t, ok)
	assert.Equal(t, "2.0.0", latest)
	assert.EqualValues(t, 1, rs.hits())
	assert.Equal(t, "2.0.0", readCache(t, c.CachePath).LatestVersion)
}

func TestCheckForUpdates_SameVersionIsNoUpdate(t *testing.T) {
	for _, channel := range []string{"stable", "beta", ""} {
		rs := newReleaseServer(t, GitHubRelease{TagName: "v1.3.0"}, []GitHubRelease{{TagName: "v1.3.0"}})
		c := newTestClient(t, rs.URL, "1.3.0", fixedChannel(channel))

		_, ok := c.CheckForUpdates(context.Background(), true)
		assert.False(t, ok, "channel %q", channel)
	}
}

func TestCheckForUpdates_UnknownVersionNeverChecks(t *testing.T) {
	rs := newReleaseServer(t, GitHubRelease{TagName: "v9.9.9"}, nil)
	c := newTestClient(t, rs.URL, UnknownVersion, nil)

	_, ok := c.CheckForUpdates(context.Background(), true)
	assert.False(t, ok)
	assert.EqualValues(t, 0, rs.hits())
}

func TestCheckForUpdates_FetchFailureIsSilent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	c := newTestClient(t, server.URL, "1.2.0", nil)

	_, ok := c.CheckForUpdates(context.Background(), false)
	assert.False(t, ok)
	_, err := os.Stat(c.CachePath)
	assert.True(t, os.IsNotExist(err), "failed fetch must not write the cache")
}

func TestCheckForUpdates_CacheWriteFailureIsIgnored(t *testing.T) {
	rs := newReleaseServer(t, GitHubRelease{TagName: "v1.3.0"}, nil)
	c := newTestClient(t, rs.URL, "1.2.0", nil)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	c.CachePath = filepath.Join(blocker, cacheFileName)

	latest, ok := c.CheckForUpdates(context.Background(), false)
	require.True(t, ok)
	assert.Equal(t, "1.3.0", latest)
}

func TestIncludePrerelease(t *testing.T) {
	tests := []struct {
		current string
		channel string
		want    bool
	}{
		{"1.2.0", "", false},
		{"1.3.0b1", "", true},
		{"1.3.0rc2", "", true},
		{"1.3.0b1", "stable", false},
		{"1.2.0", "beta", true},
		{UnknownVersion, "", false},
	}
	for _, tt := range tests {
		c := &Client{Current: tt.current, Channel: fixedChannel(tt.channel)}
		assert.Equal(t, tt.want, c.IncludePrerelease(), "current=%q channel=%q", tt.current, tt.channel)
	}
}

func TestIncludePrerelease_ChoosesEndpoint(t *testing.T) {
	rs := newReleaseServer(t, GitHubRelease{TagName: "v1.3.0"}, []GitHubRelease{{TagName: "v1.4.0b1"}})
	c := newTestClient(t, rs.URL, "1.3.0", fixedChannel("beta"))

	latest, ok := c.CheckForUpdates(context.Background(), true)
	require.True(t, ok)
	assert.Equal(t, "1.4.0b1", latest)
	assert.EqualValues(t, 1, rs.listHits.Load())
	assert.EqualValues(t, 0, rs.latestHits.Load())
}

func TestClearCache(t *testing.T) {
	c := &Client{CachePath: filepath.Join(t.TempDir(), cacheFileName)}
	require.NoError(t, c.ClearCache(), "missing cache is fine")

	writeCache(t, c.CachePath, 0, "1.0.0")
	require.NoError(t, c.ClearCache())
	_, err := os.Stat(c.CachePath)
	assert.True(t, os.IsNotExist(err))
}

func TestCurrent(t *testing.T) {
	origVersion, origRead := Version, readBuildInfo
	t.Cleanup(func() { Version, readBuildInfo = origVersion, origRead })

	Version = "v1.2.0"
	assert.Equal(t, "1.2.0", Current())

	Version = ""
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
	}
	assert.Equal(t, UnknownVersion, Current())

	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "v1.4.0"}}, true
	}
	assert.Equal(t, "1.4.0", Current())

	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	assert.Equal(t, UnknownVersion, Current())
}

func TestIsPrerelease(t *testing.T) {
	assert.False(t, IsPrerelease("1.2.0"))
	assert.True(t, IsPrerelease("1.2.0a1"))
	assert.True(t, IsPrerelease("1.2.0b3"))
	assert.True(t, IsPrerelease("1.2.0rc1"))
	assert.True(t, IsPrerelease("1.2.0-ALPHA"))
}

func TestNeedsDowngradeConfirmation(t *testing.T) {
	tests := []struct {
		current string
		latest  string
		want    bool
		desc    string
	}{
		{"1.2.0", "1.3.0", false, "upgrade"},
		{"1.3.0", "1.2.0", true, "plain downgrade"},
		{"1.10.0", "1.9.0", true, "multi-digit downgrade compared as semver"},
		{"1.9.0", "1.10.0", false, "multi-digit upgrade compared as semver"},
		{"1.3.0rc1", "1.2.0", false, "leaving a pre-release for stable"},
		{"1.3.0", "1.2.0b1", true, "stable to older pre-release"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsDowngradeConfirmation(tt.current, tt.latest))
		})
	}
}

func newNotifyCmd(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{Use: "start"}
	cmd.SetErr(&buf)
	cmd.SetContext(context.Background())
	return cmd, &buf
}

func TestCheckAndNotify_PrintsWhenOutdated(t *testing.T) {
	rs := newReleaseServer(t, GitHubRelease{TagName: "v2.0.0"}, nil)
	cmd, buf := newNotifyCmd(t)

	CheckAndNotify(cmd, newTestClient(t, rs.URL, "1.0.0", nil))

	assert.Contains(t, buf.String(), "2.0.0")
	assert.Contains(t, buf.String(), "current: 1.0.0")
	assert.Contains(t, buf.String(), "portabase update")
}

func TestCheckAndNotify_SilentCases(t *testing.T) {
	rs := newReleaseServer(t, GitHubRelease{TagName: "v2.0.0"}, nil)

	hidden, buf := newNotifyCmd(t)
	hidden.Hidden = true
	CheckAndNotify(hidden, newTestClient(t, rs.URL, "1.0.0", nil))
	assert.Empty(t, buf.String(), "hidden command")

	update, buf := newNotifyCmd(t)
	update.Use = "update"
	CheckAndNotify(update, newTestClient(t, rs.URL, "1.0.0", nil))
	assert.Empty(t, buf.String(), "update command")

	upToDate, buf := newNotifyCmd(t)
	CheckAndNotify(upToDate, newTestClient(t, rs.URL, "2.0.0", nil))
	assert.Empty(t, buf.String(), "up to date")
}

func TestErrNetworkWrapping(t *testing.T) {
	c := &Client{BaseURL: "http://127.0.0.1:0", HTTPClient: &http.Client{Timeout: time.Second}}
	_, err := c.GetLatest(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
}
