package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/portabase/cli/cmd/portabase/cli/compose"
	"github.com/portabase/cli/cmd/portabase/cli/selfupdate"
	"github.com/portabase/cli/cmd/portabase/cli/settings"
	"github.com/portabase/cli/cmd/portabase/cli/telemetry"
	"github.com/portabase/cli/cmd/portabase/cli/versioncheck"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testAgentTemplate = `name: ${PROJECT_NAME}
services:
  agent:
    container_name: ${PROJECT_NAME}-agent
    image: portabase/agent:latest
    env_file: .env
    networks:
      - portabase
{{EXTRA_SERVICES}}
networks:
  portabase:
    name: portabase_network
    external: true
{{EXTRA_VOLUMES}}
`

const testDashboardTemplate = `name: ${PROJECT_NAME}
services:
  app:
    container_name: ${PROJECT_NAME}-app
    image: portabase/portabase:latest
    ports:
      - "${PORT}:80"
    env_file: .env
`

// scriptedPrompter answers prompts by title from queues. An unexpected
// prompt is an error, so tests also assert which questions were asked.
type scriptedPrompter struct {
	answers map[string][]any
	asked   []string
}

func newPrompter(answers map[string][]any) *scriptedPrompter {
	if answers == nil {
		answers = map[string][]any{}
	}
	return &scriptedPrompter{answers: answers}
}

func (p *scriptedPrompter) next(title string) (any, error) {
	p.asked = append(p.asked, title)
	q := p.answers[title]
	if len(q) == 0 {
		return nil, fmt.Errorf("unexpected prompt %q", title)
	}
	p.answers[title] = q[1:]
	if err, ok := q[0].(error); ok {
		return nil, err
	}
	return q[0], nil
}

func (p *scriptedPrompter) Confirm(title string, _ bool) (bool, error) {
	v, err := p.next(title)
	if err != nil {
		return false, err
	}
	return v.(bool), nil //nolint:forcetypeassert // test script
}

func (p *scriptedPrompter) Input(title, _ string, validate func(string) error) (string, error) {
	v, err := p.next(title)
	if err != nil {
		return "", err
	}
	s := v.(string) //nolint:forcetypeassert // test script
	if validate != nil {
		if err := validate(s); err != nil {
			return "", err
		}
	}
	return s, nil
}

func (p *scriptedPrompter) Password(title string) (string, error) {
	return p.Input(title, "", nil)
}

func (p *scriptedPrompter) Select(title string, options []string, _ int) (int, error) {
	v, err := p.next(title)
	if err != nil {
		return 0, err
	}
	for i, o := range options {
		if o == v {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%q is not one of %v", v, options)
}

type runnerCall struct {
	dir  string
	args []string
}

type fakeRunner struct {
	calls []runnerCall
	err   error
}

func (r *fakeRunner) Compose(_ context.Context, dir string, args ...string) error {
	r.calls = append(r.calls, runnerCall{dir: dir, args: args})
	return r.err
}

type fakeDocker struct {
	pingErr   error
	networks  map[string]bool
	createErr error
}

func (f *fakeDocker) Ping(context.Context) (types.Ping, error) {
	return types.Ping{APIVersion: "1.47"}, f.pingErr
}

func (f *fakeDocker) NetworkInspect(_ context.Context, name string, _ network.InspectOptions) (network.Inspect, error) {
	if f.networks[name] {
		return network.Inspect{Name: name}, nil
	}
	return network.Inspect{}, errdefs.NotFound(fmt.Errorf("network %s not found", name))
}

func (f *fakeDocker) NetworkCreate(_ context.Context, name string, _ network.CreateOptions) (network.CreateResponse, error) {
	if f.createErr != nil {
		return network.CreateResponse{}, f.createErr
	}
	f.networks[name] = true
	return network.CreateResponse{ID: "net"}, nil
}

type counterRandom struct{ n int }

func (c *counterRandom) Hex(n int) (string, error) {
	c.n++
	return fmt.Sprintf("%0*x", 2*n, c.n), nil
}

func (c *counterRandom) FreePort() (int, error) {
	return 40000 + c.n, nil
}

// release describes what the fake releases endpoint serves.
type release struct {
	tag    string
	assets []string
}

type testEnv struct {
	app      *app
	prompter *scriptedPrompter
	runner   *fakeRunner
	docker   *fakeDocker
	home     string
	workDir  string
	release  release
	template int // status code for template requests; 0 is 200
	current  string
}

// newTestEnv isolates HOME and the working directory, puts a fake docker
// binary on PATH and serves templates and releases from httptest.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		prompter: newPrompter(nil),
		runner:   &fakeRunner{},
		docker:   &fakeDocker{networks: map[string]bool{}},
		home:     t.TempDir(),
		workDir:  t.TempDir(),
		current:  "1.2.0",
	}
	t.Setenv("HOME", env.home)
	t.Setenv("USERPROFILE", env.home)
	t.Setenv(telemetry.OptOutEnvVar, "1")
	t.Setenv("PORTABASE_UPDATE_CHANNEL", "")
	t.Chdir(env.workDir)
	installFakeDocker(t)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/templates/", func(w http.ResponseWriter, r *http.Request) {
		if env.template != 0 {
			w.WriteHeader(env.template)
			return
		}
		switch filepath.Base(r.URL.Path) {
		case compose.AgentTemplate:
			_, _ = w.Write([]byte(testAgentTemplate))
		case compose.DashboardTemplate:
			_, _ = w.Write([]byte(testDashboardTemplate))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		rel := versioncheck.GitHubRelease{TagName: "v" + env.release.tag}
		for _, name := range env.release.assets {
			rel.Assets = append(rel.Assets, versioncheck.GitHubAsset{
				Name:               name,
				BrowserDownloadURL: srv.URL + "/download/" + name,
			})
		}
		_ = json.NewEncoder(w).Encode(rel)
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("new binary"))
	})

	settingsPath := filepath.Join(env.home, ".portabase", "config.json")
	env.app = &app{
		docker: func() (compose.DockerAPI, func(), error) {
			return env.docker, func() {}, nil
		},
		runner: func(*cobra.Command) compose.Runner { return env.runner },
		fetcher: &compose.Fetcher{
			BaseURL:    srv.URL + "/templates",
			HTTPClient: srv.Client(),
			NewBackOff: func() backoff.BackOff { return &backoff.StopBackOff{} },
		},
		random:   &counterRandom{},
		prompter: env.prompter,
		settings: func() (*settings.Store, error) { return settings.OpenFile(settingsPath) },
		releases: func(store *settings.Store) *versioncheck.Client {
			c := &versioncheck.Client{
				Current:    env.current,
				BaseURL:    srv.URL + "/releases",
				CachePath:  filepath.Join(env.home, ".portabase", "update_cache.json"),
				HTTPClient: srv.Client(),
			}
			if store != nil {
				c.Channel = store
			}
			return c
		},
		installer: func(*cobra.Command) *selfupdate.Installer {
			return &selfupdate.Installer{
				GOOS:       "linux",
				ScratchDir: t.TempDir(),
				HTTPClient: srv.Client(),
				FS:         selfupdate.OSFS{},
				Elevator:   failingElevator{},
			}
		},
		installTarget: func() (string, error) { return filepath.Join(env.home, "bin", "portabase"), nil },
		platform:      selfupdate.NewPlatformKey("linux", "x86_64"),
	}
	return env
}

type failingElevator struct{}

func (failingElevator) Run(context.Context, string, ...string) error {
	return fmt.Errorf("elevation not available in tests")
}

// installFakeDocker puts an executable named docker first on PATH.
func installFakeDocker(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake docker binary is a shell script")
	}
	bin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bin, "docker"), []byte("#!/bin/sh\nexit 0\n"), 0o755)) //nolint:gosec // test executable
	t.Setenv("PATH", bin)
}

// run executes the root command with args and returns combined output.
func (env *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(env.app)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// scaffoldStack creates dir with a compose file so lifecycle commands accept it.
func scaffoldStack(t *testing.T, dir string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte("services: {}\n"), 0o644))
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	return abs
}
