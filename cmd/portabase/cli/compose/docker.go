// Package compose produces and drives the Docker Compose stacks the CLI
// scaffolds: daemon pre-flight checks, template fetching and rendering,
// the .env file and `docker compose` invocations.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/portabase/cli/cmd/portabase/cli/logging"
)

// AgentNetwork is the external network agents attach their database
// containers to.
const AgentNetwork = "portabase_network"

var (
	ErrDockerMissing     = errors.New("docker not found (binary missing)")
	ErrDaemonUnavailable = errors.New("docker is installed but the daemon is not running")
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// DockerAPI is the part of the Engine API client the CLI uses.
// *client.Client satisfies it.
type DockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
}

// NewDockerClient connects to the daemon configured by DOCKER_HOST and
// friends, negotiating the API version.
func NewDockerClient() (*client.Client, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return c, nil
}

// CheckSystem verifies that the docker CLI is installed, since compose runs
// through it, and that the daemon answers a ping.
func CheckSystem(ctx context.Context, api DockerAPI) error {
	ctx = logging.WithComponent(ctx, "docker")

	path, err := lookPath("docker")
	if err != nil {
		return ErrDockerMissing
	}
	if api == nil {
		return ErrDaemonUnavailable
	}
	ping, err := api.Ping(ctx)
	if err != nil {
		logging.Debug(ctx, "docker ping failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrDaemonUnavailable, err)
	}
	logging.Debug(ctx, "docker available",
		slog.String("cli", path),
		slog.String("api_version", ping.APIVersion),
		slog.String("os_type", ping.OSType),
	)
	return nil
}

// EnsureNetwork creates the named network unless it already exists.
func EnsureNetwork(ctx context.Context, api DockerAPI, name string) error {
	ctx = logging.WithComponent(ctx, "docker")

	_, err := api.NetworkInspect(ctx, name, network.InspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspecting network %s: %w", name, err)
	}

	if _, err := api.NetworkCreate(ctx, name, network.CreateOptions{}); err != nil {
		return fmt.Errorf("creating network %s: %w", name, err)
	}
	logging.Info(ctx, "created docker network", slog.String("network", name))
	return nil
}
