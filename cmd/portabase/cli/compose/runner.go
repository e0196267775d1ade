package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/portabase/cli/cmd/portabase/cli/logging"
)

// ErrComposeFailed wraps a non-zero exit of docker compose.
var ErrComposeFailed = errors.New("command failed")

// Runner runs `docker compose` for the stack in dir.
type Runner interface {
	Compose(ctx context.Context, dir string, args ...string) error
}

// ProjectName is the compose project of a stack directory: the lowercased
// directory name with spaces replaced by underscores.
func ProjectName(dir string) string {
	return strings.ReplaceAll(strings.ToLower(filepath.Base(dir)), " ", "_")
}

// ScaffoldName is the PROJECT_NAME written into a new stack: the lowercased
// name with spaces replaced by dashes.
func ScaffoldName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// ExecRunner shells out to the docker CLI with the given streams attached.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ComposeArgs builds the docker argument list for args run against dir.
func ComposeArgs(dir string, args ...string) []string {
	return append([]string{"compose", "-p", ProjectName(dir)}, args...)
}

func (r ExecRunner) Compose(ctx context.Context, dir string, args ...string) error {
	ctx = logging.WithComponent(ctx, "compose")
	start := time.Now()

	cmd := exec.CommandContext(ctx, "docker", ComposeArgs(dir, args...)...)
	cmd.Dir = dir
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	err := cmd.Run()
	logging.LogDuration(ctx, slog.LevelDebug, "docker compose", start,
		slog.String("dir", dir),
		slog.String("args", strings.Join(args, " ")),
	)
	if err != nil {
		return fmt.Errorf("%w: docker compose %s: %w", ErrComposeFailed, strings.Join(args, " "), err)
	}
	return nil
}
