package cli

import (
	"errors"
	"os"
	"testing"

	"github.com/portabase/cli/cmd/portabase/cli/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleCommands(t *testing.T) {
	tests := []struct {
		cmd  string
		args []string
		done string
	}{
		{"start", []string{"up", "-d"}, "Started"},
		{"stop", []string{"stop"}, "Stopped"},
		{"restart", []string{"restart"}, "Restarted"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			env := newTestEnv(t)
			dir := scaffoldStack(t, "My Stack")

			out, err := env.run(t, tt.cmd, "My Stack")
			require.NoError(t, err)

			require.Len(t, env.runner.calls, 1)
			assert.Equal(t, dir, env.runner.calls[0].dir)
			assert.Equal(t, tt.args, env.runner.calls[0].args)
			assert.Contains(t, out, tt.done)
		})
	}
}

func TestLifecycle_NotAStack(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.Mkdir("empty", 0o755))

	out, err := env.run(t, "start", "empty")

	require.ErrorIs(t, err, paths.ErrNoStack)
	assert.Contains(t, out, "No Portabase configuration found")
	assert.Empty(t, env.runner.calls)
}

func TestLifecycle_ComposeFailure(t *testing.T) {
	env := newTestEnv(t)
	scaffoldStack(t, "s")
	env.runner.err = errors.New("exit status 1")

	out, err := env.run(t, "stop", "s")

	var silent *SilentError
	require.ErrorAs(t, err, &silent)
	assert.Contains(t, out, "Command failed.")
}

func TestLogs(t *testing.T) {
	env := newTestEnv(t)
	scaffoldStack(t, "s")

	_, err := env.run(t, "logs", "s")
	require.NoError(t, err)
	_, err = env.run(t, "logs", "s", "--follow=false")
	require.NoError(t, err)

	require.Len(t, env.runner.calls, 2)
	assert.Equal(t, []string{"logs", "-f"}, env.runner.calls[0].args)
	assert.Equal(t, []string{"logs"}, env.runner.calls[1].args)
}

func TestUninstall_Force(t *testing.T) {
	env := newTestEnv(t)
	dir := scaffoldStack(t, "s")

	out, err := env.run(t, "uninstall", "s", "--force")
	require.NoError(t, err)

	assert.Empty(t, env.prompter.asked)
	require.Len(t, env.runner.calls, 1)
	assert.Equal(t, []string{"down", "-v"}, env.runner.calls[0].args)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
	assert.Contains(t, out, "Uninstalled")
}

func TestUninstall_Declined(t *testing.T) {
	env := newTestEnv(t)
	dir := scaffoldStack(t, "s")
	env.prompter.answers = map[string][]any{"Are you sure?": {false}}

	out, err := env.run(t, "uninstall", "s")
	require.NoError(t, err)

	assert.Contains(t, out, "WARNING: This will delete containers and data")
	assert.Empty(t, env.runner.calls)
	assert.DirExists(t, dir)
}

func TestUninstall_ComposeFailureKeepsDirectory(t *testing.T) {
	env := newTestEnv(t)
	dir := scaffoldStack(t, "s")
	env.runner.err = errors.New("exit status 1")

	_, err := env.run(t, "uninstall", "s", "-f")

	require.Error(t, err)
	assert.DirExists(t, dir)
}
