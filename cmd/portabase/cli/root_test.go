package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "Portabase CLI ")
	assert.Contains(t, out, "Go version: "+runtime.Version())
	assert.Contains(t, out, "OS/Arch: "+runtime.GOOS+"/"+runtime.GOARCH)
}

func TestRootHelpListsCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t)
	require.NoError(t, err)

	for _, name := range []string{"agent", "dashboard", "start", "stop", "restart", "logs", "uninstall", "db", "config", "update"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "ACCESSIBLE")
	assert.NotContains(t, out, "completion")
}

func TestUpdateNotice(t *testing.T) {
	env := newTestEnv(t)
	env.app.notify = true
	env.release = release{tag: "2.0.0"}

	out, err := env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "A new version of Portabase CLI is available: 2.0.0 (current: 1.2.0)")

	// The update command reports on its own.
	out, _ = env.run(t, "update")
	assert.NotContains(t, out, "A new version of Portabase CLI is available")
}

func TestUnknownCommand(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "bogus")
	require.Error(t, err)
}
