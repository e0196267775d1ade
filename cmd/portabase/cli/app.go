package cli

import (
	"context"
	"errors"
	"runtime"

	"github.com/portabase/cli/cmd/portabase/cli/compose"
	"github.com/portabase/cli/cmd/portabase/cli/paths"
	"github.com/portabase/cli/cmd/portabase/cli/selfupdate"
	"github.com/portabase/cli/cmd/portabase/cli/settings"
	"github.com/portabase/cli/cmd/portabase/cli/ui"
	"github.com/portabase/cli/cmd/portabase/cli/versioncheck"
	"github.com/spf13/cobra"
)

// app is what commands reach outside the process through. Tests replace
// individual fields.
type app struct {
	docker        func() (compose.DockerAPI, func(), error)
	runner        func(cmd *cobra.Command) compose.Runner
	fetcher       *compose.Fetcher
	random        compose.Randomness
	prompter      Prompter
	settings      func() (*settings.Store, error)
	releases      func(store *settings.Store) *versioncheck.Client
	installer     func(cmd *cobra.Command) *selfupdate.Installer
	installTarget func() (string, error)
	platform      selfupdate.PlatformKey

	// notify enables the cached update notice before every command.
	notify bool
}

func defaultApp() *app {
	return &app{
		docker: func() (compose.DockerAPI, func(), error) {
			c, err := compose.NewDockerClient()
			if err != nil {
				return nil, func() {}, err
			}
			return c, func() { _ = c.Close() }, nil
		},
		runner: func(cmd *cobra.Command) compose.Runner {
			return compose.ExecRunner{Stdin: cmd.InOrStdin(), Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
		},
		fetcher:  compose.NewFetcher(),
		random:   compose.SystemRandom{},
		prompter: formPrompter{},
		settings: settings.Open,
		releases: func(store *settings.Store) *versioncheck.Client {
			if store == nil {
				return versioncheck.NewClient(versioncheck.Current(), nil)
			}
			return versioncheck.NewClient(versioncheck.Current(), store)
		},
		installer: func(cmd *cobra.Command) *selfupdate.Installer {
			return selfupdate.NewInstaller(runtime.GOOS, cmd.ErrOrStderr())
		},
		installTarget: paths.InstallTarget,
		platform:      selfupdate.DetectPlatform(),
		notify:        true,
	}
}

func printer(cmd *cobra.Command) *ui.Printer {
	return ui.New(cmd.OutOrStdout())
}

// preflight checks docker and, for agents, the shared network. Failures are
// printed and returned silent.
func (a *app) preflight(ctx context.Context, out *ui.Printer, needNetwork bool) error {
	api, closeAPI, err := a.docker()
	if err != nil {
		api = nil
	}
	defer closeAPI()

	if err := compose.CheckSystem(ctx, api); err != nil {
		switch {
		case errors.Is(err, compose.ErrDockerMissing):
			out.Fail("Docker not found (binary missing).")
		default:
			out.Fail("Docker is installed but the Daemon is not running.")
			out.Muted("Please start Docker Desktop or the docker service.")
		}
		return NewSilentError(err)
	}

	if needNetwork {
		if err := compose.EnsureNetwork(ctx, api, compose.AgentNetwork); err != nil {
			out.Fail("Could not prepare the %s network: %v", compose.AgentNetwork, err)
			return NewSilentError(err)
		}
	}
	return nil
}

// fetchTemplate downloads name, printing a hint on failure.
func (a *app) fetchTemplate(ctx context.Context, out *ui.Printer, name string) (string, error) {
	out.Muted("Fetching template from %s...", a.fetcher.URL(name))
	body, err := a.fetcher.Fetch(ctx, name)
	if err != nil {
		out.Fail("Error fetching template: %v", err)
		out.Muted("Check your internet connection or the template URL.")
		return "", NewSilentError(err)
	}
	return body, nil
}

// resolveStack validates that arg is a scaffolded directory.
func resolveStack(out *ui.Printer, arg string) (string, error) {
	dir, err := paths.ResolveWorkDir(arg)
	if err != nil {
		out.Fail("%v", err)
		return "", NewSilentError(err)
	}
	return dir, nil
}

// confirmOverwrite asks before reusing an existing directory. It returns
// false when the user declines or aborts.
func (a *app) confirmOverwrite(out *ui.Printer, s *compose.Stack, yes bool) (bool, error) {
	if !s.Exists() || yes {
		return true, nil
	}
	out.Warn("Directory '%s' already exists.", s.Name)
	ok, err := a.prompter.Confirm("Overwrite?", false)
	if err != nil {
		if isAbort(err) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// startStack runs `up -d` when start is set or the user agrees.
func (a *app) startStack(cmd *cobra.Command, out *ui.Printer, s *compose.Stack, start, yes bool, question string) (bool, error) {
	if !start && !yes {
		ok, err := a.prompter.Confirm(question, false)
		if err != nil && !isAbort(err) {
			return false, err
		}
		start = ok
	}
	if !start {
		out.Info("Run: portabase start %s", s.Name)
		return false, nil
	}

	out.Muted("Starting...")
	if err := a.runner(cmd).Compose(cmd.Context(), s.Dir, "up", "-d"); err != nil {
		out.Fail("Command failed.")
		return false, NewSilentError(err)
	}
	return true, nil
}
