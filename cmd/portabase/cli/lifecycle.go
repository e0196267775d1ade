package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/portabase/cli/cmd/portabase/cli/compose"
	"github.com/portabase/cli/cmd/portabase/cli/logging"
	"github.com/spf13/cobra"
)

// lifecycleAction is a compose subcommand wrapped as a top-level command.
type lifecycleAction struct {
	use     string
	short   string
	args    []string
	working string
	done    string
}

func newStartCmd(a *app) *cobra.Command {
	return newLifecycleCmd(a, lifecycleAction{"start", "Start a stack", []string{"up", "-d"}, "Starting", "Started"})
}

func newStopCmd(a *app) *cobra.Command {
	return newLifecycleCmd(a, lifecycleAction{"stop", "Stop a stack", []string{"stop"}, "Stopping", "Stopped"})
}

func newRestartCmd(a *app) *cobra.Command {
	return newLifecycleCmd(a, lifecycleAction{"restart", "Restart a stack", []string{"restart"}, "Restarting", "Restarted"})
}

func newLifecycleCmd(a *app, action lifecycleAction) *cobra.Command {
	return &cobra.Command{
		Use:   action.use + " PATH",
		Short: action.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer(cmd)
			dir, err := resolveStack(out, args[0])
			if err != nil {
				return err
			}
			ctx := logging.WithProject(logging.WithComponent(cmd.Context(), "compose"), compose.ProjectName(dir))

			out.Muted("%s %s...", action.working, filepath.Base(dir))
			if err := a.runner(cmd).Compose(ctx, dir, action.args...); err != nil {
				logging.Error(ctx, "compose failed", slog.String("action", action.use), slog.String("error", err.Error()))
				out.Fail("Command failed.")
				return NewSilentError(err)
			}
			out.Success("%s", action.done)
			return nil
		},
	}
}

func newLogsCmd(a *app) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs PATH",
		Short: "Show the logs of a stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer(cmd)
			dir, err := resolveStack(out, args[0])
			if err != nil {
				return err
			}

			composeArgs := []string{"logs"}
			if follow {
				composeArgs = append(composeArgs, "-f")
			}
			err = a.runner(cmd).Compose(cmd.Context(), dir, composeArgs...)
			if err != nil && cmd.Context().Err() != nil {
				// Interrupted while following.
				return nil
			}
			if err != nil {
				return NewSilentError(err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", true, "Follow log output (--follow=false to print and exit)")

	return cmd
}

func newUninstallCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "uninstall PATH",
		Short: "Remove a stack's containers, volumes and folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer(cmd)
			dir, err := resolveStack(out, args[0])
			if err != nil {
				return err
			}
			ctx := logging.WithProject(logging.WithComponent(cmd.Context(), "compose"), compose.ProjectName(dir))

			if !force {
				out.Warn("WARNING: This will delete containers and data in %s.", dir)
				ok, err := a.prompter.Confirm("Are you sure?", false)
				if err != nil && !isAbort(err) {
					return err
				}
				if !ok {
					return nil
				}
			}

			out.Muted("Uninstalling...")
			if err := a.runner(cmd).Compose(ctx, dir, "down", "-v"); err != nil {
				out.Fail("Command failed.")
				return NewSilentError(err)
			}
			if err := os.RemoveAll(dir); err != nil {
				out.Warn("Could not remove directory: %v", err)
			}
			logging.Info(ctx, "stack uninstalled", slog.String("dir", dir))
			out.Success("Uninstalled")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask for confirmation")

	return cmd
}
