// Package cli implements the portabase command tree.
package cli

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"github.com/portabase/cli/cmd/portabase/cli/logging"
	"github.com/portabase/cli/cmd/portabase/cli/settings"
	"github.com/portabase/cli/cmd/portabase/cli/telemetry"
	"github.com/portabase/cli/cmd/portabase/cli/versioncheck"
	"github.com/spf13/cobra"
)

const gettingStarted = `

Getting Started:
  Scaffold a dashboard with 'portabase dashboard NAME', then an agent with
  'portabase agent NAME --key EDGE_KEY'. Each creates a folder holding a
  docker-compose.yml and .env you can manage with start/stop/logs.

`

const accessibilityHelp = `
Environment Variables:
  ACCESSIBLE                  Set to any value (e.g., ACCESSIBLE=1) to use
                              plain text prompts instead of interactive TUI
                              elements, which works better with screen readers.
  PORTABASE_LOG_LEVEL         debug, info, warn or error.
  PORTABASE_UPDATE_CHANNEL    Overrides the configured update channel.
  PORTABASE_TELEMETRY_OPTOUT  Set to any value to disable telemetry.
`

func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultApp())
}

func newRootCmd(a *app) *cobra.Command {
	var store *settings.Store

	cmd := &cobra.Command{
		Use:   "portabase",
		Short: "Portabase CLI",
		Long:  "Deploy Portabase dashboards and agents with Docker Compose." + gettingStarted + accessibilityHelp,
		// Let main.go handle error printing to avoid duplication
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			var err error
			store, err = a.settings()
			if err != nil {
				store = nil
			}
			if store != nil {
				logging.SetLogLevelGetter(store.LogLevel)
			}
			if err := logging.Init(uuid.NewString()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to initialize logging: %v\n", err)
			}

			ctx := logging.WithCommand(cmd.Context(), cmd.CommandPath())
			cmd.SetContext(ctx)
			logging.Debug(ctx, "command started", slog.String("version", versioncheck.Current()))

			if a.notify {
				versioncheck.CheckAndNotify(cmd, a.releases(store))
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			defer logging.Close()

			var enabled *bool
			if store != nil {
				enabled = store.Telemetry()
			}
			client := telemetry.NewClient(versioncheck.Current(), enabled)
			defer client.Close()
			client.TrackCommand(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newAgentCmd(a))
	cmd.AddCommand(newDashboardCmd(a))
	cmd.AddCommand(newStartCmd(a))
	cmd.AddCommand(newStopCmd(a))
	cmd.AddCommand(newRestartCmd(a))
	cmd.AddCommand(newLogsCmd(a))
	cmd.AddCommand(newUninstallCmd(a))
	cmd.AddCommand(newDBCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newUpdateCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Portabase CLI %s\n", versioncheck.Current())
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
