package cli

import (
	"fmt"
	"strings"

	"github.com/portabase/cli/cmd/portabase/cli/settings"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage global CLI configuration",
	}
	cmd.AddCommand(newConfigChannelCmd(a))
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigTelemetryCmd(a))
	return cmd
}

func newConfigChannelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "channel NAME",
		Short:     "Set the update channel (stable or beta)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{settings.ChannelStable, settings.ChannelBeta},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer(cmd)
			channel, err := settings.ParseChannel(args[0])
			if err != nil {
				out.Fail("Invalid channel. Choose either 'stable' or 'beta'.")
				return NewSilentError(err)
			}

			store, err := a.settings()
			if err != nil {
				return err
			}
			if err := store.Set(settings.KeyUpdateChannel, channel); err != nil {
				return err
			}
			// The cached answer was computed for the previous channel.
			if err := a.releases(store).ClearCache(); err != nil {
				out.Warn("Could not clear the update cache: %v", err)
			}

			out.Success("Update channel set to: %s", channel)
			return nil
		},
	}
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := printer(cmd)
			store, err := a.settings()
			if err != nil {
				return err
			}

			channel := store.UpdateChannel()
			if channel == "" {
				channel = "auto (based on current version)"
			}
			level := store.LogLevel()
			if level == "" {
				level = "info"
			}
			telemetry := "not set (disabled)"
			if t := store.Telemetry(); t != nil {
				telemetry = onOff(*t)
			}

			out.Info("Current Configuration:")
			out.KeyValue("Update Channel", channel)
			out.KeyValue("Telemetry", telemetry)
			out.KeyValue("Log Level", level)
			out.KeyValue("Settings File", store.Path())
			return nil
		},
	}
}

func newConfigTelemetryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "telemetry on|off",
		Short:     "Opt in to or out of anonymous usage statistics",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer(cmd)
			var enabled bool
			switch strings.ToLower(args[0]) {
			case "on", "true", "yes":
				enabled = true
			case "off", "false", "no":
				enabled = false
			default:
				err := fmt.Errorf("invalid value %q: use on or off", args[0])
				out.Fail("%v", err)
				return NewSilentError(err)
			}

			store, err := a.settings()
			if err != nil {
				return err
			}
			if err := store.Set(settings.KeyTelemetry, enabled); err != nil {
				return err
			}
			out.Success("Telemetry %s", onOff(enabled))
			return nil
		},
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
