package versioncheck

import (
	"context"

	"github.com/portabase/cli/cmd/portabase/cli/ui"
	"github.com/spf13/cobra"
)

// CheckAndNotify runs the cached update check and prints a notice to the
// command's error stream when a newer release exists. Hidden commands and
// the update command itself are skipped.
func CheckAndNotify(cmd *cobra.Command, client *Client) {
	if cmd.Hidden || cmd.Name() == "update" {
		return
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	latest, ok := client.CheckForUpdates(ctx, false)
	if !ok {
		return
	}
	printNotification(cmd, client.Current, latest)
}

func printNotification(cmd *cobra.Command, current, latest string) {
	p := ui.New(cmd.ErrOrStderr())
	p.Println()
	p.Warn("A new version of Portabase CLI is available: %s (current: %s)", latest, current)
	p.Info("Run 'portabase update' to update.")
	p.Println()
}
