package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/portabase/cli/cmd/portabase/cli/selfupdate"
	"github.com/portabase/cli/cmd/portabase/cli/versioncheck"
	"github.com/spf13/cobra"
)

func newUpdateCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the Portabase CLI to the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runUpdate(cmd, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Continue without asking when the release is older than the running version")

	return cmd
}

func (a *app) runUpdate(cmd *cobra.Command, yes bool) error {
	out := printer(cmd)

	store, err := a.settings()
	if err != nil {
		store = nil
	}
	target, err := a.installTarget()
	if err != nil {
		out.Fail("Could not determine the installation path: %v", err)
		return NewSilentError(err)
	}

	u := &selfupdate.Updater{
		Client:    a.releases(store),
		Installer: a.installer(cmd),
		Platform:  a.platform,
		Target:    target,
		Out:       out,
		Confirm: func(question string) (bool, error) {
			if yes {
				return true, nil
			}
			ok, err := a.prompter.Confirm(question, false)
			if isAbort(err) {
				return false, nil
			}
			return ok, err
		},
	}

	res, err := u.Run(cmd.Context())
	if err != nil {
		var noAsset *selfupdate.NoMatchingAssetError
		switch {
		case errors.Is(err, selfupdate.ErrUnknownVersion):
			out.Fail("Cannot update: the running version is unknown (not a packaged release).")
		case errors.Is(err, versioncheck.ErrNetwork):
			out.Fail("Could not fetch latest release data from GitHub.")
		case errors.As(err, &noAsset):
			out.Fail("Could not find binary for your platform (%s) in the latest release.", noAsset.Platform)
			out.Info("Target asset name: %s", noAsset.Want)
			out.Info("Available assets: %s", joinOrNone(noAsset.Available))
		case errors.Is(err, selfupdate.ErrElevation):
			out.Fail("An error occurred during update: %v", err)
			out.Muted("Installing to %s requires administrator rights.", target)
		default:
			out.Fail("An error occurred during update: %v", err)
		}
		return NewSilentError(err)
	}

	switch res.Outcome {
	case selfupdate.OutcomeUpToDate:
		out.Success("Portabase CLI is already up to date (%s).", res.From)
	case selfupdate.OutcomeDeclined:
		out.Info("Update cancelled.")
	case selfupdate.OutcomeUpdated:
		out.Success("Successfully updated to %s!", res.To)
		if _, err := os.Stat(target + ".old"); err == nil {
			out.Muted("Previous version kept at %s.old", target)
		}
	}
	return nil
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
