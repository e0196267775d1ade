// Package selfupdate replaces the installed portabase binary with the
// release asset built for the host. The flow is: resolve the version, fetch
// release metadata, pick the asset, download and swap.
package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/portabase/cli/cmd/portabase/cli/logging"
	"github.com/portabase/cli/cmd/portabase/cli/ui"
	"github.com/portabase/cli/cmd/portabase/cli/versioncheck"
)

// ErrUnknownVersion is returned for builds without release metadata; they
// are never replaced.
var ErrUnknownVersion = errors.New("running version is unknown; self update is disabled for unpackaged builds")

// Outcome is how an update run ended without error.
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeUpToDate
	OutcomeDeclined
)

// Result describes a finished update run.
type Result struct {
	Outcome Outcome
	From    string
	To      string
}

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(question string) (bool, error)

// Updater wires the release client, asset selection and installer together.
type Updater struct {
	Client    *versioncheck.Client
	Installer *Installer
	Platform  PlatformKey

	// Target is the path of the binary to replace.
	Target string

	// Confirm is asked before a downgrade. A nil Confirm declines.
	Confirm ConfirmFunc

	Out *ui.Printer
}

// Run performs one update. Release metadata failures wrap
// versioncheck.ErrNetwork; a missing asset is a *NoMatchingAssetError.
// Neither touches the filesystem.
func (u *Updater) Run(ctx context.Context) (Result, error) {
	ctx = logging.WithComponent(ctx, "selfupdate")
	current := u.Client.Current
	res := Result{From: current}

	if !versioncheck.IsKnown(current) {
		return res, ErrUnknownVersion
	}

	release, err := u.Client.GetLatest(ctx, u.Client.IncludePrerelease())
	if err != nil {
		return res, fmt.Errorf("could not fetch latest release data: %w", err)
	}
	res.To = release.Tag

	if release.Tag == current {
		res.Outcome = OutcomeUpToDate
		return res, nil
	}

	if versioncheck.NeedsDowngradeConfirmation(current, release.Tag) {
		u.Out.Warn("Current version (%s) appears to be newer than the latest remote version (%s).", current, release.Tag)
		ok := false
		if u.Confirm != nil {
			if ok, err = u.Confirm("Do you want to continue with the update?"); err != nil {
				return res, err
			}
		}
		if !ok {
			res.Outcome = OutcomeDeclined
			return res, nil
		}
	}

	asset, err := SelectAsset(release, u.Platform)
	if err != nil {
		return res, err
	}

	u.Out.Info("Updating Portabase CLI from %s to %s...", current, release.Tag)
	u.Out.Info("Target installation path: %s", u.Target)
	logging.Info(ctx, "updating",
		slog.String("from", current),
		slog.String("to", release.Tag),
		slog.String("asset", asset.Name),
		slog.String("target", u.Target),
	)

	if err := u.Installer.Install(ctx, asset, u.Target); err != nil {
		return res, err
	}

	res.Outcome = OutcomeUpdated
	return res, nil
}
