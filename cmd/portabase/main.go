package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/portabase/cli/cmd/portabase/cli"
	"github.com/portabase/cli/cmd/portabase/cli/ui"
)

func main() {
	// Ctrl+C ends `logs -f` and aborts downloads cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.NewRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var silent *cli.SilentError
	if !errors.As(err, &silent) {
		ui.New(os.Stderr).Fail("%v", err)
	}
	os.Exit(1)
}
