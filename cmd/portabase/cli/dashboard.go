package cli

import (
	"fmt"
	"log/slog"

	"github.com/portabase/cli/cmd/portabase/cli/compose"
	"github.com/portabase/cli/cmd/portabase/cli/logging"
	"github.com/portabase/cli/redact"
	"github.com/spf13/cobra"
)

type dashboardOptions struct {
	port  string
	start bool
	yes   bool
}

func newDashboardCmd(a *app) *cobra.Command {
	var opts dashboardOptions

	cmd := &cobra.Command{
		Use:   "dashboard NAME",
		Short: "Scaffold a dashboard stack in a new folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDashboard(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.port, "port", compose.DefaultDashboardPort, "Web port")
	cmd.Flags().BoolVarP(&opts.start, "start", "s", false, "Start immediately")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not prompt: overwrite an existing folder")

	return cmd
}

func (a *app) runDashboard(cmd *cobra.Command, name string, opts dashboardOptions) error {
	ctx := logging.WithComponent(cmd.Context(), "dashboard")
	out := printer(cmd)
	out.Banner()

	if err := a.preflight(ctx, out, false); err != nil {
		return err
	}

	stack, err := compose.NewStack(name)
	if err != nil {
		return err
	}
	project := stack.Project()
	ctx = logging.WithProject(ctx, project)

	dash, err := compose.NewDashboard(opts.port, project, a.random)
	if err != nil {
		out.Fail("%v", err)
		return NewSilentError(err)
	}

	ok, err := a.confirmOverwrite(out, stack, opts.yes)
	if err != nil || !ok {
		return err
	}
	if err := stack.Create(); err != nil {
		return err
	}

	tmpl, err := a.fetchTemplate(ctx, out, compose.DashboardTemplate)
	if err != nil {
		return err
	}
	content, err := compose.Render(tmpl, project, nil)
	if err != nil {
		out.Fail("%v", err)
		return NewSilentError(err)
	}
	if err := stack.WriteCompose(content); err != nil {
		return err
	}
	if err := stack.WriteEnv(dash.Env); err != nil {
		return err
	}
	logging.Info(ctx, "dashboard scaffolded",
		slog.String("dir", stack.Dir),
		slog.String("url", dash.URL),
		slog.Any("env", redact.Env(dash.Env.ToMap())),
	)

	out.Panel("DASHBOARD CREATED: "+name,
		"Path: "+stack.Dir,
		fmt.Sprintf("DB Port: %d", dash.PGPort),
	)

	started, err := a.startStack(cmd, out, stack, opts.start, opts.yes, "Start dashboard now?")
	if err != nil {
		return err
	}
	if started {
		out.Success("Live at: %s", dash.URL)
	}
	return nil
}
