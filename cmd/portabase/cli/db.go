package cli

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/portabase/cli/cmd/portabase/cli/dbconfig"
	"github.com/portabase/cli/cmd/portabase/cli/logging"
	"github.com/spf13/cobra"
)

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage an agent's databases configuration",
	}
	cmd.AddCommand(newDBListCmd())
	cmd.AddCommand(newDBAddCmd(a))
	cmd.AddCommand(newDBRemoveCmd(a))
	return cmd
}

func newDBListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list NAME",
		Short: "List configured databases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer(cmd)
			dir, err := resolveStack(out, args[0])
			if err != nil {
				return err
			}

			dbs := dbconfig.Load(dir).Databases
			if len(dbs) == 0 {
				out.Warn("No databases configured.")
				return nil
			}

			rows := make([][]string, 0, len(dbs))
			for _, db := range dbs {
				rows = append(rows, []string{
					orNA(db.Name),
					orNA(db.Type),
					fmt.Sprintf("%s:%s", orNA(db.Host), portOrNA(db.Port)),
					orNA(db.Username),
					db.ShortID(),
				})
			}
			out.Table("Databases for "+args[0], []string{"DB Name", "Type", "Host:Port", "User", "ID"}, rows)
			return nil
		},
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func portOrNA(p int) string {
	if p == 0 {
		return "N/A"
	}
	return strconv.Itoa(p)
}

func newDBAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME",
		Short: "Add an external database connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer(cmd)
			dir, err := resolveStack(out, args[0])
			if err != nil {
				return err
			}

			out.Panel("Add External Database Connection")
			db, err := a.promptExternal(false)
			if err != nil {
				return abortOr(out, err)
			}
			added, err := dbconfig.Add(dir, db)
			if err != nil {
				return err
			}
			logging.Info(logging.WithComponent(cmd.Context(), "dbconfig"), "database added",
				slog.String("id", added.GeneratedID), slog.String("type", added.Type))

			out.Success("Database added to configuration.")
			out.Info("Restart the agent to apply changes: portabase restart %s", args[0])
			return nil
		},
	}
}

func newDBRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a database connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer(cmd)
			dir, err := resolveStack(out, args[0])
			if err != nil {
				return err
			}

			dbs := dbconfig.Load(dir).Databases
			if len(dbs) == 0 {
				out.Warn("No databases to remove.")
				return nil
			}

			labels := make([]string, len(dbs))
			for i, db := range dbs {
				labels[i] = db.Label()
			}
			index, err := a.prompter.Select("Which database to remove?", labels, 0)
			if err != nil {
				return abortOr(out, err)
			}

			removed, err := dbconfig.Remove(dir, index)
			if err != nil {
				return err
			}
			logging.Info(logging.WithComponent(cmd.Context(), "dbconfig"), "database removed",
				slog.String("id", removed.GeneratedID))

			out.Success("Removed %s", removed.Name)
			out.Info("Restart the agent to apply changes.")
			return nil
		},
	}
}
