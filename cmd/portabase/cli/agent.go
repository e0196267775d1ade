package cli

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/portabase/cli/cmd/portabase/cli/compose"
	"github.com/portabase/cli/cmd/portabase/cli/dbconfig"
	"github.com/portabase/cli/cmd/portabase/cli/logging"
	"github.com/portabase/cli/cmd/portabase/cli/ui"
	"github.com/portabase/cli/redact"
	"github.com/spf13/cobra"
)

const (
	modeNew      = "new"
	modeExisting = "existing"
)

type agentOptions struct {
	key   string
	start bool
	yes   bool
}

func newAgentCmd(a *app) *cobra.Command {
	var opts agentOptions

	cmd := &cobra.Command{
		Use:   "agent NAME",
		Short: "Scaffold an agent stack in a new folder",
		Long: `Scaffold an agent stack in a new folder.

The agent connects to a dashboard with its edge key. Databases can be added
as new local containers or as connections to existing servers; every
database is recorded in databases.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAgent(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.key, "key", "k", "", "Edge key")
	cmd.Flags().BoolVarP(&opts.start, "start", "s", false, "Start immediately")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not prompt: overwrite an existing folder and skip database setup")

	return cmd
}

func (a *app) runAgent(cmd *cobra.Command, name string, opts agentOptions) error {
	ctx := logging.WithComponent(cmd.Context(), "agent")
	out := printer(cmd)
	out.Banner()

	if err := a.preflight(ctx, out, true); err != nil {
		return err
	}

	stack, err := compose.NewStack(name)
	if err != nil {
		return err
	}
	ok, err := a.confirmOverwrite(out, stack, opts.yes)
	if err != nil || !ok {
		return err
	}
	if err := stack.Create(); err != nil {
		return err
	}
	project := stack.Project()
	ctx = logging.WithProject(ctx, project)

	key := opts.key
	if key == "" {
		key, err = a.prompter.Input("Edge Key", "", validateRequired)
		if err != nil {
			return abortOr(out, err)
		}
	}

	tmpl, err := a.fetchTemplate(ctx, out, compose.AgentTemplate)
	if err != nil {
		return err
	}

	if err := dbconfig.Init(stack.Dir); err != nil {
		return err
	}

	var locals []*compose.LocalDatabase
	if !opts.yes {
		out.Println()
		out.Panel("Database Setup")
		locals, err = a.configureDatabases(ctx, out, stack.Dir)
		if err != nil {
			return abortOr(out, err)
		}
	}

	content, err := compose.Render(tmpl, project, locals)
	if err != nil {
		out.Fail("%v", err)
		return NewSilentError(err)
	}
	if err := stack.WriteCompose(content); err != nil {
		return err
	}
	env := compose.AgentEnv(key, project, locals)
	if err := stack.WriteEnv(env); err != nil {
		return err
	}
	logging.Info(ctx, "agent scaffolded",
		slog.String("dir", stack.Dir),
		slog.Int("local_databases", len(locals)),
		slog.Any("env", redact.Env(env.ToMap())),
	)

	out.Panel("AGENT READY: " + name)

	started, err := a.startStack(cmd, out, stack, opts.start, opts.yes, "Start agent now?")
	if err != nil {
		return err
	}
	if started {
		out.Success("Agent %s is running", name)
	}
	return nil
}

// configureDatabases loops until the user stops adding databases. Local
// containers are returned for the compose file; every database is added to
// databases.json as it is configured.
func (a *app) configureDatabases(ctx context.Context, out *ui.Printer, dir string) ([]*compose.LocalDatabase, error) {
	var locals []*compose.LocalDatabase
	for {
		more, err := a.prompter.Confirm("Do you want to configure a database?", true)
		if err != nil {
			return nil, err
		}
		if !more {
			return locals, nil
		}

		mode, err := a.prompter.Select("Configuration Mode", []string{modeNew, modeExisting}, 0)
		if err != nil {
			return nil, err
		}

		if mode == 1 {
			out.Info("External/Existing Database Configuration")
			db, err := a.promptExternal(true)
			if err != nil {
				return nil, err
			}
			if _, err := dbconfig.Add(dir, db); err != nil {
				return nil, err
			}
			logging.Info(ctx, "external database added", slog.String("type", db.Type), slog.String("host", db.Host))
			out.Success("Added to config")
			continue
		}

		out.Info("New Local Docker Container")
		names := make([]string, len(compose.Engines))
		for i, e := range compose.Engines {
			names[i] = string(e)
		}
		choice, err := a.prompter.Select("Engine", names, 0)
		if err != nil {
			return nil, err
		}
		local, err := compose.NewLocalDatabase(compose.Engines[choice], a.random)
		if err != nil {
			return nil, err
		}
		if _, err := dbconfig.Add(dir, local.Entry); err != nil {
			return nil, err
		}
		locals = append(locals, local)
		logging.Info(ctx, "local database added",
			slog.String("engine", string(local.Engine)),
			slog.String("service", local.ServiceName),
			slog.Int("port", local.Entry.Port),
		)
		out.Success("Added %s container (Port %d)", engineLabel(local.Engine), local.Entry.Port)
	}
}

func engineLabel(e compose.Engine) string {
	switch e {
	case compose.EnginePostgres:
		return "Postgres"
	case compose.EngineMySQL, compose.EngineMariaDB:
		return "MariaDB"
	case compose.EngineMongoDBAuth:
		return "MongoDB Auth"
	default:
		return "MongoDB"
	}
}

// promptExternal asks for the connection details of an existing database.
// Agents scaffolding may name the connection and pick mongodb; `db add`
// uses the database name as display name.
func (a *app) promptExternal(agent bool) (dbconfig.Database, error) {
	types := []string{dbconfig.TypePostgres, dbconfig.TypeMySQL, dbconfig.TypeMariaDB}
	if agent {
		types = append(types, dbconfig.TypeMongoDB)
	}

	var db dbconfig.Database
	i, err := a.prompter.Select("Type", types, 0)
	if err != nil {
		return db, err
	}
	db.Type = types[i]

	if agent {
		if db.Name, err = a.prompter.Input("Display Name", "External DB", validateRequired); err != nil {
			return db, err
		}
	}
	if db.Database, err = a.prompter.Input("Database Name", "", validateRequired); err != nil {
		return db, err
	}
	if !agent {
		db.Name = db.Database
	}
	if db.Host, err = a.prompter.Input("Host", "localhost", validateRequired); err != nil {
		return db, err
	}
	port, err := a.prompter.Input("Port", strconv.Itoa(dbconfig.DefaultPort(db.Type)), validatePort)
	if err != nil {
		return db, err
	}
	db.Port, _ = strconv.Atoi(port)
	if db.Username, err = a.prompter.Input("Username", "", nil); err != nil {
		return db, err
	}
	if db.Password, err = a.prompter.Password("Password"); err != nil {
		return db, err
	}
	return db, nil
}

// abortOr turns a cancelled prompt into a clean exit.
func abortOr(out *ui.Printer, err error) error {
	if isAbort(err) {
		out.Muted("Aborted.")
		return nil
	}
	return err
}
