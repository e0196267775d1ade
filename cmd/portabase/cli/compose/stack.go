package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/portabase/cli/cmd/portabase/cli/paths"
)

// Stack is a directory holding one scaffolded compose project.
type Stack struct {
	// Name is what the user typed; it names the directory.
	Name string
	Dir  string
}

// NewStack resolves name against the working directory.
func NewStack(name string) (*Stack, error) {
	dir, err := filepath.Abs(name)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", name, err)
	}
	return &Stack{Name: name, Dir: dir}, nil
}

// Project is the value substituted for ${PROJECT_NAME}.
func (s *Stack) Project() string {
	return ScaffoldName(s.Name)
}

// Exists reports whether the directory is already present.
func (s *Stack) Exists() bool {
	_, err := os.Stat(s.Dir)
	return err == nil
}

// Create makes the stack directory.
func (s *Stack) Create() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil { //nolint:gosec // stack directory
		return fmt.Errorf("creating %s: %w", s.Dir, err)
	}
	return nil
}

// WriteCompose writes the rendered compose file.
func (s *Stack) WriteCompose(content string) error {
	path := filepath.Join(s.Dir, paths.ComposeFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil { //nolint:gosec // compose files are not secret
		return fmt.Errorf("writing %s: %w", paths.ComposeFileName, err)
	}
	return nil
}

// WriteEnv merges env into the stack's .env file.
func (s *Stack) WriteEnv(env *Env) error {
	return WriteEnvFile(s.Dir, env)
}

// AgentEnv is the .env of an agent: the edge key, the project name and the
// variables of every local database.
func AgentEnv(edgeKey, project string, dbs []*LocalDatabase) *Env {
	env := NewEnv()
	env.Set("EDGE_KEY", edgeKey)
	env.Set("PROJECT_NAME", project)
	for _, db := range dbs {
		env.Merge(db.Env)
	}
	return env
}

// DefaultDashboardPort is the web port used when none is given.
const DefaultDashboardPort = "8887"

// Dashboard holds the generated configuration of a dashboard stack.
type Dashboard struct {
	Env    *Env
	URL    string
	PGPort int
}

// NewDashboard generates the dashboard's database password, project
// secret and Postgres host port.
func NewDashboard(port, project string, rnd Randomness) (*Dashboard, error) {
	if port == "" {
		port = DefaultDashboardPort
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return nil, fmt.Errorf("invalid port %q", port)
	}

	secret, err := rnd.Hex(32)
	if err != nil {
		return nil, err
	}
	password, err := rnd.Hex(16)
	if err != nil {
		return nil, err
	}
	pgPort, err := rnd.FreePort()
	if err != nil {
		return nil, err
	}

	url := "http://localhost:" + port
	env := NewEnv()
	env.Set("PORT", port)
	env.Set("POSTGRES_DB", "portabase")
	env.Set("POSTGRES_USER", "portabase")
	env.Set("POSTGRES_PASSWORD", password)
	env.Set("POSTGRES_HOST", "db")
	env.Set("DATABASE_URL", fmt.Sprintf("postgresql://portabase:%s@db:5432/portabase?schema=public", password))
	env.Set("PROJECT_SECRET", secret)
	env.Set("PROJECT_URL", url)
	env.Set("PROJECT_NAME", project)
	env.Set("PG_PORT", strconv.Itoa(pgPort))

	return &Dashboard{Env: env, URL: url, PGPort: pgPort}, nil
}
