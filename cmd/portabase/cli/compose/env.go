package compose

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/portabase/cli/cmd/portabase/cli/paths"
	"github.com/subosito/gotenv"
)

// Env is an ordered set of environment variables.
type Env struct {
	keys   []string
	values map[string]string
}

func NewEnv() *Env {
	return &Env{values: make(map[string]string)}
}

// Set adds key or overwrites its value in place.
func (e *Env) Set(key, value string) {
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

func (e *Env) Get(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (e *Env) Keys() []string {
	return append([]string(nil), e.keys...)
}

func (e *Env) Len() int {
	return len(e.keys)
}

// Merge sets every variable of other.
func (e *Env) Merge(other *Env) {
	for _, k := range other.keys {
		e.Set(k, other.values[k])
	}
}

// ToMap copies the variables into a map.
func (e *Env) ToMap() map[string]string {
	m := make(map[string]string, len(e.keys))
	for k, v := range e.values {
		m[k] = v
	}
	return m
}

// envKeyRe finds assignment keys so the parsed file keeps its line order.
var envKeyRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?([\w.]+)\s*[=:]`)

// ReadEnvFile parses a dotenv file with gotenv, keeping the file's key
// order. A missing file is an empty Env; a malformed line is an error.
func ReadEnvFile(path string) (*Env, error) {
	env := NewEnv()
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the user's stack directory
	if os.IsNotExist(err) {
		return env, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	parsed, err := gotenv.StrictParse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for _, m := range envKeyRe.FindAllSubmatch(data, -1) {
		key := string(m[1])
		if v, ok := parsed[key]; ok {
			env.Set(key, v)
		}
	}
	rest := slices.Sorted(maps.Keys(parsed))
	for _, k := range rest {
		if _, ok := env.Get(k); !ok {
			env.Set(k, parsed[k])
		}
	}
	return env, nil
}

// WriteEnvFile merges vars into dir/.env: existing keys keep their position
// and are overwritten when vars sets them, new keys are appended. Every
// value is written double quoted.
func WriteEnvFile(dir string, vars *Env) error {
	path := filepath.Join(dir, paths.EnvFileName)
	env, err := ReadEnvFile(path)
	if err != nil {
		return err
	}
	env.Merge(vars)

	var b strings.Builder
	for _, k := range env.keys {
		fmt.Fprintf(&b, "%s=%s\n", k, quote(env.values[k]))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // stack directory
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", paths.EnvFileName, err)
	}
	return nil
}

// envEscaper is the inverse of gotenv's double-quote handling; the dollar
// is escaped so values are never interpolated.
var envEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "\n", `\n`, "\r", `\r`)

func quote(v string) string {
	return `"` + envEscaper.Replace(v) + `"`
}
