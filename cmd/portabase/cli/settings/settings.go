// Package settings is the global, per-user configuration store
// (~/.portabase/config.json). Values can be overridden from the environment
// with the PORTABASE_ prefix, e.g. PORTABASE_UPDATE_CHANNEL=beta.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/portabase/cli/cmd/portabase/cli/paths"
	"github.com/spf13/viper"
)

const (
	// FileName is the settings file inside the application directory.
	FileName = "config.json"

	// EnvPrefix is prepended to upper-cased keys for environment overrides.
	EnvPrefix = "PORTABASE"
)

// Keys understood by the CLI.
const (
	KeyUpdateChannel = "update_channel"
	KeyLogLevel      = "log_level"
	KeyTelemetry     = "telemetry"
)

// Update channels.
const (
	ChannelStable = "stable"
	ChannelBeta   = "beta"
)

// ErrInvalidChannel is returned by ParseChannel for unknown names.
var ErrInvalidChannel = errors.New("invalid channel: choose either 'stable' or 'beta'")

// Store reads merged file+env values and persists changes to the file only.
type Store struct {
	path string
	v    *viper.Viper
}

// Open loads ~/.portabase/config.json. A missing file is an empty store.
func Open() (*Store, error) {
	dir, err := paths.AppDir()
	if err != nil {
		return nil, err
	}
	return OpenFile(filepath.Join(dir, FileName))
}

// OpenFile loads the store backed by path.
func OpenFile(path string) (*Store, error) {
	v, err := load(path)
	if err != nil {
		return nil, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Store{path: path, v: v}, nil
}

func load(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	return v, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Get returns the string value for key, or "" when unset.
func (s *Store) Get(key string) string {
	return s.v.GetString(key)
}

// IsSet reports whether key has a value in the file or the environment.
func (s *Store) IsSet(key string) bool {
	return s.v.IsSet(key)
}

// Set writes key=value to the settings file. Environment overrides are not
// persisted.
func (s *Store) Set(key string, value any) error {
	file, err := load(s.path)
	if err != nil {
		return err
	}
	file.Set(key, value)

	//nolint:gosec // user home directory, 0o755 is appropriate
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	if err := file.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}

	s.v.Set(key, value)
	return nil
}

// UpdateChannel returns the configured channel, or "" when the channel
// should be inferred from the running version.
func (s *Store) UpdateChannel() string {
	return strings.ToLower(s.Get(KeyUpdateChannel))
}

// LogLevel returns the configured log level.
func (s *Store) LogLevel() string {
	return s.Get(KeyLogLevel)
}

// Telemetry returns nil when the user never answered, otherwise the opt-in value.
func (s *Store) Telemetry() *bool {
	if !s.IsSet(KeyTelemetry) {
		return nil
	}
	enabled := s.v.GetBool(KeyTelemetry)
	return &enabled
}

// ParseChannel normalizes and validates an update channel name.
func ParseChannel(name string) (string, error) {
	switch c := strings.ToLower(strings.TrimSpace(name)); c {
	case ChannelStable, ChannelBeta:
		return c, nil
	default:
		return "", fmt.Errorf("%w (got %q)", ErrInvalidChannel, name)
	}
}
