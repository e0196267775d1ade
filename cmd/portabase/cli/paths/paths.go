// Package paths resolves the on-disk locations the CLI reads and writes:
// the per-user application directory, the install target of the binary and
// the working directory of a scaffolded stack.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// AppDirName is the per-user application directory under $HOME.
	AppDirName = ".portabase"

	// BinaryName is the executable name without platform suffix.
	BinaryName = "portabase"

	// ComposeFileName is the file that marks a directory as a Portabase stack.
	ComposeFileName = "docker-compose.yml"

	// EnvFileName is the compose env file written next to the compose file.
	EnvFileName = ".env"

	// DatabasesFileName holds the agent's database connection metadata.
	DatabasesFileName = "databases.json"

	// SystemInstallDir is the conventional unix install location.
	SystemInstallDir = "/usr/local/bin"
)

// ErrNoStack is returned when a directory has no compose file.
var ErrNoStack = errors.New("no Portabase configuration found")

// executable is swapped in tests.
var executable = os.Executable

// AppDir returns ~/.portabase. The directory is not created.
func AppDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, AppDirName), nil
}

// EnsureAppDir creates ~/.portabase if it does not exist and returns its path.
func EnsureAppDir() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	//nolint:gosec // user home directory, 0o755 is appropriate
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating app directory: %w", err)
	}
	return dir, nil
}

// ExecutableName returns the binary file name for goos.
func ExecutableName(goos string) string {
	if goos == "windows" {
		return BinaryName + ".exe"
	}
	return BinaryName
}

// ConventionalInstallPath returns where an installer would have placed the
// binary for goos: %APPDATA%\Portabase on windows, /usr/local/bin when the
// binary is already there, ~/.local/bin otherwise.
func ConventionalInstallPath(goos string) (string, error) {
	if goos == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "Portabase", ExecutableName(goos)), nil
	}

	system := filepath.Join(SystemInstallDir, ExecutableName(goos))
	if _, err := os.Stat(system); err == nil {
		return system, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".local", "bin", ExecutableName(goos)), nil
}

// InstallTarget returns the path of the running executable with symlinks
// resolved (Homebrew and friends link bin/ into a cellar). When the
// executable cannot be determined the conventional location is used.
func InstallTarget() (string, error) {
	exe, err := executable()
	if err != nil || exe == "" {
		return ConventionalInstallPath(runtime.GOOS)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return exe, nil
	}
	return resolved, nil
}

// ResolveWorkDir makes dir absolute and checks that it holds a compose file.
func ResolveWorkDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	if _, err := os.Stat(filepath.Join(abs, ComposeFileName)); err != nil {
		return "", fmt.Errorf("%w in: %s", ErrNoStack, abs)
	}
	return abs, nil
}
