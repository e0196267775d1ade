package selfupdate

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
)

// FS is the filesystem surface the installer inspects. The unprivileged
// swap itself is done by go-update on the real filesystem.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	Chmod(name string, mode fs.FileMode) error
	MkdirAll(path string, perm fs.FileMode) error

	// Writable reports whether the current user may modify path.
	Writable(path string) bool
}

// Elevator runs a command with elevated privileges.
type Elevator interface {
	Run(ctx context.Context, name string, args ...string) error
}

// OSFS is the real filesystem.
type OSFS struct{}

func (OSFS) Stat(name string) (fs.FileInfo, error)        { return os.Stat(name) }
func (OSFS) Chmod(name string, mode fs.FileMode) error    { return os.Chmod(name, mode) }
func (OSFS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFS) Writable(path string) bool                    { return writable(path) }

// SudoElevator runs commands through sudo attached to the user's terminal
// so a password prompt can be answered.
type SudoElevator struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (e SudoElevator) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, "sudo", append([]string{name}, args...)...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo %s: %w", name, err)
	}
	return nil
}
