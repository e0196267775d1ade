package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	update "github.com/inconshreveable/go-update"
	"github.com/portabase/cli/cmd/portabase/cli/logging"
	"github.com/portabase/cli/cmd/portabase/cli/versioncheck"
)

// Installer failure classes.
var (
	ErrDownload   = errors.New("download failed")
	ErrElevation  = errors.New("elevated install failed")
	ErrFilesystem = errors.New("filesystem error")
)

// State is a step of the install state machine.
type State int

const (
	StateIdle State = iota
	StateDownloading
	StateVerifying
	StateSwapping
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDownloading:
		return "downloading"
	case StateVerifying:
		return "verifying"
	case StateSwapping:
		return "swapping"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// tempPattern names scratch files; the * is filled by os.CreateTemp.
const tempPattern = "portabase_update_*"

// responseHeaderTimeout bounds the wait for the asset response. The body
// itself is streamed without a deadline.
const responseHeaderTimeout = 15 * time.Second

// Installer downloads a release asset and swaps it in for the installed binary.
type Installer struct {
	// GOOS selects the swap strategy; windows never elevates.
	GOOS string

	// ScratchDir holds the temp download. Empty means os.TempDir().
	ScratchDir string

	HTTPClient *http.Client
	FS         FS
	Elevator   Elevator

	// Progress receives download progress and status lines. May be nil.
	Progress io.Writer

	// Apply replaces the binary at opts.TargetPath. Nil means update.Apply.
	Apply func(r io.Reader, opts update.Options) error

	state State
}

// NewInstaller returns an installer for goos backed by the real filesystem and sudo.
func NewInstaller(goos string, progress io.Writer) *Installer {
	return &Installer{
		GOOS: goos,
		HTTPClient: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: responseHeaderTimeout}).DialContext,
			TLSHandshakeTimeout:   responseHeaderTimeout,
			ResponseHeaderTimeout: responseHeaderTimeout,
		}},
		FS:       OSFS{},
		Elevator: SudoElevator{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr},
		Progress: progress,
	}
}

// State returns the last state reached.
func (i *Installer) State() State {
	return i.state
}

func (i *Installer) setState(ctx context.Context, s State) {
	logging.Debug(ctx, "installer state", slog.String("from", i.state.String()), slog.String("to", s.String()))
	i.state = s
}

// Install downloads asset and places it at target. On any failure the temp
// download is removed and target still holds an executable.
func (i *Installer) Install(ctx context.Context, asset versioncheck.Asset, target string) (err error) {
	ctx = logging.WithComponent(ctx, "selfupdate")
	start := time.Now()
	i.state = StateIdle

	var tmp string
	defer func() {
		// The elevated path moves tmp away; go-update only copies it.
		if tmp != "" {
			if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				logging.Warn(ctx, "failed to remove temp download", slog.String("path", tmp), slog.String("error", rmErr.Error()))
			}
		}
		if err == nil {
			i.setState(ctx, StateDone)
			logging.LogDuration(ctx, slog.LevelInfo, "binary installed", start,
				slog.String("asset", asset.Name), slog.String("target", target))
			return
		}
		logging.Error(ctx, "install failed", slog.String("state", i.state.String()), slog.String("error", err.Error()))
		i.state = StateFailed
	}()

	i.setState(ctx, StateDownloading)
	tmp, err = i.download(ctx, asset)
	if err != nil {
		return err
	}

	i.setState(ctx, StateVerifying)
	if i.GOOS != "windows" {
		if err := i.FS.Chmod(tmp, 0o755); err != nil {
			return fmt.Errorf("%w: setting permissions: %w", ErrFilesystem, err)
		}
	}

	i.setState(ctx, StateSwapping)
	if i.GOOS != "windows" && i.needsElevation(target) {
		i.printf("Permissions required to install to %s. Using sudo...\n", filepath.Dir(target))
		return i.swapElevated(ctx, tmp, target)
	}
	return i.swap(tmp, target)
}

func (i *Installer) download(ctx context.Context, asset versioncheck.Asset) (string, error) {
	f, err := os.CreateTemp(i.ScratchDir, tempPattern)
	if err != nil {
		return "", fmt.Errorf("%w: creating temp file: %w", ErrFilesystem, err)
	}
	path := f.Name()

	fail := func(err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %w", ErrDownload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return fail(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", "portabase-cli")

	client := i.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var dst io.Writer = f
	var pw *progressWriter
	if i.Progress != nil {
		pw = &progressWriter{out: i.Progress, label: asset.Name, total: resp.ContentLength}
		dst = io.MultiWriter(f, pw)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fail(fmt.Errorf("writing %s: %w", asset.Name, err))
	}
	if pw != nil {
		pw.finish()
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: closing temp file: %w", ErrDownload, err)
	}
	return path, nil
}

func (i *Installer) needsElevation(target string) bool {
	if !i.FS.Writable(i.nearestExisting(filepath.Dir(target))) {
		return true
	}
	if _, err := i.FS.Stat(target); err == nil && !i.FS.Writable(target) {
		return true
	}
	return false
}

// nearestExisting returns dir or its closest ancestor that exists, which is
// where a missing install directory would be created.
func (i *Installer) nearestExisting(dir string) string {
	for {
		if _, err := i.FS.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// swap hands the download to go-update, which writes it next to target,
// moves the current binary to <target>.old (replacing a stale one) and
// renames the new file into place, restoring the old binary on failure.
func (i *Installer) swap(tmp, target string) error {
	if err := i.FS.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: creating install directory: %w", ErrFilesystem, err)
	}

	opts := update.Options{TargetPath: target, OldSavePath: target + ".old", TargetMode: 0o755}
	if _, err := i.FS.Stat(target); err != nil {
		// go-update always moves an existing binary aside. A fresh install
		// swaps out an empty placeholder that it then discards.
		placeholder, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o755) //nolint:gosec // install target
		if err != nil {
			return fmt.Errorf("%w: creating %s: %w", ErrFilesystem, target, err)
		}
		_ = placeholder.Close()
		opts.OldSavePath = ""
	}

	src, err := os.Open(tmp) //nolint:gosec // our own temp file
	if err != nil {
		return fmt.Errorf("%w: opening download: %w", ErrFilesystem, err)
	}
	defer src.Close()

	apply := i.Apply
	if apply == nil {
		apply = update.Apply
	}
	if err := apply(src, opts); err != nil {
		if opts.OldSavePath == "" {
			_ = os.Remove(target)
		}
		if rbErr := update.RollbackError(err); rbErr != nil {
			return fmt.Errorf("%w: placing new binary: %w (restoring previous binary: %w)", ErrFilesystem, err, rbErr)
		}
		return fmt.Errorf("%w: placing new binary: %w", ErrFilesystem, err)
	}
	return nil
}

// swapElevated performs the same steps as swap through the Elevator. Any
// elevated step failing is fatal; it is not retried.
func (i *Installer) swapElevated(ctx context.Context, tmp, target string) error {
	old := target + ".old"
	movedAside := false

	if dir := filepath.Dir(target); i.nearestExisting(dir) != dir {
		if err := i.Elevator.Run(ctx, "mkdir", "-p", dir); err != nil {
			return fmt.Errorf("%w: %w", ErrElevation, err)
		}
	}

	if _, err := i.FS.Stat(target); err == nil {
		if err := i.Elevator.Run(ctx, "mv", target, old); err != nil {
			return fmt.Errorf("%w: %w", ErrElevation, err)
		}
		movedAside = true
	}

	if err := i.Elevator.Run(ctx, "mv", tmp, target); err != nil {
		cause := fmt.Errorf("%w: %w", ErrElevation, err)
		if movedAside {
			if rbErr := i.Elevator.Run(ctx, "mv", old, target); rbErr != nil {
				return errors.Join(cause, fmt.Errorf("restoring previous binary: %w", rbErr))
			}
		}
		return cause
	}

	if err := i.Elevator.Run(ctx, "chmod", "+x", target); err != nil {
		return fmt.Errorf("%w: %w", ErrElevation, err)
	}
	return nil
}

func (i *Installer) printf(format string, a ...any) {
	if i.Progress != nil {
		fmt.Fprintf(i.Progress, format, a...)
	}
}

// progressWriter renders "Downloading <asset>... 1.2 MB / 8.0 MB" on one line.
type progressWriter struct {
	out     io.Writer
	label   string
	total   int64
	written int64
	last    time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if time.Since(p.last) >= 100*time.Millisecond {
		p.render()
		p.last = time.Now()
	}
	return len(b), nil
}

func (p *progressWriter) render() {
	if p.total > 0 {
		fmt.Fprintf(p.out, "\rDownloading %s... %s / %s", p.label,
			humanize.Bytes(uint64(p.written)), humanize.Bytes(uint64(p.total))) //nolint:gosec // sizes are non-negative
		return
	}
	fmt.Fprintf(p.out, "\rDownloading %s... %s", p.label, humanize.Bytes(uint64(p.written))) //nolint:gosec // size is non-negative
}

func (p *progressWriter) finish() {
	p.render()
	fmt.Fprintln(p.out)
}
