// Package logging writes structured JSON records for the Portabase CLI.
//
// Each invocation calls Init once and Close on exit. Records carry the run
// ID plus whatever WithCommand, WithComponent and WithProject put in the
// context:
//
//	ctx = logging.WithComponent(ctx, "compose")
//	logging.Info(ctx, "compose up", slog.String("dir", dir))
package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/portabase/cli/cmd/portabase/cli/paths"
)

// LogLevelEnvVar overrides the log_level setting.
const LogLevelEnvVar = "PORTABASE_LOG_LEVEL"

const (
	LogsDirName = "logs"
	LogFileName = "portabase.log"
)

// sink is the open log destination of the current invocation.
type sink struct {
	logger *slog.Logger
	file   *os.File
	buf    *bufio.Writer
}

func (s *sink) close() {
	if s.buf != nil {
		_ = s.buf.Flush()
	}
	if s.file != nil {
		_ = s.file.Close()
	}
}

var (
	mu          sync.RWMutex
	current     *sink
	levelGetter func() string
)

// SetLogLevelGetter installs the settings lookup consulted when
// PORTABASE_LOG_LEVEL is empty.
func SetLogLevelGetter(getter func() string) {
	mu.Lock()
	defer mu.Unlock()
	levelGetter = getter
}

// Init opens ~/.portabase/logs/portabase.log for appending and stamps every
// record with runID. When the file cannot be opened records go to stderr.
func Init(runID string) error {
	if strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("invalid run ID for logging: %q", runID)
	}

	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		current.close()
	}

	name := os.Getenv(LogLevelEnvVar)
	if name == "" && levelGetter != nil {
		name = levelGetter()
	}
	level, ok := lookupLevel(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "[portabase] Warning: invalid log level %q, defaulting to INFO\n", name)
	}

	s := &sink{}
	var w io.Writer = os.Stderr
	if f, err := openLogFile(); err == nil {
		s.file = f
		s.buf = bufio.NewWriterSize(f, 8192)
		w = s.buf
	}
	s.logger = slog.New(&contextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
	}).With(slog.String("run_id", runID))
	current = s
	return nil
}

func openLogFile() (*os.File, error) {
	appDir, err := paths.EnsureAppDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(appDir, LogsDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // fixed name under the app dir
}

// Close flushes and closes the log file. Safe to call more than once.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		current.close()
		current = nil
	}
}

func logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return slog.Default()
	}
	return current.logger
}

// lookupLevel maps a level name to slog; empty and unknown names are INFO,
// the latter reported as not ok.
func lookupLevel(name string) (slog.Level, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return slog.LevelInfo, true
	}
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn, true
	}
	var l slog.Level
	switch strings.ToUpper(name) {
	case "DEBUG", "INFO", "WARN", "ERROR":
		_ = l.UnmarshalText([]byte(name))
		return l, true
	}
	return slog.LevelInfo, false
}

// contextHandler adds the fields carried by the record's context.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(fieldsFrom(ctx).attrs()...)
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

func Debug(ctx context.Context, msg string, attrs ...any) { emit(ctx, slog.LevelDebug, msg, attrs) }
func Info(ctx context.Context, msg string, attrs ...any)  { emit(ctx, slog.LevelInfo, msg, attrs) }
func Warn(ctx context.Context, msg string, attrs ...any)  { emit(ctx, slog.LevelWarn, msg, attrs) }
func Error(ctx context.Context, msg string, attrs ...any) { emit(ctx, slog.LevelError, msg, attrs) }

// LogDuration logs msg with duration_ms measured from start:
//
//	defer logging.LogDuration(ctx, slog.LevelDebug, "template fetched", time.Now())
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	emit(ctx, level, msg, append([]any{slog.Int64("duration_ms", time.Since(start).Milliseconds())}, attrs...))
}

func emit(ctx context.Context, level slog.Level, msg string, attrs []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger().Log(ctx, level, msg, attrs...)
}
