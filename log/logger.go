package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Logger is the cdist CLI's LibraryLogger implementation. It wraps a
// log/slog.Logger with either a colorized terminal handler (tint) or a JSON
// handler, selected by Options.JSON.
type Logger struct {
	slog *slog.Logger
}

// Options configures a Logger.
type Options struct {
	// Debug raises the level to slog.LevelDebug; otherwise slog.LevelInfo.
	Debug bool

	// JSON selects the JSON handler instead of the colorized tint handler.
	// Used for machine-consumed log output (e.g. piped to a log collector).
	JSON bool

	// Writer is where log lines are written. Defaults to os.Stderr.
	Writer io.Writer
}

// New builds a Logger from Options.
func New(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}

	return &Logger{slog: slog.New(handler)}
}

// WithHost returns a LibraryLogger that annotates every record with the
// target host, for use by a single host-context's run. Implements
// HostScoped so callers holding only a LibraryLogger can still opt in.
func (l *Logger) WithHost(host string) LibraryLogger {
	return &Logger{slog: l.slog.With("host", host)}
}

func (l *Logger) Info(format string, args ...any) {
	l.slog.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	l.slog.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.slog.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.slog.Error(fmt.Sprintf(format, args...))
}

var _ LibraryLogger = (*Logger)(nil)
