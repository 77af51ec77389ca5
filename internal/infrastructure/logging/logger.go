package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/dbconduit/internal/infrastructure/config"
)

// Logger is the slog-backed logger handed to the transport, auth, conn
// and pool layers. It satisfies each layer's narrowed logging interface
// directly, so one configured instance serves the whole stack.
//
// Safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging block of the configuration.
//
// Format selects the handler (json unless "text" is asked for), Level
// filters entries, and Output picks stdout or stderr. Every entry is
// stamped with the service name and the supplied version.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "dbconduit"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel maps a configured level name to slog.Level. Unknown names
// fall back to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a Logger that stamps the given key-value pairs on every
// entry. Used to scope a component:
//
//	sweeper := logger.With("component", "pool", "task", "sweep")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default is the logger for the window before configuration is loaded:
// JSON to stdout at info level, version "dev". Replace it with New once
// config.Load has run.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
