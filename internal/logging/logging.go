// Package logging configures the process-wide structured logger. Every line
// is a JSON object with a timestamp, level, message and key/value fields.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a JSON logger writing to w at the given level name
// (debug, info, warn, error).
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// Setup installs a stdout JSON logger as the default, which also routes the
// standard library's log package through it.
func Setup(level string) *slog.Logger {
	logger := New(os.Stdout, level).With("service", "ecommerce-api")
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
