package app

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

// NewLogger creates a structured logger with an explicit log level.
// JSON by default; pretty selects the human-readable console handler.
func NewLogger(level string, pretty bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	var h slog.Handler
	if pretty {
		h = newPrettyHandler(os.Stdout, opts, true)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(h)
	slog.SetDefault(log)
	return log
}

func parseLogLevel(level string) slog.Level {
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
