// Package logger provides the process-wide structured logger for feed-hub.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

var Logger *slog.Logger

// Init initializes the logger with a JSON handler on stdout. The level is
// taken from LOG_LEVEL.
func Init() {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	Logger = slog.New(handler).With("service", "feed-hub")
}

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
