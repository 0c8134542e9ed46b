package runtime

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the shared JSON logger. LOG_LEVEL (debug|info|warn|error)
// controls verbosity; anything unrecognized falls back to info.
func NewLogger(service string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	return slog.New(h).With("service", service)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
