package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SetupLogger builds the process logger and installs it as the slog default.
// Unknown levels fall back to info, unknown formats to text.
func SetupLogger(level, format, app string) *slog.Logger {
	return New(os.Stdout, level, format, app)
}

func New(w io.Writer, level, format, app string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	log := slog.New(handler).With(slog.String("app", app))
	slog.SetDefault(log)
	return log
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
