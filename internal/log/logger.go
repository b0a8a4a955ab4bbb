// Package log builds the slog loggers handed to every component. There is no
// process-wide logger: each component receives its logger explicitly.
package log

import (
	"io"
	"log/slog"
	"strings"
)

// New creates a logger writing to w. Level is one of DEBUG, INFO, WARN,
// ERROR (case-insensitive, invalid values fall back to INFO); format is
// "json" or "text".
func New(w io.Writer, level, format string) *slog.Logger {
	var l slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: l}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// WithComponent returns logger with the component field set.
func WithComponent(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String("component", name))
}

// WithJob returns logger with the job_id field set.
func WithJob(logger *slog.Logger, id string) *slog.Logger {
	return logger.With(slog.String("job_id", id))
}
