package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat falls back to JSON for anything other than "text".
func ParseFormat(raw string) Format {
	if strings.EqualFold(strings.TrimSpace(raw), string(FormatText)) {
		return FormatText
	}
	return FormatJSON
}

func NewJSONLogger(service, level string) *slog.Logger {
	return New(os.Stdout, service, level, FormatJSON)
}

// NewJSONLoggerTo is used by the stdio MCP server, where stdout carries the
// protocol and logs must go elsewhere.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	return New(w, service, level, FormatJSON)
}

func New(w io.Writer, service, level string, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if format == FormatText {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", service)
}

// ForRun scopes a logger to one recall run.
func ForRun(logger *slog.Logger, runID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("run_id", runID)
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
