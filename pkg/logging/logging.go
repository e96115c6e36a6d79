// Package logging builds the process logger from the logging config section.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"pulsegate/pkg/config"
)

// New creates a logger writing to w. format can be "json" or "text"
// (default is text).
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		// Source location only helps when debugging
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// FromConfig creates a stderr logger for cfg and installs it as the default.
func FromConfig(cfg config.LoggingConfig) *slog.Logger {
	l := New(os.Stderr, ParseLevel(cfg.Level), cfg.Format)
	slog.SetDefault(l)
	return l
}

// ParseLevel converts a string log level to slog.Level.
// Valid values: "debug", "info", "warn", "error".
// Returns slog.LevelInfo for invalid values.
func ParseLevel(level string) slog.Level {
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
