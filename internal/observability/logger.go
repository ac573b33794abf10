// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability provides structured logging and Prometheus metrics.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-digest/pkg/types"
)

// NewLogger creates a zerolog logger from the logging configuration.
// Unknown levels fall back to info and unknown formats to JSON.
func NewLogger(cfg types.LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stderr
	if strings.ToLower(cfg.Output) == "stdout" {
		out = os.Stdout
	}
	return newLogger(out, cfg)
}

func newLogger(out io.Writer, cfg types.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		With().Timestamp().Logger().
		Level(ParseLevel(cfg.Level))
}

// ParseLevel converts a level name to zerolog.Level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithTask adds the task name to a logger.
func WithTask(logger zerolog.Logger, task string) zerolog.Logger {
	return logger.With().Str("task", task).Logger()
}

// WithSource adds source identification fields to a logger.
func WithSource(logger zerolog.Logger, name, kind string) zerolog.Logger {
	return logger.With().
		Str("source", name).
		Str("kind", kind).
		Logger()
}
