// Package logger builds the zerolog loggers shared by all services.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a logger for the named service. Format "pretty" selects the
// human-readable console writer, anything else emits JSON lines.
func New(service, level, format string) *zerolog.Logger {
	var w io.Writer = os.Stderr
	if format == "pretty" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return NewWithOutput(service, level, w)
}

// NewWithOutput creates a logger writing to w.
func NewWithOutput(service, level string, w io.Writer) *zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	return &logger
}
