// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the structured logger shared by formflow stages.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so stages depend on this package rather
// than on the logging module directly.
type Logger = zerolog.Logger

// Format selects the log encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// New returns a logger writing to w at the named level ("debug", "info",
// "warn", "error"). An empty level means info.
func New(w io.Writer, level string, format Format) (Logger, error) {
	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return Logger{}, fmt.Errorf("parsing log level %q: %w", level, err)
		}
		lvl = parsed
	}

	switch format {
	case "", FormatJSON:
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return Logger{}, fmt.Errorf("unknown log format %q (want json or console)", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

// OrDiscard returns *l, or a discarding logger when l is nil.
func OrDiscard(l *Logger) Logger {
	if l == nil {
		return Discard()
	}
	return *l
}
