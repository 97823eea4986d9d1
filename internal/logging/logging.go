// Package logging builds the process-wide zerolog.Logger used by every
// component. Unlike a package-level global, the logger is constructed once
// in cmd/radio and passed explicitly to constructors.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the logger's level and output format.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human-readable console writer instead of JSON
}

// New builds a zerolog.Logger writing to stdout.
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component derives a child logger tagged with a component name, the
// convention used throughout internal/* constructors.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
