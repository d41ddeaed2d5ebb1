// Package logging builds the process logger from the log config section.
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"

	"catmate-tracker/config"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a zerolog logger writing to w, as JSON lines or, when
// cfg.Console is set, in the human readable console format.
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	lvl := ParseLevel(cfg.Level, zerolog.InfoLevel)
	if cfg.Console {
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
		return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, falling back to def.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
