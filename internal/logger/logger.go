// Package logger builds the zerolog logger shared by the service.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// FormatJSON selects one JSON object per line. Any other format writes human readable console
// output.
const FormatJSON = "json"

// New returns a logger writing to stderr with the given level name and format. An unknown
// level falls back to info.
func New(level string, format string) zerolog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format != FormatJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
