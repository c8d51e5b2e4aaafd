// Package logging wires the engine's structured diagnostics. The engine
// never writes to stdout/stderr directly (that belongs to the excluded
// CLI collaborator). The write lock is the component that logs: it takes
// a zerolog.Logger, passed in through service.WithLogger (a zero value
// discards everything), and a caller embedding the engine — e.g. a
// long-running daemon — can point it at a rotating file sink.
package logging

import (
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingWriter returns an io.Writer that rotates the engine's log file,
// mirroring BeadsLog's use of natefinch/lumberjack for daemon logs.
func RotatingWriter(path string, maxSizeMB, maxBackups, maxAgeDays int) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}

// New builds a zerolog.Logger writing JSON lines to w, tagged with the
// given component name so multi-component logs can be filtered.
func New(w io.Writer, component string) zerolog.Logger {
	if w == nil {
		return zerolog.Nop()
	}
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}

// Disabled returns a logger that discards everything, used as the
// default when a caller does not configure logging.
func Disabled() zerolog.Logger {
	return zerolog.Nop()
}
