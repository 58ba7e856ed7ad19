// Package logging adapts zerolog to the apireq.Logger interface.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// Logger writes apireq log entries through a zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

var _ apireq.Logger = (*Logger)(nil)

// New creates a JSON logger writing to w. Entries carry a "role" field and a
// timestamp. Entries below level are dropped.
func New(w io.Writer, role string, level zerolog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}

	zl := zerolog.New(w).Level(level).With().
		Str("role", role).
		Timestamp().
		Logger()

	return &Logger{zl: zl}
}

// NewConsole creates a human readable logger for the command line. Debug
// entries are only written when debug is set.
func NewConsole(w io.Writer, debug bool) *Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).Level(level).With().
		Timestamp().
		Logger()

	return &Logger{zl: zl}
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// Nop returns a Logger that discards all output.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// Zerolog returns the underlying zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Debug implements apireq.Logger.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

// Info implements apireq.Logger.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.zl.Info().Fields(fields).Msg(msg)
}

// Warn implements apireq.Logger.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

// Error implements apireq.Logger. An "error" field holding an error value is
// written with zerolog's error marshaller.
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	event := l.zl.Error()

	if err, ok := fields["error"].(error); ok {
		event = event.Err(err)
		rest := make(map[string]interface{}, len(fields))

		for key, value := range fields {
			if key != "error" {
				rest[key] = value
			}
		}

		fields = rest
	}

	event.Fields(fields).Msg(msg)
}
