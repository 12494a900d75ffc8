// Package logging provides the mapper's three severity-tiered log streams:
// ops (actionable warnings, errors, data loss), diag (day-to-day frame
// diagnostics), and trace (high-frequency per-point/per-residual detail).
// Each stream is independently silence-able by passing a nil io.Writer, the
// same convention the teacher pipeline's debug.go uses for its own
// ops/diag/trace loggers.
package logging

import (
	"io"
	"log"
)

// Logger bundles the three streams behind a small value type so callers
// don't need package-level globals; a Mapper owns one Logger and is its
// only user (its collaborators do not log).
type Logger struct {
	ops   *log.Logger
	diag  *log.Logger
	trace *log.Logger
}

// New builds a Logger from three writers, any of which may be nil to
// disable that stream.
func New(ops, diag, trace io.Writer) *Logger {
	return &Logger{
		ops:   newLogger("[mapper] ", ops),
		diag:  newLogger("[mapper] ", diag),
		trace: newLogger("[mapper] ", trace),
	}
}

// Discard returns a Logger with every stream disabled.
func Discard() *Logger {
	return New(nil, nil, nil)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs an actionable warning or error: time desync, insufficient map,
// I/O failure.
func (l *Logger) Opsf(format string, args ...interface{}) {
	if l != nil && l.ops != nil {
		l.ops.Printf(format, args...)
	}
}

// Diagf logs day-to-day per-frame bookkeeping.
func (l *Logger) Diagf(format string, args ...interface{}) {
	if l != nil && l.diag != nil {
		l.diag.Printf(format, args...)
	}
}

// Tracef logs high-frequency per-point/per-residual detail.
func (l *Logger) Tracef(format string, args ...interface{}) {
	if l != nil && l.trace != nil {
		l.trace.Printf(format, args...)
	}
}
