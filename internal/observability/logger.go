// Package observability defines shared logging and metrics primitives.
package observability

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F builds a field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

var defaultLogger Logger = noopLogger{}

// SetLogger overrides the global logger used by the system.
func SetLogger(logger Logger) {
	if logger == nil {
		defaultLogger = noopLogger{}
		return
	}
	defaultLogger = logger
}

// Log returns the current global logger instance.
func Log() Logger {
	return defaultLogger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// StdLogger writes structured lines through a stdlib log.Logger.
type StdLogger struct {
	out   *log.Logger
	debug bool
}

// NewStdLogger constructs a logger with the given prefix writing to stdout.
func NewStdLogger(prefix string, debug bool) *StdLogger {
	return &StdLogger{
		out:   log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds),
		debug: debug,
	}
}

func (l *StdLogger) Debug(msg string, fields ...Field) {
	if l.debug {
		l.write("DEBUG", msg, fields)
	}
}

func (l *StdLogger) Info(msg string, fields ...Field)  { l.write("INFO", msg, fields) }
func (l *StdLogger) Warn(msg string, fields ...Field)  { l.write("WARN", msg, fields) }
func (l *StdLogger) Error(msg string, fields ...Field) { l.write("ERROR", msg, fields) }

func (l *StdLogger) write(level, msg string, fields []Field) {
	if len(fields) == 0 {
		l.out.Printf("%s %s", level, msg)
		return
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}
	l.out.Printf("%s %s %s", level, msg, strings.Join(parts, " "))
}
