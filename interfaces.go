package msredis

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Logger interface for custom logging implementations
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// MetricsCollector interface for metrics collection
type MetricsCollector interface {
	// RecordCommandProcessed records a processed command with its duration
	RecordCommandProcessed(cmd string, duration time.Duration)

	// RecordError records an error reply, keyed by its error code
	RecordError(errorType string)

	// RecordKeyCount records the current number of keys
	RecordKeyCount(count int64)

	// RecordMemoryUsage records current memory usage
	RecordMemoryUsage(bytes int64)

	// RecordEviction records a key removed to honour the memory limit
	RecordEviction()
}

// defaultLogger writes Info and Error through the standard log package.
// Debug output is dropped unless debug is set.
type defaultLogger struct {
	debug bool
}

func (l *defaultLogger) Debug(msg string, fields ...Field) {
	if l.debug {
		l.output("DEBUG", msg, fields)
	}
}

func (l *defaultLogger) Info(msg string, fields ...Field) {
	l.output("INFO", msg, fields)
}

func (l *defaultLogger) Error(msg string, fields ...Field) {
	l.output("ERROR", msg, fields)
}

func (l *defaultLogger) output(level, msg string, fields []Field) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(": ")
	b.WriteString(msg)
	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(formatValue(f.Value))
	}
	log.Println(b.String())
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	default:
		return fmt.Sprint(val)
	}
}

// nopLogger discards everything
type nopLogger struct{}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}

// NopLogger returns a Logger that discards all messages
func NopLogger() Logger {
	return nopLogger{}
}
