// Package logging provides the structured logging contract used across
// genqueue. Components depend on the Logger interface only; the zap-backed
// implementation lives alongside so binaries can opt into it while tests
// and embedders stay with the no-op logger.
package logging

// Logger is the structured logging interface used by all genqueue
// components. Implementations must be safe for concurrent use.
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)

	// With returns a child logger that includes the given fields on
	// every message.
	With(fields ...Field) Logger
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}
