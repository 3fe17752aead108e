package logging

// NoopLogger discards all log messages. Useful for tests or when logging
// is not desired.
type NoopLogger struct{}

var _ Logger = (*NoopLogger)(nil)

// NewNoop creates a new NoopLogger
func NewNoop() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(msg string, fields ...Field) {}
func (l *NoopLogger) Info(msg string, fields ...Field)  {}
func (l *NoopLogger) Warn(msg string, fields ...Field)  {}
func (l *NoopLogger) Error(msg string, fields ...Field) {}

func (l *NoopLogger) With(fields ...Field) Logger { return l }
