// Package logger defines the minimal structured-logging surface used by the
// permission engine, plus adapters over phuslu-style log and slog.
package logger

// Logger accepts alternating key/value pairs after the message.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation ID per request/log line. Implementations
// must be cheap and safe for concurrent calls.
type TraceIDFunc func() string
