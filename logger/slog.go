package logger

import (
	"context"
	"fmt"
	"log/slog"
)

// SLogLogger adapts a *slog.Logger to the Logger interface, for applications
// that already route everything through the standard structured logger.
type SLogLogger struct {
	l *slog.Logger
}

// NewSLogLogger wraps l; a nil l falls back to slog.Default().
func NewSLogLogger(l *slog.Logger) *SLogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SLogLogger{l: l}
}

func (s *SLogLogger) Debug(msg string, keyvals ...any) {
	s.log(slog.LevelDebug, msg, keyvals...)
}

func (s *SLogLogger) Info(msg string, keyvals ...any) {
	s.log(slog.LevelInfo, msg, keyvals...)
}

func (s *SLogLogger) Error(msg string, keyvals ...any) {
	s.log(slog.LevelError, msg, keyvals...)
}

// log pairs up keyvals into attrs; a trailing unpaired key is dropped.
func (s *SLogLogger) log(level slog.Level, msg string, keyvals ...any) {
	attrs := make([]slog.Attr, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals)-1; i += 2 {
		attrs = append(attrs, slogAttr(keyvals[i], keyvals[i+1]))
	}
	s.l.LogAttrs(context.Background(), level, msg, attrs...)
}

func slogAttr(k, v any) slog.Attr {
	key, ok := k.(string)
	if !ok {
		key = fmt.Sprint(k)
	}
	switch val := v.(type) {
	case string:
		return slog.String(key, val)
	case bool:
		return slog.Bool(key, val)
	case int:
		return slog.Int(key, val)
	case int64:
		return slog.Int64(key, val)
	default:
		return slog.Any(key, val)
	}
}
