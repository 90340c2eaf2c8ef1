package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides structured logging capabilities.
// Components depend on this interface, never on a concrete handler.
type Logger interface {
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	// WithFields returns a logger that attaches fields to every entry
	WithFields(fields map[string]interface{}) Logger

	// WithContext returns a logger carrying request scoped values (request id)
	WithContext(ctx context.Context) Logger
}

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error (default info)
	Level string
	// Format is text or json (default text)
	Format string
	// Output defaults to os.Stdout
	Output io.Writer
}

type slogLogger struct {
	l *slog.Logger
}

// NewDefaultLogger creates a text logger at info level on stdout.
func NewDefaultLogger() Logger {
	return NewLogger(LoggerConfig{})
}

// NewJSONLogger creates a JSON logger at info level on stdout.
func NewJSONLogger() Logger {
	return NewLogger(LoggerConfig{Format: "json"})
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() Logger {
	return NewLogger(LoggerConfig{Output: io.Discard})
}

// NewLogger creates a Logger from cfg.
func NewLogger(cfg LoggerConfig) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return &slogLogger{l: slog.New(h)}
}

// ParseLevel maps a level name to a slog level; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s *slogLogger) Error(args ...interface{}) { s.l.Error(fmt.Sprint(args...)) }

func (s *slogLogger) Errorf(format string, args ...interface{}) {
	s.l.Error(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Warn(args ...interface{}) { s.l.Warn(fmt.Sprint(args...)) }

func (s *slogLogger) Warnf(format string, args ...interface{}) {
	s.l.Warn(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Info(args ...interface{}) { s.l.Info(fmt.Sprint(args...)) }

func (s *slogLogger) Infof(format string, args ...interface{}) {
	s.l.Info(fmt.Sprintf(format, args...))
}

func (s *slogLogger) Debug(args ...interface{}) { s.l.Debug(fmt.Sprint(args...)) }

func (s *slogLogger) Debugf(format string, args ...interface{}) {
	s.l.Debug(fmt.Sprintf(format, args...))
}

func (s *slogLogger) WithFields(fields map[string]interface{}) Logger {
	if len(fields) == 0 {
		return s
	}
	attrs := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	return &slogLogger{l: s.l.With(attrs...)}
}

func (s *slogLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return s
	}
	if id := GetRequestID(ctx); id != "" {
		return &slogLogger{l: s.l.With("request_id", id)}
	}
	return s
}
