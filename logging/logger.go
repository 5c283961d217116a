// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. StreamLogger is the built-in implementation used by the
// CLI and server; it binds component and run attributes and records run
// outcomes.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var slogLevels = map[LogLevel]slog.Level{
	LogLevelDebug: slog.LevelDebug,
	LogLevelInfo:  slog.LevelInfo,
	LogLevelWarn:  slog.LevelWarn,
	LogLevelError: slog.LevelError,
}

// Slog returns the matching slog level. Unknown values map to info.
func (l LogLevel) Slog() slog.Level {
	if lvl, ok := slogLevels[l]; ok {
		return lvl
	}
	return slog.LevelInfo
}

func (l LogLevel) String() string {
	if lvl, ok := slogLevels[l]; ok {
		return lvl.String()
	}
	return "UNKNOWN"
}

// ParseLevel maps a case-insensitive level name onto a LogLevel. The empty
// string means info.
func ParseLevel(s string) (LogLevel, error) {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "", "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the logging surface every package accepts.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter lets a plain *slog.Logger satisfy Logger.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

// LoggerConfig configures construction of a StreamLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	RunID       string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a JSON, info level configuration writing to stderr.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// StreamLogger is an immutable Logger; the With* methods return derived
// loggers and leave the receiver untouched.
//
// Messages containing a '%' are treated as printf formats for args;
// otherwise args are slog key/value pairs.
type StreamLogger struct {
	base *slog.Logger
}

// NewLogger builds a StreamLogger from cfg (defaults when nil).
func NewLogger(cfg *LoggerConfig) *StreamLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: cfg.Level.Slog(), AddSource: cfg.AddSource}
	var h slog.Handler = slog.NewJSONHandler(out, hopts)
	if cfg.Format == "text" {
		h = slog.NewTextHandler(out, hopts)
	}

	l := &StreamLogger{base: slog.New(h)}
	if cfg.Component != "" {
		l = l.WithComponent(cfg.Component)
	}
	if cfg.RunID != "" {
		l = l.WithRun(cfg.RunID)
	}
	for k, v := range cfg.CustomAttrs {
		l = l.WithContext(k, v)
	}
	return l
}

// NewSlogLogger is shorthand for NewLogger with stderr output.
func NewSlogLogger(level LogLevel, format string, addSource bool) *StreamLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.AddSource = addSource
	if format != "" {
		cfg.Format = format
	}
	return NewLogger(cfg)
}

// WithContext binds an extra attribute.
func (l *StreamLogger) WithContext(key string, value any) *StreamLogger {
	return &StreamLogger{base: l.base.With(slog.Any(key, value))}
}

// WithComponent binds the logical component (run, server, agent, ...).
func (l *StreamLogger) WithComponent(c string) *StreamLogger {
	return &StreamLogger{base: l.base.With(slog.String("component", c))}
}

// WithRun binds a run identifier.
func (l *StreamLogger) WithRun(runID string) *StreamLogger {
	return &StreamLogger{base: l.base.With(slog.String("run_id", runID))}
}

func (l *StreamLogger) emit(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !l.base.Enabled(ctx, level) {
		return
	}
	if len(args) > 0 && strings.Contains(msg, "%") {
		msg, args = fmt.Sprintf(msg, args...), nil
	}
	l.base.Log(ctx, level, msg, args...)
}

func (l *StreamLogger) Debug(msg string, args ...any) { l.emit(slog.LevelDebug, msg, args) }
func (l *StreamLogger) Info(msg string, args ...any)  { l.emit(slog.LevelInfo, msg, args) }
func (l *StreamLogger) Warn(msg string, args ...any)  { l.emit(slog.LevelWarn, msg, args) }
func (l *StreamLogger) Error(msg string, args ...any) { l.emit(slog.LevelError, msg, args) }

// LogRun records the terminal outcome of a run. Failed runs log at warn.
func (l *StreamLogger) LogRun(runID, outcome string, chunks int, dur time.Duration, err error) {
	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("run_id", runID),
		slog.String("outcome", outcome),
		slog.Int("chunk_count", chunks),
		slog.Duration("duration", dur),
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.base.LogAttrs(context.Background(), level, "run finished", attrs...)
}
