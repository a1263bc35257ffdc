// Package logging wraps log/slog with the small surface the rest of the
// application uses: a configured root logger, per-component sub-loggers and
// typed field helpers. Output is JSON in production, text for local runs.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds logger construction options.
type Config struct {
	Level  string // trace|debug|info|warn|error (trace maps to debug-4)
	Format string // "json" or "text"
	Output io.Writer
}

// Field is a typed key/value pair attached to a log line.
type Field = slog.Attr

func String(k, v string) Field              { return slog.String(k, v) }
func Int(k string, v int) Field             { return slog.Int(k, v) }
func Int64(k string, v int64) Field         { return slog.Int64(k, v) }
func Float64(k string, v float64) Field     { return slog.Float64(k, v) }
func Bool(k string, v bool) Field           { return slog.Bool(k, v) }
func Duration(k string, v time.Duration) Field { return slog.Duration(k, v) }
func Any(k string, v any) Field             { return slog.Any(k, v) }

// Err is the conventional field for error values; nil-safe.
func Err(err error) Field {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// AnalysisID tags a line with the analysis run it belongs to. Used across the
// pipeline so one run can be grepped end to end.
func AnalysisID(id int64) Field { return slog.Int64("analysis_id", id) }

// PlaceID tags a line with the candidate place being processed.
func PlaceID(id string) Field { return slog.String("place_id", id) }

// Logger is the root structured logger.
type Logger struct {
	s *slog.Logger
}

// New builds a Logger from config. Unknown levels fall back to info.
func New(cfg Config) *Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stdout
	}

	var lvl slog.Level
	switch strings.ToLower(cfg.Level) {
	case "trace":
		lvl = slog.LevelDebug - 4
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return &Logger{s: slog.New(h)}
}

// NewNop returns a logger that discards everything. For tests.
func NewNop() *Logger {
	return &Logger{s: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithComponent returns a sub-logger tagged with a component name
// ("pipeline", "scorer", "clova", ...).
func (l *Logger) WithComponent(name string) *ComponentLogger {
	return &ComponentLogger{s: l.s.With(slog.String("component", name))}
}

func (l *Logger) Debug(msg string, fields ...Field) { log(l.s, slog.LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { log(l.s, slog.LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { log(l.s, slog.LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { log(l.s, slog.LevelError, msg, fields) }

// ComponentLogger is a Logger bound to one component.
type ComponentLogger struct {
	s *slog.Logger
}

func (c *ComponentLogger) Debug(msg string, fields ...Field) { log(c.s, slog.LevelDebug, msg, fields) }
func (c *ComponentLogger) Info(msg string, fields ...Field)  { log(c.s, slog.LevelInfo, msg, fields) }
func (c *ComponentLogger) Warn(msg string, fields ...Field)  { log(c.s, slog.LevelWarn, msg, fields) }
func (c *ComponentLogger) Error(msg string, fields ...Field) { log(c.s, slog.LevelError, msg, fields) }

// With returns a copy carrying extra permanent fields.
func (c *ComponentLogger) With(fields ...Field) *ComponentLogger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return &ComponentLogger{s: c.s.With(args...)}
}

func log(s *slog.Logger, lvl slog.Level, msg string, fields []Field) {
	s.LogAttrs(context.Background(), lvl, msg, fields...)
}
