// Package logger wraps charmbracelet/log behind a small interface so the
// rest of the module never imports a concrete logging library directly.
package logger

import (
	"context"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the logging surface every package in this module depends on.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type charmLogger struct {
	inner *charmlog.Logger
}

// NewLogger builds a Logger from cfg. A nil cfg falls back to DefaultConfig(),
// and IsTestEnvironment() swaps in TestConfig() so tests stay quiet by default.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		if IsTestEnvironment() {
			cfg = TestConfig()
		} else {
			cfg = DefaultConfig()
		}
	}
	out := cfg.Output
	if out == nil {
		out = DefaultConfig().Output
	}
	opts := charmlog.Options{
		ReportCaller:    cfg.AddSource,
		ReportTimestamp: cfg.TimeFormat != "",
		TimeFormat:      cfg.TimeFormat,
	}
	if cfg.JSON {
		opts.Formatter = charmlog.JSONFormatter
	}
	l := charmlog.NewWithOptions(out, opts)
	l.SetLevel(charmlog.Level(cfg.Level.ToCharmlogLevel()))
	return &charmLogger{inner: l}
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.inner.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.inner.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.inner.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.inner.Error(msg, keyvals...) }

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{inner: c.inner.With(keyvals...)}
}

type ctxKey struct{}

// LoggerCtxKey is the context key NewLogger results are stored under.
var LoggerCtxKey = ctxKey{}

// ContextWithLogger returns a new context carrying l.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

var fallback = NewLogger(DefaultConfig())

// FromContext returns the Logger stored in ctx, or a default Logger if none
// was stored (or the stored value isn't a Logger). Never returns nil.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return fallback
	}
	l, ok := ctx.Value(LoggerCtxKey).(Logger)
	if !ok || l == nil {
		return fallback
	}
	return l
}
