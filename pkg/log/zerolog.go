package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/enettune/pkg/errors"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

func (l *ZerologLogger) Debug(msg string, fields ...any) { l.emit(l.zl.Debug(), msg, fields) }
func (l *ZerologLogger) Info(msg string, fields ...any)  { l.emit(l.zl.Info(), msg, fields) }
func (l *ZerologLogger) Warn(msg string, fields ...any)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *ZerologLogger) Error(msg string, fields ...any) { l.emit(l.zl.Error(), msg, fields) }

// With returns a child logger carrying fields on every record.
func (l *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{zl: l.zl.With().Fields(normalizeFields(fields)).Logger()}
}

// Enabled reports whether records at level pass the zerolog level filter.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

func (l *ZerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e = e.Err(err)
			fields = fields[1:]
		}
	}
	e.Fields(normalizeFields(fields)).Msg(msg)
}

// normalizeFields turns key/value pairs into a zerolog field slice; errors
// become their message and a dangling key gets a nil value.
func normalizeFields(fields []any) []interface{} {
	out := make([]interface{}, 0, len(fields)+len(fields)%2)
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		var value interface{}
		if i+1 < len(fields) {
			value = fields[i+1]
		}
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		out = append(out, key, value)
	}
	return out
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ZerologProvider hands out zerolog-backed loggers sharing one writer.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// ProviderOption configures a ZerologProvider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	out     io.Writer
	console bool
}

// WithOutput sets the destination writer (default os.Stderr).
func WithOutput(w io.Writer) ProviderOption {
	return func(c *providerConfig) { c.out = w }
}

// WithConsole switches to zerolog's human-readable console writer.
func WithConsole(console bool) ProviderOption {
	return func(c *providerConfig) { c.console = console }
}

// NewZerologProvider creates a provider at the given minimum level.
func NewZerologProvider(level Level, opts ...ProviderOption) *ZerologProvider {
	cfg := providerConfig{out: os.Stderr}
	for _, opt := range opts {
		opt(&cfg)
	}
	out := cfg.out
	if cfg.console {
		out = zerolog.ConsoleWriter{Out: cfg.out, NoColor: true}
	}
	base := zerolog.New(out).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &ZerologProvider{base: base}
}

// GetLogger implements LoggerProvider.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewZerologLogger(p.base)
}

// GetLoggerWithName implements LoggerProvider.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewZerologLogger(p.base.With().Str(ComponentKey, name).Logger())
}

// SetLevel implements LoggerProvider. Loggers already handed out keep their level.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

// InstallWarningHook routes errors.Warn through this provider. Warnings that
// implement zerolog.LogObjectMarshaler keep their structured fields.
func (p *ZerologProvider) InstallWarningHook() {
	p.mu.RLock()
	zl := p.base.With().Str(ComponentKey, "warnings").Logger()
	p.mu.RUnlock()

	errors.SetZerologWarnFunc(func(w error) {
		e := zl.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			e = e.EmbedObject(m)
		}
		e.Msg(w.Error())
	})
}
