package zaplog

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger exposes a zap logger through the glog contracts the credential
// manager and gateway log with. Variadic args are read as key/value pairs.
type Logger struct {
	base *zap.Logger
}

func New(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{base: base}
}

// NewProduction builds a JSON logger at the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func NewProduction(level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	parsed, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	base, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("zaplog: build logger: %w", err)
	}
	return New(base), nil
}

func (l *Logger) Zap() *zap.Logger { return l.base }

func (l *Logger) Sync() error { return l.base.Sync() }

func (l *Logger) Trace(msg string, args ...any) { l.base.Debug(msg, fields(args)...) }

func (l *Logger) Debug(msg string, args ...any) { l.base.Debug(msg, fields(args)...) }

func (l *Logger) Info(msg string, args ...any) { l.base.Info(msg, fields(args)...) }

func (l *Logger) Warn(msg string, args ...any) { l.base.Warn(msg, fields(args)...) }

func (l *Logger) Error(msg string, args ...any) { l.base.Error(msg, fields(args)...) }

func (l *Logger) Fatal(msg string, args ...any) { l.base.Fatal(msg, fields(args)...) }

func (l *Logger) WithContext(context.Context) glog.Logger { return l }

func (l *Logger) WithFields(values map[string]any) glog.Logger {
	if len(values) == 0 {
		return l
	}
	out := make([]zap.Field, 0, len(values))
	for key, value := range values {
		out = append(out, zap.Any(key, value))
	}
	return &Logger{base: l.base.With(out...)}
}

func fields(args []any) []zap.Field {
	if len(args) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if err, ok := args[i].(error); ok {
			out = append(out, zap.Error(err))
			i--
			continue
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 >= len(args) {
			out = append(out, zap.Any("extra", key))
			break
		}
		out = append(out, zap.Any(key, args[i+1]))
	}
	return out
}

// Provider hands out named children of one root logger.
type Provider struct {
	root *Logger
}

func NewProvider(root *Logger) *Provider {
	if root == nil {
		root = New(nil)
	}
	return &Provider{root: root}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return p.root
	}
	return &Logger{base: p.root.base.Named(name)}
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
