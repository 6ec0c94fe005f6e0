package logger

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level       string // debug, info, warn, error
	ServiceName string
	Development bool
	OutputPaths []string
}

// Logger wraps zap.Logger with service metadata and context helpers
type Logger struct {
	*zap.Logger
	serviceName string
}

var (
	global   *Logger
	globalMu sync.RWMutex
)

// New builds a logger from config
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = &Config{Level: "info"}
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level, cfg.Development))
	if len(cfg.OutputPaths) > 0 {
		zcfg.OutputPaths = cfg.OutputPaths
	}

	zl, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	if cfg.ServiceName != "" {
		zl = zl.With(zap.String("service", cfg.ServiceName))
	}

	return &Logger{Logger: zl, serviceName: cfg.ServiceName}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Init initializes the global logger
func Init(cfg *Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	globalMu.Lock()
	global = l
	globalMu.Unlock()
	return nil
}

// Get returns the global logger, falling back to a production logger if Init was never called
func Get() *Logger {
	globalMu.RLock()
	l := global
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		zl, err := zap.NewProduction()
		if err != nil {
			global = NewNop()
		} else {
			global = &Logger{Logger: zl}
		}
	}
	return global
}

// Sync flushes the global logger
func Sync() error {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global == nil {
		return nil
	}
	return global.Logger.Sync()
}

// With returns a child logger carrying the given fields
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...), serviceName: l.serviceName}
}

// Named returns a child logger for a component
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name), serviceName: l.serviceName}
}

// InfoContext logs at info level with the trace id of ctx attached
func (l *Logger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.Logger.Info(msg, appendTrace(ctx, fields)...)
}

// WarnContext logs at warn level with the trace id of ctx attached
func (l *Logger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, appendTrace(ctx, fields)...)
}

// ErrorContext logs at error level with the trace id of ctx attached
func (l *Logger) ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.Logger.Error(msg, appendTrace(ctx, fields)...)
}

func appendTrace(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return fields
	}
	return append(fields, zap.String("trace_id", sc.TraceID().String()))
}

func parseLevel(level string, development bool) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	if development {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
