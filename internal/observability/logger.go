// internal/observability/logger.go
package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// SLogger is a wrapper for a zap sugared logger with OpenTelemetry integration
type SLogger struct {
	*zap.SugaredLogger
}

const (
	traceIDKey = "trace_id"
	spanIDKey  = "span_id"
)

// NewLogger constructs a new sugared logger with OpenTelemetry integration
func NewLogger(level zapcore.Level, options ...zap.Option) (*SLogger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	baseLogger, err := config.Build(options...)
	if err != nil {
		return nil, err
	}

	logger := wrapLogger(baseLogger)
	logger.Debugw("logger initialized", "level", config.Level.String())

	return logger, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *SLogger {
	return wrapLogger(zap.NewNop())
}

// NewTestLogger creates a logger for testing
func NewTestLogger() (*SLogger, *observer.ObservedLogs, error) {
	core, observedLogs := observer.New(zapcore.DebugLevel)
	observedOpt := zap.WrapCore(func(zapcore.Core) zapcore.Core {
		return core
	})

	baseLogger, err := zap.NewDevelopment(observedOpt)
	if err != nil {
		return nil, nil, err
	}

	return wrapLogger(baseLogger), observedLogs, nil
}

func wrapLogger(logger *zap.Logger) *SLogger {
	return &SLogger{logger.Sugar()}
}

// Named returns a child logger with the given name segment appended.
func (l *SLogger) Named(name string) *SLogger {
	return &SLogger{l.SugaredLogger.Named(name)}
}

// With returns a child logger carrying the given key-value pairs.
func (l *SLogger) With(keysAndValues ...interface{}) *SLogger {
	return &SLogger{l.SugaredLogger.With(keysAndValues...)}
}

// getTraceInfo gets the trace and span metadata from context
func getTraceInfo(ctx context.Context) (trace.TraceID, trace.SpanID, bool) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return trace.TraceID{}, trace.SpanID{}, false
	}

	return span.SpanContext().TraceID(), span.SpanContext().SpanID(), true
}

// traceKeyValues prepends trace and span identifiers when ctx carries a valid span.
func traceKeyValues(ctx context.Context, keysAndValues []interface{}) []interface{} {
	traceID, spanID, ok := getTraceInfo(ctx)
	if !ok {
		return keysAndValues
	}
	out := make([]interface{}, 0, len(keysAndValues)+4)
	out = append(out, traceIDKey, traceID.String(), spanIDKey, spanID.String())
	return append(out, keysAndValues...)
}

// LogWithContext logs a message with trace context at the specified level
func (l *SLogger) LogWithContext(ctx context.Context, level zapcore.Level, msg string, fields ...zap.Field) {
	keyValues := make([]interface{}, 0, len(fields))
	for _, field := range fields {
		keyValues = append(keyValues, field)
	}
	keyValues = traceKeyValues(ctx, keyValues)

	switch level {
	case zapcore.DebugLevel:
		l.Debugw(msg, keyValues...)
	case zapcore.WarnLevel:
		l.Warnw(msg, keyValues...)
	case zapcore.ErrorLevel:
		l.Errorw(msg, keyValues...)
	default:
		l.Infow(msg, keyValues...)
	}
}

// DebugCtx logs a debug message with trace context
func (l *SLogger) DebugCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, traceKeyValues(ctx, keysAndValues)...)
}

// InfoCtx logs a message with trace context
func (l *SLogger) InfoCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Infow(msg, traceKeyValues(ctx, keysAndValues)...)
}

// WarnCtx logs a warning with trace context
func (l *SLogger) WarnCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.Warnw(msg, traceKeyValues(ctx, keysAndValues)...)
}

// ErrorCtx logs an error with trace context
func (l *SLogger) ErrorCtx(ctx context.Context, err error, keysAndValues ...interface{}) {
	l.Errorw(err.Error(), traceKeyValues(ctx, keysAndValues)...)
}

// GetTraceID returns the trace ID from context
func GetTraceID(ctx context.Context) (string, bool) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return "", false
	}
	return span.SpanContext().TraceID().String(), true
}
