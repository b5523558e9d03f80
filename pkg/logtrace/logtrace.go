// Package logtrace provides structured, correlation-aware logging on top of
// zap. Every log call takes a context; a correlation id stashed in the
// context is attached to each line so one publish flow can be traced across
// packages.
package logtrace

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

var logger = zap.NewNop()

// Setup initializes the process-wide logger. service names the emitting
// binary; debugMode lowers the level floor to Debug.
func Setup(service string, debugMode bool) {
	level := zapcore.InfoLevel
	if debugMode {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		level,
	)
	logger = zap.New(core).With(zap.String("service", service))
}

// SetLogger swaps the backing logger. Tests use this to capture output.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// CtxWithCorrelationID returns a child context carrying the given id.
func CtxWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// NewCorrelationID mints a fresh correlation id.
func NewCorrelationID() string {
	return uuid.NewString()
}

func extractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown"
}

func emit(level zapcore.Level, ctx context.Context, msg string, fields Fields) {
	entry := logger.Check(level, msg)
	if entry == nil {
		return
	}

	zapFields := make([]zap.Field, 0, len(fields)+1)
	zapFields = append(zapFields, zap.String(FieldCorrelationID, extractCorrelationID(ctx)))
	for key, value := range fields {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	entry.Write(zapFields...)
}

func Debug(ctx context.Context, msg string, fields Fields) {
	emit(zapcore.DebugLevel, ctx, msg, fields)
}

func Info(ctx context.Context, msg string, fields Fields) {
	emit(zapcore.InfoLevel, ctx, msg, fields)
}

func Warn(ctx context.Context, msg string, fields Fields) {
	emit(zapcore.WarnLevel, ctx, msg, fields)
}

func Error(ctx context.Context, msg string, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	if _, ok := fields[FieldStackTrace]; !ok {
		fields = WithFields(fields, Fields{FieldStackTrace: string(debug.Stack())})
	}
	emit(zapcore.ErrorLevel, ctx, msg, fields)
}

// Fatal logs at error level and exits. Reserved for unrecoverable startup
// failures in main.
func Fatal(ctx context.Context, msg string, fields Fields) {
	emit(zapcore.FatalLevel, ctx, msg, fields)
	_ = logger.Sync()
	os.Exit(1)
}
