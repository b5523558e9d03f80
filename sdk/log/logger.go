// Package log defines the logging contract consumed by the SDK. Library
// code takes a Logger rather than constructing one, so embedders can route
// SDK output into whatever stack they already run.
package log

import (
	"context"

	"go.uber.org/zap"
)

// Logger is a leveled, context-aware structured logger. keysAndValues are
// alternating key/value pairs.
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...interface{})
	Info(ctx context.Context, msg string, keysAndValues ...interface{})
	Warn(ctx context.Context, msg string, keysAndValues ...interface{})
	Error(ctx context.Context, msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

// NewNoopLogger returns a logger that discards everything.
func NewNoopLogger() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(context.Context, string, ...interface{}) {}
func (noopLogger) Info(context.Context, string, ...interface{})  {}
func (noopLogger) Warn(context.Context, string, ...interface{})  {}
func (noopLogger) Error(context.Context, string, ...interface{}) {}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger to the SDK contract.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		return NewNoopLogger()
	}
	return &zapLogger{sugar: l.Sugar()}
}

// NewDefaultLogger builds a production zap logger adapted to the SDK
// contract. Intended for quick starts and examples.
func NewDefaultLogger() Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return NewNoopLogger()
	}
	return &zapLogger{sugar: l.Sugar()}
}

func (z *zapLogger) Debug(_ context.Context, msg string, keysAndValues ...interface{}) {
	z.sugar.Debugw(msg, keysAndValues...)
}

func (z *zapLogger) Info(_ context.Context, msg string, keysAndValues ...interface{}) {
	z.sugar.Infow(msg, keysAndValues...)
}

func (z *zapLogger) Warn(_ context.Context, msg string, keysAndValues ...interface{}) {
	z.sugar.Warnw(msg, keysAndValues...)
}

func (z *zapLogger) Error(_ context.Context, msg string, keysAndValues ...interface{}) {
	z.sugar.Errorw(msg, keysAndValues...)
}
