package logtrace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestCorrelationIDAttachedFromContext(t *testing.T) {
	logs := newObserved(t)

	ctx := CtxWithCorrelationID(context.Background(), "abc-123")
	Info(ctx, "hello", Fields{FieldMethod: "TestMethod"})

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc-123", fields[FieldCorrelationID])
	assert.Equal(t, "TestMethod", fields[FieldMethod])
}

func TestCorrelationIDDefaultsToUnknown(t *testing.T) {
	logs := newObserved(t)

	Info(context.Background(), "no id", nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "unknown", entries[0].ContextMap()[FieldCorrelationID])
}

func TestErrorAttachesStackTrace(t *testing.T) {
	logs := newObserved(t)

	Error(context.Background(), "boom", Fields{FieldError: "bad"})

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotEmpty(t, fields[FieldStackTrace])
	assert.Equal(t, "bad", fields[FieldError])
}

func TestWithFieldsMergesWithoutMutatingBase(t *testing.T) {
	base := Fields{FieldMethod: "m", FieldStatus: "old"}
	merged := WithFields(base, Fields{FieldStatus: "new", FieldLabel: "l"})

	assert.Equal(t, "old", base[FieldStatus])
	assert.Equal(t, "new", merged[FieldStatus])
	assert.Equal(t, "m", merged[FieldMethod])
	assert.Equal(t, "l", merged[FieldLabel])
}

func TestNewCorrelationIDIsUnique(t *testing.T) {
	assert.NotEqual(t, NewCorrelationID(), NewCorrelationID())
}
