package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestCtxLogger records entries in memory so tests can assert on them.
//
//	testLogger := logger.NewTestCtxLogger()
//	l := limiter.NewRedisFixedWindowLimiter(store, policy, limiter.WithLogger(testLogger))
//	assert.True(t, testLogger.HasLog("WARN", "shared store call failed"))
type TestCtxLogger struct {
	logs   *[]LogEntry
	fields []zap.Field
	mu     *sync.RWMutex
}

// LogEntry is one recorded call.
type LogEntry struct {
	Level   string
	Message string
	TraceID string
	Fields  map[string]interface{}
}

// NewTestCtxLogger creates an empty recorder.
func NewTestCtxLogger() *TestCtxLogger {
	logs := make([]LogEntry, 0)
	return &TestCtxLogger{logs: &logs, mu: &sync.RWMutex{}}
}

func (t *TestCtxLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.record(ctx, "INFO", msg, fields)
}

func (t *TestCtxLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.record(ctx, "ERROR", msg, fields)
}

func (t *TestCtxLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.record(ctx, "DEBUG", msg, fields)
}

func (t *TestCtxLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.record(ctx, "WARN", msg, fields)
}

// With returns a recorder sharing storage with t that adds fields to every entry.
func (t *TestCtxLogger) With(fields ...zap.Field) *TestCtxLogger {
	merged := make([]zap.Field, 0, len(t.fields)+len(fields))
	merged = append(merged, t.fields...)
	merged = append(merged, fields...)
	return &TestCtxLogger{logs: t.logs, fields: merged, mu: t.mu}
}

func (t *TestCtxLogger) record(ctx context.Context, level, msg string, fields []zap.Field) {
	all := make([]zap.Field, 0, len(t.fields)+len(fields))
	all = append(all, t.fields...)
	all = append(all, fields...)

	entry := LogEntry{
		Level:   level,
		Message: msg,
		TraceID: extractTraceIDFromContext(ctx, nil),
		Fields:  extractFieldsMap(all),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	*t.logs = append(*t.logs, entry)
}

// HasLog reports whether an entry with level and message exists.
func (t *TestCtxLogger) HasLog(level, message string) bool {
	return t.find(func(e LogEntry) bool { return e.Level == level && e.Message == message })
}

// HasLogWithTraceID also matches the trace id.
func (t *TestCtxLogger) HasLogWithTraceID(level, message, traceID string) bool {
	return t.find(func(e LogEntry) bool {
		return e.Level == level && e.Message == message && e.TraceID == traceID
	})
}

// HasLogWithField also matches one field value.
func (t *TestCtxLogger) HasLogWithField(level, message, fieldKey string, fieldValue interface{}) bool {
	return t.find(func(e LogEntry) bool {
		if e.Level != level || e.Message != message {
			return false
		}
		v, ok := e.Fields[fieldKey]
		return ok && v == fieldValue
	})
}

// CountLogs counts entries of a level.
func (t *TestCtxLogger) CountLogs(level string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, e := range *t.logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Logs returns a copy of every entry.
func (t *TestCtxLogger) Logs() []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]LogEntry, len(*t.logs))
	copy(out, *t.logs)
	return out
}

// Clear drops all entries.
func (t *TestCtxLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	*t.logs = (*t.logs)[:0]
}

func (t *TestCtxLogger) find(match func(LogEntry) bool) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range *t.logs {
		if match(e) {
			return true
		}
	}
	return false
}

func extractFieldsMap(fields []zap.Field) map[string]interface{} {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return enc.Fields
}
