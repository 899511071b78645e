package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCapturedLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	logger, err := NewLogger(&Config{
		Level:       "debug",
		Format:      "json",
		Output:      "stderr",
		ServiceName: "intel-gateway",
		Version:     "test",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	return logger, &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestNewLogger_RejectsInvalidConfig(t *testing.T) {
	_, err := NewLogger(&Config{Level: "loud", Format: "json", Output: "stderr"})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = NewLogger(&Config{Level: "info", Format: "yaml", Output: "stderr"})
	assert.ErrorContains(t, err, "unsupported log format")
}

func TestLogger_KeyValuePairs(t *testing.T) {
	logger, buf := newCapturedLogger(t)

	logger.Info("Circuit breaker state changed", "service", "search", "from", "CLOSED", "to", "OPEN")

	entry := lastEntry(t, buf)
	assert.Equal(t, "Circuit breaker state changed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "search", entry["service"])
	assert.Equal(t, "CLOSED", entry["from"])
	assert.Equal(t, "OPEN", entry["to"])
	assert.Equal(t, "test", entry["version"])
}

func TestLogger_WithContext(t *testing.T) {
	logger, buf := newCapturedLogger(t)

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithToolName(ctx, "search_events")

	logger.WithContext(ctx).Info("handling call")

	entry := lastEntry(t, buf)
	assert.Equal(t, "corr-1", entry["correlation_id"])
	assert.Equal(t, "search_events", entry["tool_name"])
	assert.Equal(t, "intel-gateway", entry["service"])
}

func TestLogger_LogToolCall(t *testing.T) {
	logger, buf := newCapturedLogger(t)

	logger.LogToolCall(context.Background(), "lookup_reputation", false, 120*time.Millisecond, nil)

	entry := lastEntry(t, buf)
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "tool_call", entry["event"])
	assert.Equal(t, "lookup_reputation", entry["tool_name"])
	assert.Equal(t, false, entry["success"])
	assert.Equal(t, float64(120), entry["duration_ms"])
}

func TestNewCorrelationID(t *testing.T) {
	a := NewCorrelationID()
	b := NewCorrelationID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, GetCorrelationID(WithCorrelationID(context.Background(), a)))
}

func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetGlobalLogger(original)

	require.NotNil(t, original)

	replacement, _ := newCapturedLogger(t)
	SetGlobalLogger(replacement)
	assert.Same(t, replacement, GetLogger())
}
