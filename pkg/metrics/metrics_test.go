package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordToolCall("search_events", true, time.Second)
		m.RecordError(-32005, "execution")
		m.RecordRetry("lookup")
		m.RecordTimeout("lookup")
		m.SetCircuitBreakerState("search", 1)
		m.SetDependencyHealth("search", false)
		m.SetFeatureAvailable("event_search", true)
		m.RecordHealthCheck("search", time.Millisecond)
		m.RecordThresholdExceeded("-32005_execution")
	})
}

func TestRecordToolCall(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordToolCall("search_events", true, 10*time.Millisecond)
	m.RecordToolCall("search_events", true, 20*time.Millisecond)
	m.RecordToolCall("search_events", false, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("search_events", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("search_events", "error")))
}

func TestGauges(t *testing.T) {
	m := New(DefaultConfig())

	m.SetCircuitBreakerState("search", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("search")))

	m.SetDependencyHealth("search", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DependencyUp.WithLabelValues("search")))
	m.SetDependencyHealth("search", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DependencyUp.WithLabelValues("search")))

	m.SetFeatureAvailable("event_search", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeatureAvailable.WithLabelValues("event_search")))
}

func TestRecordError(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordError(-32005, "execution")
	m.RecordError(-32005, "execution")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("-32005", "execution")))
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration
	assert.NotPanics(t, func() {
		_ = New(DefaultConfig())
		_ = New(DefaultConfig())
	})
}
