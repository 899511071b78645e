package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Tool metrics
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	// Resilience metrics
	CircuitBreakerState *prometheus.GaugeVec
	RetryAttemptsTotal  *prometheus.CounterVec
	TimeoutsTotal       *prometheus.CounterVec

	// Dependency metrics
	DependencyUp        *prometheus.GaugeVec
	FeatureAvailable    *prometheus.GaugeVec
	HealthCheckDuration *prometheus.HistogramVec

	// Error metrics
	ErrorsTotal            *prometheus.CounterVec
	ErrorThresholdExceeded *prometheus.CounterVec

	registry *prometheus.Registry
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "intel_gateway",
		Enabled:   true,
	}
}

// New creates and registers all gateway metrics
func New(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	registry := prometheus.NewRegistry()
	factory := newRegistryFactory(registry)

	m := &Metrics{
		registry: registry,
		ToolCallsTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls by tool and outcome",
		}, []string{"tool", "outcome"}),
		ToolCallDuration: factory.histogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool"}),
		CircuitBreakerState: factory.gaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per service (0=closed, 1=open, 2=half-open)",
		}, []string{"service"}),
		RetryAttemptsTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "retry_attempts_total",
			Help:      "Total retry attempts by operation",
		}, []string{"operation"}),
		TimeoutsTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "timeouts_total",
			Help:      "Total operation timeouts by operation",
		}, []string{"operation"}),
		DependencyUp: factory.gaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "dependency_up",
			Help:      "Dependency health (1=healthy, 0=unhealthy)",
		}, []string{"dependency"}),
		FeatureAvailable: factory.gaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "feature_available",
			Help:      "Feature availability (1=available, 0=unavailable)",
		}, []string{"feature"}),
		HealthCheckDuration: factory.histogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "health_check_duration_seconds",
			Help:      "Dependency health check duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"dependency"}),
		ErrorsTotal: factory.counterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "errors_total",
			Help:      "Total structured errors by code and type",
		}, []string{"code", "type"}),
		ErrorThresholdExceeded: factory.counterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "error_threshold_exceeded_total",
			Help:      "Times an error pattern exceeded the aggregation window threshold",
		}, []string{"pattern"}),
	}

	return m
}

// RecordToolCall records a completed tool call
func (m *Metrics) RecordToolCall(tool string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordError records a structured error occurrence
func (m *Metrics) RecordError(code int, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(strconv.Itoa(code), errorType).Inc()
}

// RecordRetry records a retry attempt for an operation
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.RetryAttemptsTotal.WithLabelValues(operation).Inc()
}

// RecordTimeout records an operation timeout
func (m *Metrics) RecordTimeout(operation string) {
	if m == nil {
		return
	}
	m.TimeoutsTotal.WithLabelValues(operation).Inc()
}

// SetCircuitBreakerState records the current breaker state for a service
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// SetDependencyHealth records the health of a dependency
func (m *Metrics) SetDependencyHealth(dependency string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.DependencyUp.WithLabelValues(dependency).Set(v)
}

// SetFeatureAvailable records the availability of a feature
func (m *Metrics) SetFeatureAvailable(feature string, available bool) {
	if m == nil {
		return
	}
	v := 0.0
	if available {
		v = 1.0
	}
	m.FeatureAvailable.WithLabelValues(feature).Set(v)
}

// RecordHealthCheck records the duration of a dependency health check
func (m *Metrics) RecordHealthCheck(dependency string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HealthCheckDuration.WithLabelValues(dependency).Observe(duration.Seconds())
}

// RecordThresholdExceeded records an error pattern crossing the window threshold
func (m *Metrics) RecordThresholdExceeded(pattern string) {
	if m == nil {
		return
	}
	m.ErrorThresholdExceeded.WithLabelValues(pattern).Inc()
}

// GinHandler returns a gin handler serving the Prometheus endpoint
func (m *Metrics) GinHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// registryFactory registers collectors against a private registry
type registryFactory struct {
	registry *prometheus.Registry
}

func newRegistryFactory(registry *prometheus.Registry) registryFactory {
	return registryFactory{registry: registry}
}

func (f registryFactory) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.registry.MustRegister(c)
	return c
}

func (f registryFactory) gaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(opts, labels)
	f.registry.MustRegister(g)
	return g
}

func (f registryFactory) histogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	f.registry.MustRegister(h)
	return h
}
