package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelops/intel-gateway/internal/analytics"
	"github.com/sentinelops/intel-gateway/internal/features"
	"github.com/sentinelops/intel-gateway/internal/health"
	"github.com/sentinelops/intel-gateway/internal/tools"
	"github.com/sentinelops/intel-gateway/pkg/config"
	"github.com/sentinelops/intel-gateway/pkg/metrics"
	"github.com/sentinelops/intel-gateway/pkg/resilience"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	aggregator := analytics.NewErrorAggregator(analytics.DefaultConfig(), nil, nil)
	orchestrator, err := resilience.NewOrchestrator(resilience.DefaultConfig(), nil, aggregator, nil)
	require.NoError(t, err)

	resolver := features.NewResolver(features.DefaultDefinitions(), features.DefaultThresholds(), nil, nil)

	handlers := make(tools.HandlerMap)
	for _, name := range []string{
		"search_events", "correlate_campaign", "detect_anomalies",
		"lookup_reputation", "bulk_reputation", "compile_report",
		"data_dictionary", "gateway_status",
	} {
		handlers[name] = func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return "ok", nil
		}
	}
	catalog, err := tools.BuildCatalog(handlers)
	require.NoError(t, err)

	monitor := health.NewMonitor(health.DefaultConfig(), nil, nil)

	return New(Options{
		Config:       &config.Config{},
		Metrics:      metrics.New(metrics.DefaultConfig()),
		Aggregator:   aggregator,
		Orchestrator: orchestrator,
		Resolver:     resolver,
		Catalog:      catalog,
		Dispatcher:   tools.NewDispatcher(catalog, orchestrator, time.Second, nil, nil),
		Monitor:      monitor,
	})
}

func doRequest(t *testing.T, g *Gateway, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	g.buildRouter().ServeHTTP(recorder, req)

	var body map[string]interface{}
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	}
	return recorder, body
}

func TestHandleHealth_UnavailableBeforeFirstCycle(t *testing.T) {
	g := newTestGateway(t)

	recorder, body := doRequest(t, g, http.MethodGet, "/health")

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Equal(t, "unavailable", body["status"])
}

func TestHandleHealth_HealthyDependencies(t *testing.T) {
	g := newTestGateway(t)
	g.resolver.Initialize(map[string]bool{
		features.DepSearch:        true,
		features.DepReputationAPI: true,
		features.DepDocCompiler:   true,
	})

	recorder, body := doRequest(t, g, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "fully_available", body["status"])
}

func TestHandleFeatures(t *testing.T) {
	g := newTestGateway(t)
	g.resolver.Initialize(map[string]bool{features.DepSearch: true})

	recorder, body := doRequest(t, g, http.MethodGet, "/api/v1/features")
	require.Equal(t, http.StatusOK, recorder.Code)

	featureMap, ok := body["features"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, featureMap, len(features.DefaultDefinitions()))

	reputation := featureMap[features.FeatureReputation].(map[string]interface{})
	assert.Equal(t, false, reputation["available"])
}

func TestHandleTools_FiltersUnavailable(t *testing.T) {
	g := newTestGateway(t)
	g.resolver.Initialize(map[string]bool{features.DepSearch: true})

	recorder, body := doRequest(t, g, http.MethodGet, "/api/v1/tools")
	require.Equal(t, http.StatusOK, recorder.Code)

	listed, ok := body["available_tools"].([]interface{})
	require.True(t, ok)

	names := make(map[string]bool)
	for _, item := range listed {
		names[item.(map[string]interface{})["name"].(string)] = true
	}

	assert.True(t, names["search_events"])
	assert.True(t, names["gateway_status"])
	assert.False(t, names["lookup_reputation"], "reputation tools hidden while the API is down")
	assert.False(t, names["compile_report"])
	assert.Equal(t, float64(8), body["total_tools"])
}

func TestHandleErrorSummaryAndReset(t *testing.T) {
	g := newTestGateway(t)
	g.aggregator.RecordError(-32005, "execution", nil)

	recorder, body := doRequest(t, g, http.MethodGet, "/api/v1/errors?window_seconds=600")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, float64(1), body["total_errors"])
	assert.Equal(t, float64(600), body["window_seconds"])

	recorder, _ = doRequest(t, g, http.MethodGet, "/api/v1/errors?window_seconds=nope")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder, _ = doRequest(t, g, http.MethodPost, "/api/v1/errors/reset")
	assert.Equal(t, http.StatusOK, recorder.Code)

	_, body = doRequest(t, g, http.MethodGet, "/api/v1/errors")
	assert.Equal(t, float64(0), body["total_errors"])
}

func TestHandleErrorTrends(t *testing.T) {
	g := newTestGateway(t)

	recorder, body := doRequest(t, g, http.MethodGet, "/api/v1/errors/trends?hours=6")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, float64(6), body["analysis_period_hours"])
	assert.Equal(t, "stable (insufficient data)", body["trend_description"])

	recorder, _ = doRequest(t, g, http.MethodGet, "/api/v1/errors/trends?hours=-2")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleBreakers(t *testing.T) {
	g := newTestGateway(t)

	recorder, body := doRequest(t, g, http.MethodGet, "/api/v1/breakers")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, body)

	_, _ = g.orchestrator.ExecuteGuarded(context.Background(), "search", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("down")
	})

	recorder, body = doRequest(t, g, http.MethodGet, "/api/v1/breakers/search")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "search", body["service"])
	assert.Equal(t, "CLOSED", body["state"])
	assert.Equal(t, float64(1), body["failure_count"])

	recorder, _ = doRequest(t, g, http.MethodGet, "/api/v1/breakers/unknown")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	g := newTestGateway(t)
	g.metrics.RecordToolCall("search_events", true, 10*time.Millisecond)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	g.buildRouter().ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "intel_gateway_tool_calls_total")
}
