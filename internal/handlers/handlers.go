package handlers

import (
	"context"
	"time"

	"github.com/sentinelops/intel-gateway/internal/analytics"
	"github.com/sentinelops/intel-gateway/internal/features"
	"github.com/sentinelops/intel-gateway/internal/tools"
	"github.com/sentinelops/intel-gateway/pkg/errors"
	"github.com/sentinelops/intel-gateway/pkg/resilience"
)

// SearchClient is the search backend collaborator. Query building and field
// mapping live behind this interface, not in the gateway.
type SearchClient interface {
	SearchEvents(ctx context.Context, query, timeRange string, limit int) (interface{}, error)
	Correlate(ctx context.Context, indicator string, windowHours int) (interface{}, error)
	DetectAnomalies(ctx context.Context, metric string, sensitivity float64) (interface{}, error)
}

// ReputationClient is the reputation API collaborator
type ReputationClient interface {
	Lookup(ctx context.Context, indicatorType, indicator string) (interface{}, error)
	BulkLookup(ctx context.Context, indicatorType string, indicators []string) (interface{}, error)
}

// ReportCompiler is the document-compilation collaborator
type ReportCompiler interface {
	Compile(ctx context.Context, template, title, format string) (interface{}, error)
}

// Set builds the gateway's tool handlers. Every call into an external
// dependency runs behind that dependency's circuit breaker with the
// configured retry policy inside the guard, so a blocked breaker is not
// hammered by retries.
type Set struct {
	orchestrator *resilience.Orchestrator
	resolver     *features.Resolver
	aggregator   *analytics.ErrorAggregator
	retry        resilience.RetryPolicy

	search     SearchClient
	reputation ReputationClient
	compiler   ReportCompiler
}

// NewSet creates the handler set
func NewSet(
	orchestrator *resilience.Orchestrator,
	resolver *features.Resolver,
	aggregator *analytics.ErrorAggregator,
	retry resilience.RetryPolicy,
	search SearchClient,
	reputation ReputationClient,
	compiler ReportCompiler,
) *Set {
	if retry.Retryable == nil {
		retry.Retryable = errors.IsRetryable
	}

	return &Set{
		orchestrator: orchestrator,
		resolver:     resolver,
		aggregator:   aggregator,
		retry:        retry,
		search:       search,
		reputation:   reputation,
		compiler:     compiler,
	}
}

// HandlerMap returns the handler for every tool in the fixed catalog
func (s *Set) HandlerMap() tools.HandlerMap {
	return tools.HandlerMap{
		"search_events":      s.searchEvents,
		"correlate_campaign": s.correlateCampaign,
		"detect_anomalies":   s.detectAnomalies,
		"lookup_reputation":  s.lookupReputation,
		"bulk_reputation":    s.bulkReputation,
		"compile_report":     s.compileReport,
		"data_dictionary":    s.dataDictionary,
		"gateway_status":     s.gatewayStatus,
	}
}

// guarded runs an operation behind the named dependency's breaker, retrying
// failed attempts inside the guard
func (s *Set) guarded(ctx context.Context, dependency, operation string, op resilience.Operation) (interface{}, error) {
	return s.orchestrator.ExecuteGuarded(ctx, dependency, func(ctx context.Context) (interface{}, error) {
		return s.orchestrator.ExecuteWithRetry(ctx, operation, op, s.retry)
	})
}

func (s *Set) searchEvents(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query, ok := stringArg(args, "query")
	if !ok {
		return nil, s.orchestrator.ValidationError("search_events", map[string]string{
			"query": "required string",
		})
	}
	timeRange, _ := stringArg(args, "time_range")
	limit := intArg(args, "limit", 100)

	return s.guarded(ctx, features.DepSearch, "search_events", func(ctx context.Context) (interface{}, error) {
		return s.search.SearchEvents(ctx, query, timeRange, limit)
	})
}

func (s *Set) correlateCampaign(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	indicator, ok := stringArg(args, "indicator")
	if !ok {
		return nil, s.orchestrator.ValidationError("correlate_campaign", map[string]string{
			"indicator": "required string",
		})
	}
	windowHours := intArg(args, "window_hours", 24)

	return s.guarded(ctx, features.DepSearch, "correlate_campaign", func(ctx context.Context) (interface{}, error) {
		return s.search.Correlate(ctx, indicator, windowHours)
	})
}

func (s *Set) detectAnomalies(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	metric, ok := stringArg(args, "metric")
	if !ok {
		return nil, s.orchestrator.ValidationError("detect_anomalies", map[string]string{
			"metric": "required string",
		})
	}
	sensitivity := floatArg(args, "sensitivity", 3.0)

	return s.guarded(ctx, features.DepSearch, "detect_anomalies", func(ctx context.Context) (interface{}, error) {
		return s.search.DetectAnomalies(ctx, metric, sensitivity)
	})
}

func (s *Set) lookupReputation(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	fieldErrors := make(map[string]string)
	indicator, ok := stringArg(args, "indicator")
	if !ok {
		fieldErrors["indicator"] = "required string"
	}
	indicatorType, ok := stringArg(args, "indicator_type")
	if !ok {
		fieldErrors["indicator_type"] = "required string, one of ip, domain, hash, url"
	}
	if len(fieldErrors) > 0 {
		return nil, s.orchestrator.ValidationError("lookup_reputation", fieldErrors)
	}

	return s.guarded(ctx, features.DepReputationAPI, "lookup_reputation", func(ctx context.Context) (interface{}, error) {
		return s.reputation.Lookup(ctx, indicatorType, indicator)
	})
}

func (s *Set) bulkReputation(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	indicatorType, ok := stringArg(args, "indicator_type")
	if !ok {
		return nil, s.orchestrator.ValidationError("bulk_reputation", map[string]string{
			"indicator_type": "required string, one of ip, domain, hash, url",
		})
	}

	raw, ok := args["indicators"].([]interface{})
	if !ok || len(raw) == 0 || len(raw) > 100 {
		return nil, s.orchestrator.ValidationError("bulk_reputation", map[string]string{
			"indicators": "required array of 1 to 100 strings",
		})
	}
	indicators := make([]string, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			return nil, s.orchestrator.ValidationError("bulk_reputation", map[string]string{
				"indicators": "every entry must be a string",
			})
		}
		indicators = append(indicators, str)
	}

	return s.guarded(ctx, features.DepReputationAPI, "bulk_reputation", func(ctx context.Context) (interface{}, error) {
		return s.reputation.BulkLookup(ctx, indicatorType, indicators)
	})
}

func (s *Set) compileReport(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	template, ok := stringArg(args, "template")
	if !ok {
		return nil, s.orchestrator.ValidationError("compile_report", map[string]string{
			"template": "required string",
		})
	}
	title, _ := stringArg(args, "title")
	format, ok := stringArg(args, "format")
	if !ok {
		format = "pdf"
	}

	return s.guarded(ctx, features.DepDocCompiler, "compile_report", func(ctx context.Context) (interface{}, error) {
		return s.compiler.Compile(ctx, template, title, format)
	})
}

// dataDictionary serves from memory and needs no external dependency
func (s *Set) dataDictionary(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if field, ok := stringArg(args, "field"); ok {
		entry, found := fieldDictionary[field]
		if !found {
			return nil, s.orchestrator.ResourceNotFoundError("field " + field)
		}
		return map[string]interface{}{field: entry}, nil
	}
	return fieldDictionary, nil
}

func (s *Set) gatewayStatus(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"features":         s.resolver.GetSummary(),
		"circuit_breakers": s.orchestrator.AllBreakerStatuses(),
		"recent_errors":    s.aggregator.Summary(5 * time.Minute),
		"timestamp":        time.Now().UTC(),
	}, nil
}

// fieldDictionary documents the event fields the gateway understands
var fieldDictionary = map[string]string{
	"event.id":        "Unique event identifier assigned by the search backend",
	"event.timestamp": "Event time in RFC 3339, UTC",
	"event.severity":  "Severity from 1 (informational) to 10 (critical)",
	"event.category":  "Event category: authentication, network, malware, policy",
	"source.ip":       "Source IP address of the event",
	"destination.ip":  "Destination IP address of the event",
	"indicator.value": "Observable associated with the event",
	"indicator.type":  "Observable type: ip, domain, hash, url",
	"campaign.id":     "Correlated campaign identifier, present after correlation",
}

func stringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok && v != ""
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return fallback
}

func floatArg(args map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok && v > 0 {
		return v
	}
	return fallback
}
