package tools

import (
	"context"
	"time"

	"github.com/sentinelops/intel-gateway/pkg/logging"
	"github.com/sentinelops/intel-gateway/pkg/metrics"
	"github.com/sentinelops/intel-gateway/pkg/resilience"
)

// Handler executes a tool call with already-validated arguments
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Dispatcher provides the uniform call surface over the catalog. Availability
// gating happens at the server boundary; the dispatcher's job is to execute
// an already-authorized call under the timeout contract.
type Dispatcher struct {
	catalog      *Catalog
	orchestrator *resilience.Orchestrator
	logger       *logging.Logger
	metrics      *metrics.Metrics

	defaultTimeout time.Duration
}

// NewDispatcher creates a dispatcher over the catalog and orchestrator
func NewDispatcher(catalog *Catalog, orchestrator *resilience.Orchestrator, defaultTimeout time.Duration, logger *logging.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}

	return &Dispatcher{
		catalog:        catalog,
		orchestrator:   orchestrator,
		logger:         logger,
		metrics:        m,
		defaultTimeout: defaultTimeout,
	}
}

// IsToolAvailable reports whether a tool's feature requirements are met
func (d *Dispatcher) IsToolAvailable(name string, availableFeatures map[string]bool) bool {
	missing, ok := d.catalog.MissingFeatures(name, availableFeatures)
	return ok && len(missing) == 0
}

// Dispatch looks up the handler for a tool and executes it under the tool's
// timeout (or the default). Unknown tools yield a method-not-found envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	def, ok := d.catalog.Get(name)
	if !ok {
		return nil, d.orchestrator.MethodNotFoundError(name)
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = d.defaultTimeout
	}

	ctx = logging.WithToolName(ctx, name)
	started := time.Now()

	result, err := d.orchestrator.ExecuteWithTimeout(ctx, name, func(ctx context.Context) (interface{}, error) {
		return def.Handler(ctx, args)
	}, timeout)

	duration := time.Since(started)
	d.metrics.RecordToolCall(name, err == nil, duration)
	d.logger.LogToolCall(ctx, name, err == nil, duration, nil)

	return result, err
}
