package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/sentinelops/intel-gateway/internal/analytics"
	"github.com/sentinelops/intel-gateway/internal/features"
	"github.com/sentinelops/intel-gateway/internal/health"
	"github.com/sentinelops/intel-gateway/internal/tools"
	"github.com/sentinelops/intel-gateway/pkg/config"
	gwerrors "github.com/sentinelops/intel-gateway/pkg/errors"
	"github.com/sentinelops/intel-gateway/pkg/logging"
	"github.com/sentinelops/intel-gateway/pkg/metrics"
	"github.com/sentinelops/intel-gateway/pkg/resilience"
	"github.com/sentinelops/intel-gateway/pkg/tracing"
)

// Version is the gateway version reported to MCP clients
const Version = "1.0.0"

// Gateway wires the resilience core to its MCP and HTTP surfaces
type Gateway struct {
	config       *config.Config
	logger       *logging.Logger
	metrics      *metrics.Metrics
	tracing      *tracing.TracingService
	aggregator   *analytics.ErrorAggregator
	orchestrator *resilience.Orchestrator
	resolver     *features.Resolver
	catalog      *tools.Catalog
	dispatcher   *tools.Dispatcher
	monitor      *health.Monitor

	mcp        *mcpserver.MCPServer
	sse        *mcpserver.SSEServer
	httpServer *http.Server
}

// Options collects the constructed components the gateway serves
type Options struct {
	Config       *config.Config
	Logger       *logging.Logger
	Metrics      *metrics.Metrics
	Tracing      *tracing.TracingService
	Aggregator   *analytics.ErrorAggregator
	Orchestrator *resilience.Orchestrator
	Resolver     *features.Resolver
	Catalog      *tools.Catalog
	Dispatcher   *tools.Dispatcher
	Monitor      *health.Monitor
}

// New creates a gateway server from its components
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	if opts.Tracing == nil {
		opts.Tracing, _ = tracing.NewTracingService(&tracing.Config{Enabled: false})
	}

	return &Gateway{
		config:       opts.Config,
		logger:       logger,
		metrics:      opts.Metrics,
		tracing:      opts.Tracing,
		aggregator:   opts.Aggregator,
		orchestrator: opts.Orchestrator,
		resolver:     opts.Resolver,
		catalog:      opts.Catalog,
		dispatcher:   opts.Dispatcher,
		monitor:      opts.Monitor,
	}
}

// Start brings up the MCP server, the HTTP introspection server, and the
// health cycle. It returns once everything is serving; Stop shuts it down.
func (g *Gateway) Start(ctx context.Context) error {
	g.mcp = mcpserver.NewMCPServer(
		"intel-gateway",
		Version,
		mcpserver.WithToolCapabilities(true),
	)

	// Each health cycle replaces feature availability wholesale and
	// re-publishes the filtered tool list
	g.monitor.Subscribe(func(snapshot health.Snapshot) {
		g.resolver.Initialize(snapshot)
		g.syncTools()
	})
	g.monitor.Start(ctx)

	if err := g.startHTTP(); err != nil {
		return err
	}

	switch g.config.MCP.Transport {
	case "sse":
		baseURL := fmt.Sprintf("http://%s:%d", g.config.MCP.Host, g.config.MCP.Port)
		g.sse = mcpserver.NewSSEServer(
			g.mcp,
			mcpserver.WithBaseURL(baseURL),
			mcpserver.WithKeepAlive(true),
			mcpserver.WithKeepAliveInterval(30*time.Second),
		)
		addr := fmt.Sprintf("%s:%d", g.config.MCP.Host, g.config.MCP.Port)
		g.logger.Info("Starting MCP SSE server", "addr", addr)
		go func() {
			if err := g.sse.Start(addr); err != nil && err != http.ErrServerClosed {
				g.logger.Error("MCP SSE server error", "error", err.Error())
			}
		}()
	case "stdio":
		g.logger.Info("Starting MCP stdio server")
		go func() {
			if err := mcpserver.ServeStdio(g.mcp); err != nil {
				g.logger.Error("MCP stdio server error", "error", err.Error())
			}
		}()
	}

	return nil
}

// Stop shuts down the gateway's servers and the health cycle
func (g *Gateway) Stop(ctx context.Context) {
	g.monitor.Stop()

	// The last snapshot goes stale the moment the health cycle halts;
	// degrade dependent features instead of serving it during drain
	g.resolver.MarkAllUnavailable("health monitoring stopped")
	if g.mcp != nil {
		g.syncTools()
	}

	if g.httpServer != nil {
		if err := g.httpServer.Shutdown(ctx); err != nil {
			g.logger.Error("HTTP server shutdown error", "error", err.Error())
		}
	}
	if g.sse != nil {
		if err := g.sse.Shutdown(ctx); err != nil {
			g.logger.Error("MCP SSE server shutdown error", "error", err.Error())
		}
	}
}

// syncTools publishes the currently-available tool list to the MCP server
func (g *Gateway) syncTools() {
	available := g.resolver.AvailableSet()
	defs := g.catalog.Available(available)

	serverTools := make([]mcpserver.ServerTool, 0, len(defs))
	for _, def := range defs {
		serverTools = append(serverTools, mcpserver.ServerTool{
			Tool:    def.Tool,
			Handler: g.toolHandler(def.Tool.Name),
		})
	}

	g.mcp.SetTools(serverTools...)
	g.logger.Debug("Published tool list",
		"available_tools", len(serverTools),
		"total_tools", len(g.catalog.All()),
	)
}

// toolHandler wraps a catalog tool for the MCP server. Every failure leaves
// here as a structured error envelope; raw errors and panics never reach
// the client.
func (g *Gateway) toolHandler(name string) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		ctx, span := g.tracing.StartToolSpan(ctx, name)
		defer span.End()

		defer func() {
			if r := recover(); r != nil {
				g.logger.Error("Tool handler panicked", "tool", name, "panic", fmt.Sprintf("%v", r))
				envelope := g.orchestrator.InternalError(fmt.Sprintf("tool %s panicked", name))
				result, err = envelopeResult(envelope), nil
			}
		}()

		// Availability can change between listing and calling; re-check here
		if missing, ok := g.catalog.MissingFeatures(name, g.resolver.AvailableSet()); !ok || len(missing) > 0 {
			envelope := g.orchestrator.ToolUnavailableError(name, missing)
			return envelopeResult(envelope), nil
		}

		args := make(map[string]interface{})
		if req.Params.Arguments != nil {
			argsMap, ok := req.Params.Arguments.(map[string]interface{})
			if !ok {
				envelope := g.orchestrator.InvalidParamsError("arguments must be a JSON object")
				return envelopeResult(envelope), nil
			}
			args = argsMap
		}

		value, err := g.dispatcher.Dispatch(ctx, name, args)
		if err != nil {
			tracing.RecordError(span, err)
			return envelopeResult(g.toEnvelope(err)), nil
		}

		res, err := valueResult(value)
		if err != nil {
			tracing.RecordError(span, err)
			return envelopeResult(g.toEnvelope(err)), nil
		}
		return res, nil
	}
}

// toEnvelope converts any failure to the nearest structured envelope
func (g *Gateway) toEnvelope(err error) *gwerrors.StructuredError {
	if se, ok := gwerrors.AsStructured(err); ok {
		return se
	}
	return g.orchestrator.InternalError(err.Error())
}

func envelopeResult(se *gwerrors.StructuredError) *mcp.CallToolResult {
	encoded, err := json.Marshal(se)
	if err != nil {
		return mcp.NewToolResultError(se.Error())
	}
	return mcp.NewToolResultError(string(encoded))
}

func valueResult(value interface{}) (*mcp.CallToolResult, error) {
	switch v := value.(type) {
	case nil:
		return mcp.NewToolResultText(""), nil
	case string:
		return mcp.NewToolResultText(v), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding tool result: %w", err)
		}
		return mcp.NewToolResultText(string(encoded)), nil
	}
}
