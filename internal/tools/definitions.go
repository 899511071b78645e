package tools

import (
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sentinelops/intel-gateway/internal/features"
)

// HandlerResolver maps a tool name to its invocable handler. Handlers are
// provided by external collaborators; the catalog only carries the reference.
type HandlerResolver interface {
	Resolve(toolName string) (Handler, bool)
}

// HandlerMap is a HandlerResolver over a plain map
type HandlerMap map[string]Handler

func (m HandlerMap) Resolve(toolName string) (Handler, bool) {
	h, ok := m[toolName]
	return h, ok
}

// BuildCatalog assembles the gateway's fixed tool catalog, resolving each
// handler at startup. A missing handler is a startup error, not a runtime
// surprise.
func BuildCatalog(resolver HandlerResolver) (*Catalog, error) {
	catalog := NewCatalog()

	for _, def := range toolDefinitions() {
		handler, ok := resolver.Resolve(def.Tool.Name)
		if !ok {
			return nil, fmt.Errorf("no handler registered for tool %s", def.Tool.Name)
		}
		def.Handler = handler
		if err := catalog.Register(def); err != nil {
			return nil, err
		}
	}

	return catalog, nil
}

func toolDefinitions() []Definition {
	return []Definition{
		{
			Tool: mcp.NewTool("search_events",
				mcp.WithDescription("Search security events in the backing event store"),
				mcp.WithString("query",
					mcp.Required(),
					mcp.Description("Query string in the backend's query syntax"),
				),
				mcp.WithString("time_range",
					mcp.Description("Relative time range such as 24h or 7d"),
				),
				mcp.WithNumber("limit",
					mcp.Description("Maximum number of events to return"),
				),
			),
			Category:         "events",
			RequiredFeatures: []string{features.FeatureEventSearch},
			Timeout:          30 * time.Second,
		},
		{
			Tool: mcp.NewTool("correlate_campaign",
				mcp.WithDescription("Correlate events sharing an indicator into a campaign view"),
				mcp.WithString("indicator",
					mcp.Required(),
					mcp.Description("Indicator to pivot on (IP, domain, hash)"),
				),
				mcp.WithNumber("window_hours",
					mcp.Description("Correlation window in hours"),
				),
			),
			Category:         "analysis",
			RequiredFeatures: []string{features.FeatureCampaignCorrelation},
			Timeout:          60 * time.Second,
		},
		{
			Tool: mcp.NewTool("detect_anomalies",
				mcp.WithDescription("Detect statistical anomalies in an event metric"),
				mcp.WithString("metric",
					mcp.Required(),
					mcp.Description("Metric to analyze, e.g. event_count or failed_logins"),
				),
				mcp.WithNumber("sensitivity",
					mcp.Description("Detection sensitivity between 1 and 5"),
				),
			),
			Category:         "analysis",
			RequiredFeatures: []string{features.FeatureAnomalyDetection},
			Timeout:          60 * time.Second,
		},
		{
			Tool: mcp.NewTool("lookup_reputation",
				mcp.WithDescription("Look up the reputation of a single indicator"),
				mcp.WithString("indicator",
					mcp.Required(),
					mcp.Description("Indicator value"),
				),
				mcp.WithString("indicator_type",
					mcp.Required(),
					mcp.Description("Indicator type"),
					mcp.Enum("ip", "domain", "hash", "url"),
				),
			),
			Category:         "enrichment",
			RequiredFeatures: []string{features.FeatureReputation},
			Timeout:          15 * time.Second,
		},
		{
			Tool: mcp.NewTool("bulk_reputation",
				mcp.WithDescription("Look up reputation for a batch of indicators"),
				mcp.WithString("indicator_type",
					mcp.Required(),
					mcp.Description("Indicator type shared by the batch"),
					mcp.Enum("ip", "domain", "hash", "url"),
				),
				mcp.WithArray("indicators",
					mcp.Required(),
					mcp.Description("Indicator values, at most 100 per call"),
				),
			),
			Category:         "enrichment",
			RequiredFeatures: []string{features.FeatureReputation},
			Timeout:          60 * time.Second,
		},
		{
			Tool: mcp.NewTool("compile_report",
				mcp.WithDescription("Compile an incident report document from event data"),
				mcp.WithString("template",
					mcp.Required(),
					mcp.Description("Report template name"),
				),
				mcp.WithString("title",
					mcp.Description("Report title"),
				),
				mcp.WithString("format",
					mcp.Description("Output format"),
					mcp.Enum("pdf", "html"),
				),
			),
			Category:         "reporting",
			RequiredFeatures: []string{features.FeatureReporting},
			Timeout:          120 * time.Second,
		},
		{
			Tool: mcp.NewTool("data_dictionary",
				mcp.WithDescription("Describe the event fields and schemas the gateway understands"),
				mcp.WithString("field",
					mcp.Description("Optional field name to describe; omit for the full dictionary"),
				),
			),
			Category:         "metadata",
			RequiredFeatures: []string{features.FeatureDataDictionary},
		},
		{
			Tool: mcp.NewTool("gateway_status",
				mcp.WithDescription("Report feature availability, breaker states and recent error analytics"),
			),
			Category: "metadata",
			// No required features: status must be reachable even when
			// every dependency is down
		},
	}
}
