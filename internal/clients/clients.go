// Package clients contains the thin adapters in front of the gateway's
// external dependencies. They translate tool arguments into upstream
// requests and surface upstream failures as structured errors; all
// resilience handling lives with the caller.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/sentinelops/intel-gateway/internal/features"
	"github.com/sentinelops/intel-gateway/pkg/errors"
)

// SearchHTTPClient talks to the search backend over its JSON query API
type SearchHTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewSearchHTTPClient creates a search client for the given base URL
func NewSearchHTTPClient(baseURL string) *SearchHTTPClient {
	return &SearchHTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *SearchHTTPClient) SearchEvents(ctx context.Context, query, timeRange string, limit int) (interface{}, error) {
	return c.post(ctx, "/api/v1/events/search", map[string]interface{}{
		"query":      query,
		"time_range": timeRange,
		"limit":      limit,
	})
}

func (c *SearchHTTPClient) Correlate(ctx context.Context, indicator string, windowHours int) (interface{}, error) {
	return c.post(ctx, "/api/v1/campaigns/correlate", map[string]interface{}{
		"indicator":    indicator,
		"window_hours": windowHours,
	})
}

func (c *SearchHTTPClient) DetectAnomalies(ctx context.Context, metric string, sensitivity float64) (interface{}, error) {
	return c.post(ctx, "/api/v1/anomalies/detect", map[string]interface{}{
		"metric":      metric,
		"sensitivity": sensitivity,
	})
}

func (c *SearchHTTPClient) post(ctx context.Context, path string, body map[string]interface{}) (interface{}, error) {
	return postJSON(ctx, c.client, features.DepSearch, c.baseURL+path, body)
}

// ReputationHTTPClient talks to the reputation API
type ReputationHTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewReputationHTTPClient creates a reputation client for the given base URL
func NewReputationHTTPClient(baseURL string) *ReputationHTTPClient {
	return &ReputationHTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *ReputationHTTPClient) Lookup(ctx context.Context, indicatorType, indicator string) (interface{}, error) {
	return postJSON(ctx, c.client, features.DepReputationAPI, c.baseURL+"/api/v1/reputation/lookup", map[string]interface{}{
		"indicator_type": indicatorType,
		"indicator":      indicator,
	})
}

func (c *ReputationHTTPClient) BulkLookup(ctx context.Context, indicatorType string, indicators []string) (interface{}, error) {
	return postJSON(ctx, c.client, features.DepReputationAPI, c.baseURL+"/api/v1/reputation/bulk", map[string]interface{}{
		"indicator_type": indicatorType,
		"indicators":     indicators,
	})
}

// CommandCompiler shells out to the document compiler binary. It reads the
// rendered document from stdout and returns it base64-free as raw text
// alongside compilation metadata.
type CommandCompiler struct {
	command string
}

// NewCommandCompiler creates a compiler around the given binary
func NewCommandCompiler(command string) *CommandCompiler {
	return &CommandCompiler{command: command}
}

func (c *CommandCompiler) Compile(ctx context.Context, template, title, format string) (interface{}, error) {
	cmd := exec.CommandContext(ctx, c.command, "--format", format, "--title", title)
	cmd.Stdin = strings.NewReader(template)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.NewExternalServiceError(features.DepDocCompiler,
			fmt.Sprintf("%v: %s", err, strings.TrimSpace(stderr.String())))
	}

	return map[string]interface{}{
		"format":     format,
		"title":      title,
		"size_bytes": stdout.Len(),
		"document":   stdout.String(),
	}, nil
}

func postJSON(ctx context.Context, client *http.Client, service, url string, body map[string]interface{}) (interface{}, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewExternalServiceError(service, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, errors.NewExternalServiceError(service, fmt.Sprintf("read response: %v", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.NewRateLimitError(service, retryAfterSeconds(resp))
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewResourceNotFound(url)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, errors.NewResourceAccessDenied(url)
	case resp.StatusCode >= 400:
		return nil, errors.NewExternalServiceError(service,
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(data), 256)))
	}

	var result interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.NewExternalServiceError(service, fmt.Sprintf("decode response: %v", err))
	}
	return result, nil
}

func retryAfterSeconds(resp *http.Response) float64 {
	if v := resp.Header.Get("Retry-After"); v != "" {
		var seconds float64
		if _, err := fmt.Sscanf(v, "%f", &seconds); err == nil && seconds > 0 {
			return seconds
		}
	}
	return 30
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
