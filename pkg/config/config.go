package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Server       ServerConfig       `json:"server"`
	MCP          MCPConfig          `json:"mcp"`
	Logging      LoggingConfig      `json:"logging"`
	Tracing      TracingConfig      `json:"tracing"`
	Resilience   ResilienceConfig   `json:"resilience"`
	Analytics    AnalyticsConfig    `json:"analytics"`
	Health       HealthConfig       `json:"health"`
	Features     FeaturesConfig     `json:"features"`
	Dependencies DependenciesConfig `json:"dependencies"`
}

// ServerConfig contains the HTTP introspection server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// MCPConfig contains the MCP server configuration
type MCPConfig struct {
	// Transport is "stdio" or "sse"
	Transport string `json:"transport"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	JaegerEndpoint string  `json:"jaeger_endpoint"`
	SamplingRate   float64 `json:"sampling_rate"`
	Environment    string  `json:"environment"`
}

// ResilienceConfig contains circuit breaker, retry and timeout configuration
type ResilienceConfig struct {
	MaxRetries       int           `json:"max_retries"`
	BaseDelay        time.Duration `json:"base_delay"`
	MaxDelay         time.Duration `json:"max_delay"`
	ExponentialBase  float64       `json:"exponential_base"`
	DefaultTimeout   time.Duration `json:"default_timeout"`
	FailureThreshold int           `json:"failure_threshold"`
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`
	SuccessThreshold int           `json:"success_threshold"`
}

// AnalyticsConfig contains error aggregator configuration
type AnalyticsConfig struct {
	HistorySize        int           `json:"history_size"`
	Window             time.Duration `json:"window"`
	MaxErrorsPerWindow int           `json:"max_errors_per_window"`
}

// HealthConfig contains health monitor configuration
type HealthConfig struct {
	Interval     time.Duration `json:"interval"`
	CheckTimeout time.Duration `json:"check_timeout"`
}

// FeaturesConfig contains availability tier thresholds
type FeaturesConfig struct {
	MostlyAvailablePercent    float64 `json:"mostly_available_percent"`
	PartiallyAvailablePercent float64 `json:"partially_available_percent"`
}

// DependenciesConfig contains external dependency endpoints
type DependenciesConfig struct {
	SearchURL       string `json:"search_url"`
	ReputationURL   string `json:"reputation_url"`
	CompilerCommand string `json:"compiler_command"`
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		MCP: MCPConfig{
			Transport: getEnvString("MCP_TRANSPORT", "stdio"),
			Host:      getEnvString("MCP_HOST", "localhost"),
			Port:      getEnvInt("MCP_PORT", 8081),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stderr"),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("TRACING_ENABLED", false),
			JaegerEndpoint: getEnvString("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			SamplingRate:   getEnvFloat("TRACING_SAMPLING_RATE", 1.0),
			Environment:    getEnvString("ENVIRONMENT", "development"),
		},
		Resilience: ResilienceConfig{
			MaxRetries:       getEnvInt("RESILIENCE_MAX_RETRIES", 3),
			BaseDelay:        getEnvDuration("RESILIENCE_BASE_DELAY", 100*time.Millisecond),
			MaxDelay:         getEnvDuration("RESILIENCE_MAX_DELAY", 30*time.Second),
			ExponentialBase:  getEnvFloat("RESILIENCE_EXPONENTIAL_BASE", 2.0),
			DefaultTimeout:   getEnvDuration("RESILIENCE_DEFAULT_TIMEOUT", 30*time.Second),
			FailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			RecoveryTimeout:  getEnvDuration("BREAKER_RECOVERY_TIMEOUT", 60*time.Second),
			SuccessThreshold: getEnvInt("BREAKER_SUCCESS_THRESHOLD", 2),
		},
		Analytics: AnalyticsConfig{
			HistorySize:        getEnvInt("ANALYTICS_HISTORY_SIZE", 1000),
			Window:             getEnvDuration("ANALYTICS_WINDOW", 300*time.Second),
			MaxErrorsPerWindow: getEnvInt("ANALYTICS_MAX_ERRORS_PER_WINDOW", 100),
		},
		Health: HealthConfig{
			Interval:     getEnvDuration("HEALTH_INTERVAL", 30*time.Second),
			CheckTimeout: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		},
		Features: FeaturesConfig{
			MostlyAvailablePercent:    getEnvFloat("FEATURES_MOSTLY_AVAILABLE_PERCENT", 80),
			PartiallyAvailablePercent: getEnvFloat("FEATURES_PARTIALLY_AVAILABLE_PERCENT", 50),
		},
		Dependencies: DependenciesConfig{
			SearchURL:       getEnvString("SEARCH_URL", "http://localhost:9200"),
			ReputationURL:   getEnvString("REPUTATION_URL", "https://reputation.example.com/api/v1"),
			CompilerCommand: getEnvString("COMPILER_COMMAND", "pdflatex"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration; the gateway does not start on an
// invalid resilience policy
func (c *Config) Validate() error {
	if c.MCP.Transport != "stdio" && c.MCP.Transport != "sse" {
		return fmt.Errorf("unsupported MCP transport: %s", c.MCP.Transport)
	}

	r := c.Resilience
	if r.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", r.MaxRetries)
	}
	if r.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be > 0, got %s", r.BaseDelay)
	}
	if r.MaxDelay <= 0 {
		return fmt.Errorf("max delay must be > 0, got %s", r.MaxDelay)
	}
	if r.ExponentialBase <= 1 {
		return fmt.Errorf("exponential base must be > 1, got %g", r.ExponentialBase)
	}
	if r.DefaultTimeout <= 0 {
		return fmt.Errorf("default timeout must be > 0, got %s", r.DefaultTimeout)
	}
	if r.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be > 0, got %d", r.FailureThreshold)
	}
	if r.RecoveryTimeout <= 0 {
		return fmt.Errorf("recovery timeout must be > 0, got %s", r.RecoveryTimeout)
	}
	if r.SuccessThreshold <= 0 {
		return fmt.Errorf("success threshold must be > 0, got %d", r.SuccessThreshold)
	}

	if c.Health.Interval <= 0 {
		return fmt.Errorf("health interval must be > 0, got %s", c.Health.Interval)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
