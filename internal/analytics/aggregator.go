package analytics

import (
	"fmt"
	"sync"
	"time"

	"github.com/sentinelops/intel-gateway/pkg/logging"
	"github.com/sentinelops/intel-gateway/pkg/metrics"
)

// ErrorRecord is a single recorded error occurrence
type ErrorRecord struct {
	Code      int                    `json:"code"`
	ErrorType string                 `json:"error_type"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Config holds aggregator configuration
type Config struct {
	// HistorySize bounds the record history; the oldest record is evicted
	// on overflow
	HistorySize int
	// Window is the aggregation window for the threshold check
	Window time.Duration
	// MaxErrorsPerWindow is the per-pattern count that signals a
	// threshold-exceeded condition within the window
	MaxErrorsPerWindow int
}

// DefaultConfig returns the documented default aggregator configuration
func DefaultConfig() Config {
	return Config{
		HistorySize:        1000,
		Window:             300 * time.Second,
		MaxErrorsPerWindow: 100,
	}
}

// ErrorAggregator answers "how many errors of what kind have we seen
// recently, and is the rate abnormal?" without an external metrics system.
// State persists for the process lifetime and is cleared only by Reset.
type ErrorAggregator struct {
	config  Config
	logger  *logging.Logger
	metrics *metrics.Metrics

	mutex   sync.Mutex
	history []ErrorRecord
	// counts is keyed by "{code}_{type}" and never pruned except on Reset
	counts map[string]int
}

// Pattern aggregates occurrences of one error key within a window
type Pattern struct {
	Count         int                    `json:"count"`
	LastSeen      time.Time              `json:"last_seen"`
	SampleContext map[string]interface{} `json:"sample_context,omitempty"`
}

// Summary is the windowed aggregation result
type Summary struct {
	TotalErrors   int                `json:"total_errors"`
	WindowSeconds float64            `json:"window_seconds"`
	ErrorPatterns map[string]Pattern `json:"error_patterns"`
}

// Trends compares the trailing half of the analysis period to the leading half
type Trends struct {
	AnalysisPeriodHours int            `json:"analysis_period_hours"`
	TotalErrors         int            `json:"total_errors"`
	HourlyBreakdown     map[string]int `json:"hourly_breakdown"`
	TrendPercentage     float64        `json:"trend_percentage"`
	TrendDescription    string         `json:"trend_description"`
}

// NewErrorAggregator creates an aggregator with the given configuration
func NewErrorAggregator(config Config, logger *logging.Logger, m *metrics.Metrics) *ErrorAggregator {
	if config.HistorySize <= 0 {
		config.HistorySize = 1000
	}
	if config.Window <= 0 {
		config.Window = 300 * time.Second
	}
	if config.MaxErrorsPerWindow <= 0 {
		config.MaxErrorsPerWindow = 100
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &ErrorAggregator{
		config:  config,
		logger:  logger,
		metrics: m,
		history: make([]ErrorRecord, 0, config.HistorySize),
		counts:  make(map[string]int),
	}
}

// RecordError appends an error occurrence to the bounded history and bumps
// its frequency counter. Crossing the window threshold is signaled through
// the log and metrics, never raised.
func (a *ErrorAggregator) RecordError(code int, errorType string, errContext map[string]interface{}) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	record := ErrorRecord{
		Code:      code,
		ErrorType: errorType,
		Context:   errContext,
		Timestamp: time.Now(),
	}

	a.history = append(a.history, record)
	if len(a.history) > a.config.HistorySize {
		a.history = a.history[len(a.history)-a.config.HistorySize:]
	}

	key := patternKey(code, errorType)
	a.counts[key]++

	if a.windowCountLocked(key, record.Timestamp) > a.config.MaxErrorsPerWindow {
		a.logger.Warn("Error threshold exceeded",
			"pattern", key,
			"window_seconds", a.config.Window.Seconds(),
			"max_errors_per_window", a.config.MaxErrorsPerWindow,
		)
		a.metrics.RecordThresholdExceeded(key)
	}
}

// Summary filters the history to the requested window and aggregates by
// pattern. Records older than the window relative to call time are excluded.
func (a *ErrorAggregator) Summary(window time.Duration) Summary {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	cutoff := time.Now().Add(-window)
	patterns := make(map[string]Pattern)
	total := 0

	for _, record := range a.history {
		if record.Timestamp.Before(cutoff) {
			continue
		}
		total++
		key := patternKey(record.Code, record.ErrorType)
		p := patterns[key]
		p.Count++
		if record.Timestamp.After(p.LastSeen) {
			p.LastSeen = record.Timestamp
			p.SampleContext = record.Context
		}
		patterns[key] = p
	}

	return Summary{
		TotalErrors:   total,
		WindowSeconds: window.Seconds(),
		ErrorPatterns: patterns,
	}
}

// TotalCount returns the all-time count for a pattern since the last Reset
func (a *ErrorAggregator) TotalCount(code int, errorType string) int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.counts[patternKey(code, errorType)]
}

// Trends buckets history by hour over the analysis period and compares the
// trailing half to the leading half. An empty history yields a stable,
// insufficient-data description rather than an error.
func (a *ErrorAggregator) Trends(hours int) Trends {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if hours <= 0 {
		hours = 24
	}

	now := time.Now()
	cutoff := now.Add(-time.Duration(hours) * time.Hour)

	hourly := make(map[string]int)
	total := 0
	// Hours since the cutoff, for half-period comparison
	var firstHalf, secondHalf int

	for _, record := range a.history {
		if record.Timestamp.Before(cutoff) {
			continue
		}
		total++
		hourly[record.Timestamp.Format("2006-01-02T15:00")]++

		elapsed := record.Timestamp.Sub(cutoff)
		if elapsed < time.Duration(hours)*time.Hour/2 {
			firstHalf++
		} else {
			secondHalf++
		}
	}

	trends := Trends{
		AnalysisPeriodHours: hours,
		TotalErrors:         total,
		HourlyBreakdown:     hourly,
	}

	switch {
	case total == 0:
		trends.TrendDescription = "stable (insufficient data)"
	case firstHalf == 0:
		trends.TrendPercentage = 100
		trends.TrendDescription = "rising"
	default:
		pct := (float64(secondHalf) - float64(firstHalf)) / float64(firstHalf) * 100
		trends.TrendPercentage = pct
		switch {
		case pct >= 10:
			trends.TrendDescription = "rising"
		case pct <= -10:
			trends.TrendDescription = "falling"
		default:
			trends.TrendDescription = "stable"
		}
	}

	return trends
}

// Reset clears history and counters entirely. Used by test harnesses and
// explicit operator action only, never automatically.
func (a *ErrorAggregator) Reset() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.history = a.history[:0]
	a.counts = make(map[string]int)
	a.logger.Info("Error aggregator reset")
}

// windowCountLocked counts occurrences of a pattern within the configured
// window ending at now. Must be called with the mutex held.
func (a *ErrorAggregator) windowCountLocked(key string, now time.Time) int {
	cutoff := now.Add(-a.config.Window)
	count := 0
	for i := len(a.history) - 1; i >= 0; i-- {
		record := a.history[i]
		if record.Timestamp.Before(cutoff) {
			break
		}
		if patternKey(record.Code, record.ErrorType) == key {
			count++
		}
	}
	return count
}

func patternKey(code int, errorType string) string {
	return fmt.Sprintf("%d_%s", code, errorType)
}
