package health

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/sentinelops/intel-gateway/pkg/logging"
	"github.com/sentinelops/intel-gateway/pkg/metrics"
)

// Snapshot is a point-in-time map of dependency name to healthy flag.
// It is produced once per health cycle and never mutated afterwards.
type Snapshot map[string]bool

// Checker probes one external dependency
type Checker interface {
	Name() string
	// Check returns nil when the dependency is healthy
	Check(ctx context.Context) error
}

// HTTPChecker probes a dependency over HTTP; any 2xx or 3xx status is healthy
type HTTPChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPChecker creates an HTTP health checker for a dependency endpoint
func NewHTTPChecker(name, url string) *HTTPChecker {
	return &HTTPChecker{
		name: name,
		url:  url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *HTTPChecker) Name() string {
	return c.name
}

func (c *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unhealthy status %d from %s", resp.StatusCode, c.url)
	}
	return nil
}

// CommandChecker probes a local toolchain dependency by running a command
type CommandChecker struct {
	name    string
	command string
	args    []string
}

// NewCommandChecker creates a checker that runs the given probe command
func NewCommandChecker(name, command string, args ...string) *CommandChecker {
	return &CommandChecker{
		name:    name,
		command: command,
		args:    args,
	}
}

func (c *CommandChecker) Name() string {
	return c.name
}

func (c *CommandChecker) Check(ctx context.Context) error {
	if _, err := exec.LookPath(c.command); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", c.command, err)
	}

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s probe failed: %w", c.command, err)
	}
	return nil
}

// StaticChecker reports a fixed health state; used by tests and as a
// placeholder for dependencies without a probe
type StaticChecker struct {
	name    string
	healthy bool
	mutex   sync.Mutex
}

// NewStaticChecker creates a checker with a settable fixed state
func NewStaticChecker(name string, healthy bool) *StaticChecker {
	return &StaticChecker{name: name, healthy: healthy}
}

func (c *StaticChecker) Name() string {
	return c.name
}

// SetHealthy updates the reported state
func (c *StaticChecker) SetHealthy(healthy bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.healthy = healthy
}

func (c *StaticChecker) Check(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.healthy {
		return fmt.Errorf("%s is unhealthy", c.name)
	}
	return nil
}

// Config holds monitor configuration
type Config struct {
	// Interval between health cycles
	Interval time.Duration
	// CheckTimeout bounds each individual dependency probe
	CheckTimeout time.Duration
}

// DefaultConfig returns default monitor configuration
func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		CheckTimeout: 5 * time.Second,
	}
}

// Monitor runs the registered checkers on a schedule and hands each fresh
// snapshot to subscribers. A panicking checker marks its dependency
// unhealthy instead of crashing the cycle.
type Monitor struct {
	config  Config
	logger  *logging.Logger
	metrics *metrics.Metrics

	mutex       sync.Mutex
	checkers    []Checker
	subscribers []func(Snapshot)
	last        Snapshot
	stopChan    chan struct{}
	running     bool
}

// NewMonitor creates a health monitor
func NewMonitor(config Config, logger *logging.Logger, m *metrics.Metrics) *Monitor {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Monitor{
		config:   config,
		logger:   logger,
		metrics:  m,
		stopChan: make(chan struct{}),
	}
}

// Register adds a dependency checker
func (mon *Monitor) Register(checker Checker) {
	mon.mutex.Lock()
	defer mon.mutex.Unlock()
	mon.checkers = append(mon.checkers, checker)
}

// Subscribe registers a callback invoked with every fresh snapshot
func (mon *Monitor) Subscribe(fn func(Snapshot)) {
	mon.mutex.Lock()
	defer mon.mutex.Unlock()
	mon.subscribers = append(mon.subscribers, fn)
}

// Collect runs every checker once and returns a fresh snapshot
func (mon *Monitor) Collect(ctx context.Context) Snapshot {
	mon.mutex.Lock()
	checkers := make([]Checker, len(mon.checkers))
	copy(checkers, mon.checkers)
	mon.mutex.Unlock()

	snapshot := make(Snapshot, len(checkers))
	for _, checker := range checkers {
		healthy := mon.runCheck(ctx, checker)
		snapshot[checker.Name()] = healthy
		mon.metrics.SetDependencyHealth(checker.Name(), healthy)
	}

	mon.mutex.Lock()
	mon.last = snapshot
	mon.mutex.Unlock()

	return snapshot
}

func (mon *Monitor) runCheck(ctx context.Context, checker Checker) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			mon.logger.Error("Health checker panicked",
				"dependency", checker.Name(),
				"panic", fmt.Sprintf("%v", r),
			)
			healthy = false
		}
	}()

	checkCtx, cancel := context.WithTimeout(ctx, mon.config.CheckTimeout)
	defer cancel()

	started := time.Now()
	err := checker.Check(checkCtx)
	mon.metrics.RecordHealthCheck(checker.Name(), time.Since(started))

	if err != nil {
		mon.logger.LogDependencyEvent(ctx, "health_check", checker.Name(), false, map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return true
}

// Last returns the most recent snapshot, or nil before the first cycle
func (mon *Monitor) Last() Snapshot {
	mon.mutex.Lock()
	defer mon.mutex.Unlock()
	return mon.last
}

// Start runs the health cycle loop until the context is cancelled or Stop is
// called. The first cycle runs immediately.
func (mon *Monitor) Start(ctx context.Context) {
	mon.mutex.Lock()
	if mon.running {
		mon.mutex.Unlock()
		return
	}
	mon.running = true
	mon.mutex.Unlock()

	go mon.loop(ctx)
	mon.logger.Info("Health monitor started", "interval", mon.config.Interval.String())
}

// Stop halts the health cycle loop
func (mon *Monitor) Stop() {
	mon.mutex.Lock()
	defer mon.mutex.Unlock()

	if !mon.running {
		return
	}
	close(mon.stopChan)
	mon.running = false
	mon.logger.Info("Health monitor stopped")
}

func (mon *Monitor) loop(ctx context.Context) {
	mon.cycle(ctx)

	ticker := time.NewTicker(mon.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-mon.stopChan:
			return
		case <-ticker.C:
			mon.cycle(ctx)
		}
	}
}

func (mon *Monitor) cycle(ctx context.Context) {
	snapshot := mon.Collect(ctx)

	mon.mutex.Lock()
	subscribers := make([]func(Snapshot), len(mon.subscribers))
	copy(subscribers, mon.subscribers)
	mon.mutex.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}
