package resilience

import (
	"sync"
	"time"

	"github.com/sentinelops/intel-gateway/pkg/logging"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed - circuit is closed, requests are allowed
	StateClosed CircuitState = iota
	// StateOpen - circuit is open, requests are rejected
	StateOpen
	// StateHalfOpen - circuit is half-open, probationary requests are allowed
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures in the closed
	// state that opens the circuit
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before a probe
	// request is allowed
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of consecutive successes in the
	// half-open state that closes the circuit
	SuccessThreshold int
	// OnStateChange is called whenever the state of the circuit breaker changes
	OnStateChange func(service string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the documented default configuration
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
	}
}

// CircuitBreaker prevents repeated calls into a dependency that is currently
// failing and automatically probes for recovery. One instance guards one
// dependency for the process lifetime; all mutating methods are serialized
// under a mutex since callers run on OS threads.
type CircuitBreaker struct {
	service string
	config  CircuitBreakerConfig

	mutex           sync.Mutex
	state           CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time

	logger *logging.Logger
}

// CircuitBreakerStatus is a read-only snapshot, safe to hand to reporting tools
type CircuitBreakerStatus struct {
	Service          string     `json:"service"`
	State            string     `json:"state"`
	FailureCount     int        `json:"failure_count"`
	SuccessCount     int        `json:"success_count"`
	LastFailureTime  *time.Time `json:"last_failure_time,omitempty"`
	FailureThreshold int        `json:"failure_threshold"`
	RecoveryTimeout  float64    `json:"recovery_timeout_seconds"`
	SuccessThreshold int        `json:"success_threshold"`
}

// NewCircuitBreaker creates a new circuit breaker for the named service
func NewCircuitBreaker(service string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}

	return &CircuitBreaker{
		service: service,
		config:  config,
		state:   StateClosed,
		logger:  logging.GetLogger(),
	}
}

// CanExecute reports whether a guarded call may be attempted. It must be
// called before every guarded operation. When the circuit is open and the
// recovery timeout has elapsed since the last failure, the check itself
// transitions the breaker to half-open and permits the probe.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if !cb.lastFailureTime.IsZero() && time.Since(cb.lastFailureTime) >= cb.config.RecoveryTimeout {
			cb.setState(StateHalfOpen)
			cb.successCount = 0
			return true
		}
		return false
	default:
		return false
	}
}

// OnSuccess records a successful guarded call
func (cb *CircuitBreaker) OnSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	}
}

// OnFailure records a failed guarded call. The failure tally is preserved
// across a half-open probe failure so that threshold comparisons still see
// the original count.
func (cb *CircuitBreaker) OnFailure(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.successCount = 0
		cb.setState(StateOpen)
	case StateOpen:
		cb.failureCount++
	}

	if err != nil {
		cb.logger.Debug("Circuit breaker recorded failure",
			"service", cb.service,
			"state", cb.state.String(),
			"failure_count", cb.failureCount,
			"error", err.Error(),
		)
	}
}

// State returns the current state without side effects
func (cb *CircuitBreaker) State() CircuitState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Service returns the guarded service name
func (cb *CircuitBreaker) Service() string {
	return cb.service
}

// Status returns a read-only snapshot of the breaker
func (cb *CircuitBreaker) Status() CircuitBreakerStatus {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	status := CircuitBreakerStatus{
		Service:          cb.service,
		State:            cb.state.String(),
		FailureCount:     cb.failureCount,
		SuccessCount:     cb.successCount,
		FailureThreshold: cb.config.FailureThreshold,
		RecoveryTimeout:  cb.config.RecoveryTimeout.Seconds(),
		SuccessThreshold: cb.config.SuccessThreshold,
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		status.LastFailureTime = &t
	}
	return status
}

// setState must be called with the mutex held
func (cb *CircuitBreaker) setState(state CircuitState) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.service, prev, state)
	}

	cb.logger.Info("Circuit breaker state changed",
		"service", cb.service,
		"from", prev.String(),
		"to", state.String(),
		"failure_count", cb.failureCount,
		"success_count", cb.successCount,
	)
}
