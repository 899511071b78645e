package resilience

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/sentinelops/intel-gateway/pkg/errors"
	"github.com/sentinelops/intel-gateway/pkg/logging"
	"github.com/sentinelops/intel-gateway/pkg/metrics"
)

// Operation is a unit of work executed under a resilience policy
type Operation func(ctx context.Context) (interface{}, error)

// ErrorRecorder receives every structured error the orchestrator produces.
// The analytics aggregator implements it.
type ErrorRecorder interface {
	RecordError(code int, errorType string, errContext map[string]interface{})
}

// Config holds orchestrator configuration
type Config struct {
	Retry          RetryPolicy
	DefaultTimeout time.Duration
	Breaker        CircuitBreakerConfig
}

// DefaultConfig returns the documented default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		Retry:          DefaultRetryPolicy(),
		DefaultTimeout: 30 * time.Second,
		Breaker:        DefaultCircuitBreakerConfig(),
	}
}

// Validate rejects invalid configuration; the gateway must not start serving
// with a broken resilience policy
func (c Config) Validate() error {
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry policy: %w", err)
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("default timeout must be > 0, got %s", c.DefaultTimeout)
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker failure threshold must be > 0, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.RecoveryTimeout <= 0 {
		return fmt.Errorf("breaker recovery timeout must be > 0, got %s", c.Breaker.RecoveryTimeout)
	}
	if c.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("breaker success threshold must be > 0, got %d", c.Breaker.SuccessThreshold)
	}
	return nil
}

// Orchestrator is the single place where failures become structured,
// observable errors. It owns one lazily-created circuit breaker per
// dependency and routes every terminal failure through the error recorder.
type Orchestrator struct {
	config   Config
	logger   *logging.Logger
	recorder ErrorRecorder
	metrics  *metrics.Metrics

	mutex    sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewOrchestrator creates an orchestrator, failing fast on invalid config
func NewOrchestrator(config Config, logger *logging.Logger, recorder ErrorRecorder, m *metrics.Metrics) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator configuration invalid: %w", err)
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Orchestrator{
		config:   config,
		logger:   logger,
		recorder: recorder,
		metrics:  m,
		breakers: make(map[string]*CircuitBreaker),
	}, nil
}

// Breaker returns the circuit breaker for a service, creating it on first use.
// Breakers live for the process lifetime.
func (o *Orchestrator) Breaker(service string) *CircuitBreaker {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	cb, ok := o.breakers[service]
	if !ok {
		config := o.config.Breaker
		userCallback := config.OnStateChange
		config.OnStateChange = func(svc string, from, to CircuitState) {
			o.metrics.SetCircuitBreakerState(svc, int(to))
			if userCallback != nil {
				userCallback(svc, from, to)
			}
		}
		cb = NewCircuitBreaker(service, config)
		o.breakers[service] = cb
	}
	return cb
}

// BreakerStatus returns the status snapshot for a known service breaker
func (o *Orchestrator) BreakerStatus(service string) (CircuitBreakerStatus, bool) {
	o.mutex.Lock()
	cb, ok := o.breakers[service]
	o.mutex.Unlock()
	if !ok {
		return CircuitBreakerStatus{}, false
	}
	return cb.Status(), true
}

// AllBreakerStatuses returns snapshots for every breaker created so far
func (o *Orchestrator) AllBreakerStatuses() map[string]CircuitBreakerStatus {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	statuses := make(map[string]CircuitBreakerStatus, len(o.breakers))
	for name, cb := range o.breakers {
		statuses[name] = cb.Status()
	}
	return statuses
}

// ExecuteWithTimeout races the operation against a timer. On expiry the
// operation is abandoned and a timeout error is returned; the operation's
// eventual result is discarded. Timeouts are never retried here — retry is a
// separately composed policy.
func (o *Orchestrator) ExecuteWithTimeout(ctx context.Context, operationName string, op Operation, timeout time.Duration) (interface{}, error) {
	if timeout <= 0 {
		timeout = o.config.DefaultTimeout
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	// Buffered so the abandoned goroutine can still complete and exit
	done := make(chan outcome, 1)
	go func() {
		result, err := op(opCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-opCtx.Done():
		if stderrors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			o.metrics.RecordTimeout(operationName)
			return nil, o.TimeoutError(operationName, timeout.Seconds())
		}
		return nil, opCtx.Err()
	}
}

// ExecuteWithRetry runs the operation with exponential backoff. The operation
// is invoked freshly for every attempt; with MaxRetries of N it is invoked at
// most N+1 times. After exhaustion the last failure is returned.
func (o *Orchestrator) ExecuteWithRetry(ctx context.Context, operationName string, op Operation, policy RetryPolicy) (interface{}, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("retry policy invalid for %s: %w", operationName, err)
	}

	var lastErr error
	attempts := policy.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				o.logger.Info("Operation succeeded after retry",
					"operation", operationName,
					"attempt", attempt+1,
				)
			}
			return result, nil
		}

		lastErr = err

		if policy.Retryable != nil && !policy.Retryable(err) {
			o.logger.Debug("Error is not retryable, stopping",
				"operation", operationName,
				"error", err.Error(),
				"attempt", attempt+1,
			)
			return nil, err
		}

		if attempt == attempts-1 {
			break
		}

		delay := policy.DelayForAttempt(attempt)

		o.logger.Debug("Operation failed, retrying",
			"operation", operationName,
			"error", err.Error(),
			"attempt", attempt+1,
			"max_attempts", attempts,
			"delay", delay.String(),
		)

		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err, delay)
		}
		o.metrics.RecordRetry(operationName)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	o.logger.Error("Operation failed after all retry attempts",
		"operation", operationName,
		"error", lastErr.Error(),
		"attempts", attempts,
	)

	return nil, lastErr
}

// ExecuteGuarded runs the operation behind the service's circuit breaker.
// A blocked call returns a circuit-open error without invoking the operation;
// otherwise the outcome is routed into the breaker and, on failure, the
// error recorder.
func (o *Orchestrator) ExecuteGuarded(ctx context.Context, service string, op Operation) (interface{}, error) {
	cb := o.Breaker(service)

	if !cb.CanExecute() {
		return nil, o.CircuitOpenError(service)
	}

	result, err := op(ctx)
	if err != nil {
		cb.OnFailure(err)
		o.observeFailure(err, map[string]interface{}{
			"service": service,
		})
		return nil, err
	}

	cb.OnSuccess()
	return result, nil
}

// CreateError builds a structured error envelope, logs it, and records it.
// Every caller-visible error shape is produced here or through the
// convenience constructors below.
func (o *Orchestrator) CreateError(code int, message string, data map[string]interface{}, requestID string) *errors.StructuredError {
	se := errors.New(code, message, data, requestID)
	o.observe(se)
	return se
}

func (o *Orchestrator) ParseError(detail string) *errors.StructuredError {
	se := errors.NewParseError(detail)
	o.observe(se)
	return se
}

func (o *Orchestrator) InvalidRequestError(detail string) *errors.StructuredError {
	se := errors.NewInvalidRequest(detail)
	o.observe(se)
	return se
}

func (o *Orchestrator) MethodNotFoundError(method string) *errors.StructuredError {
	se := errors.NewMethodNotFound(method)
	o.observe(se)
	return se
}

func (o *Orchestrator) InvalidParamsError(detail string) *errors.StructuredError {
	se := errors.NewInvalidParams(detail)
	o.observe(se)
	return se
}

func (o *Orchestrator) InternalError(detail string) *errors.StructuredError {
	se := errors.NewInternalError(detail)
	o.observe(se)
	return se
}

func (o *Orchestrator) ValidationError(tool string, fieldErrors map[string]string) *errors.StructuredError {
	se := errors.NewValidationError(tool, fieldErrors)
	o.observe(se)
	return se
}

func (o *Orchestrator) TimeoutError(tool string, timeoutSeconds float64) *errors.StructuredError {
	se := errors.NewTimeoutError(tool, timeoutSeconds)
	o.observe(se)
	return se
}

func (o *Orchestrator) ResourceNotFoundError(resource string) *errors.StructuredError {
	se := errors.NewResourceNotFound(resource)
	o.observe(se)
	return se
}

func (o *Orchestrator) ResourceAccessDeniedError(resource string) *errors.StructuredError {
	se := errors.NewResourceAccessDenied(resource)
	o.observe(se)
	return se
}

func (o *Orchestrator) ResourceUnavailableError(resource string) *errors.StructuredError {
	se := errors.NewResourceUnavailable(resource)
	o.observe(se)
	return se
}

func (o *Orchestrator) ToolUnavailableError(tool string, missingFeatures []string) *errors.StructuredError {
	se := errors.NewToolUnavailable(tool, missingFeatures)
	o.observe(se)
	return se
}

func (o *Orchestrator) ExternalServiceError(service, upstreamMessage string) *errors.StructuredError {
	se := errors.NewExternalServiceError(service, upstreamMessage)
	o.observe(se)
	return se
}

func (o *Orchestrator) RateLimitError(service string, retryAfterSeconds float64) *errors.StructuredError {
	se := errors.NewRateLimitError(service, retryAfterSeconds)
	o.observe(se)
	return se
}

func (o *Orchestrator) CircuitOpenError(service string) *errors.StructuredError {
	se := errors.NewCircuitBreakerOpen(service)
	o.observe(se)
	return se
}

// observe logs and records an envelope exactly once
func (o *Orchestrator) observe(se *errors.StructuredError) {
	if se.WasObserved() {
		return
	}
	se.MarkObserved()

	o.logger.Warn("Structured error observed",
		"code", se.Err.Code,
		"error_type", string(se.Type()),
		"message", se.Err.Message,
		"data", se.Err.Data,
		"timestamp", se.Timestamp.Format(time.RFC3339Nano),
	)

	o.metrics.RecordError(se.Err.Code, string(se.Type()))

	if o.recorder != nil {
		o.recorder.RecordError(se.Err.Code, string(se.Type()), se.Err.Data)
	}
}

// observeFailure records a terminal failure. Envelopes the orchestrator
// built were already counted at construction; envelopes built elsewhere
// (the client adapters map upstream HTTP statuses directly) are recorded
// here with their real code and type. Anything else counts as internal.
func (o *Orchestrator) observeFailure(err error, errContext map[string]interface{}) {
	if se, ok := errors.AsStructured(err); ok {
		o.observe(se)
		return
	}

	o.metrics.RecordError(errors.CodeInternalError, string(errors.ErrorTypeInternal))
	if o.recorder != nil {
		if errContext == nil {
			errContext = make(map[string]interface{})
		}
		errContext["error"] = err.Error()
		o.recorder.RecordError(errors.CodeInternalError, string(errors.ErrorTypeInternal), errContext)
	}
}
