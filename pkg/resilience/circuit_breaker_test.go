package resilience

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("search", DefaultCircuitBreakerConfig())

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.CanExecute())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("search", CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
	})

	for i := 0; i < 4; i++ {
		cb.OnFailure(errors.New("connection refused"))
		assert.Equal(t, StateClosed, cb.State(), "breaker must stay closed below threshold")
	}

	cb.OnFailure(errors.New("connection refused"))
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.CanExecute())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("search", CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
	})

	cb.OnFailure(errors.New("timeout"))
	cb.OnFailure(errors.New("timeout"))
	cb.OnSuccess()

	// The counter restarted, so two more failures are not enough to open
	cb.OnFailure(errors.New("timeout"))
	cb.OnFailure(errors.New("timeout"))
	assert.Equal(t, StateClosed, cb.State())

	cb.OnFailure(errors.New("timeout"))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	cb := NewCircuitBreaker("reputation_api", CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  20 * time.Millisecond,
		SuccessThreshold: 2,
	})

	cb.OnFailure(errors.New("503"))
	require.Equal(t, StateOpen, cb.State())
	require.False(t, cb.CanExecute())

	time.Sleep(30 * time.Millisecond)

	// The availability check itself performs the transition
	assert.True(t, cb.CanExecute())
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	cb := NewCircuitBreaker("reputation_api", CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	cb.OnFailure(errors.New("503"))
	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.CanExecute())
	require.Equal(t, StateHalfOpen, cb.State())

	cb.OnSuccess()
	assert.Equal(t, StateHalfOpen, cb.State(), "one success is not enough")

	cb.OnSuccess()
	assert.Equal(t, StateClosed, cb.State())

	status := cb.Status()
	assert.Equal(t, 0, status.FailureCount)
	assert.Equal(t, 0, status.SuccessCount)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("doc_compiler", CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	cb.OnFailure(errors.New("exit status 1"))
	cb.OnFailure(errors.New("exit status 1"))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.CanExecute())
	require.Equal(t, StateHalfOpen, cb.State())

	cb.OnFailure(errors.New("exit status 1"))
	assert.Equal(t, StateOpen, cb.State())
	// Failure tally survives the failed probe
	assert.Equal(t, 2, cb.Status().FailureCount)
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string

	cb := NewCircuitBreaker("search", CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 1,
		OnStateChange: func(service string, from, to CircuitState) {
			transitions = append(transitions, fmt.Sprintf("%s:%s->%s", service, from, to))
		},
	})

	cb.OnFailure(errors.New("down"))
	time.Sleep(20 * time.Millisecond)
	cb.CanExecute()
	cb.OnSuccess()

	assert.Equal(t, []string{
		"search:CLOSED->OPEN",
		"search:OPEN->HALF_OPEN",
		"search:HALF_OPEN->CLOSED",
	}, transitions)
}

func TestCircuitBreaker_StatusSnapshot(t *testing.T) {
	cb := NewCircuitBreaker("search", DefaultCircuitBreakerConfig())

	status := cb.Status()
	assert.Equal(t, "search", status.Service)
	assert.Equal(t, "CLOSED", status.State)
	assert.Equal(t, 5, status.FailureThreshold)
	assert.Equal(t, 60.0, status.RecoveryTimeout)
	assert.Equal(t, 2, status.SuccessThreshold)
	assert.Nil(t, status.LastFailureTime)

	cb.OnFailure(errors.New("down"))
	status = cb.Status()
	assert.Equal(t, 1, status.FailureCount)
	require.NotNil(t, status.LastFailureTime)
	assert.WithinDuration(t, time.Now(), *status.LastFailureTime, time.Second)
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
}
