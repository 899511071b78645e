package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		wantErr string
	}{
		{
			name:   "defaults are valid",
			policy: DefaultRetryPolicy(),
		},
		{
			name: "zero retries is valid",
			policy: RetryPolicy{
				MaxRetries:      0,
				BaseDelay:       time.Millisecond,
				MaxDelay:        time.Second,
				ExponentialBase: 2,
			},
		},
		{
			name: "negative retries",
			policy: RetryPolicy{
				MaxRetries:      -1,
				BaseDelay:       time.Millisecond,
				MaxDelay:        time.Second,
				ExponentialBase: 2,
			},
			wantErr: "max retries",
		},
		{
			name: "zero base delay",
			policy: RetryPolicy{
				MaxRetries:      3,
				BaseDelay:       0,
				MaxDelay:        time.Second,
				ExponentialBase: 2,
			},
			wantErr: "base delay",
		},
		{
			name: "zero max delay",
			policy: RetryPolicy{
				MaxRetries:      3,
				BaseDelay:       time.Millisecond,
				MaxDelay:        0,
				ExponentialBase: 2,
			},
			wantErr: "max delay",
		},
		{
			name: "exponential base of one",
			policy: RetryPolicy{
				MaxRetries:      3,
				BaseDelay:       time.Millisecond,
				MaxDelay:        time.Second,
				ExponentialBase: 1,
			},
			wantErr: "exponential base",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestRetryPolicy_DelayForAttempt(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries:      5,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        1 * time.Second,
		ExponentialBase: 2.0,
	}

	assert.Equal(t, 100*time.Millisecond, policy.DelayForAttempt(0))
	assert.Equal(t, 200*time.Millisecond, policy.DelayForAttempt(1))
	assert.Equal(t, 400*time.Millisecond, policy.DelayForAttempt(2))
	assert.Equal(t, 800*time.Millisecond, policy.DelayForAttempt(3))
	// Capped at MaxDelay from here on
	assert.Equal(t, 1*time.Second, policy.DelayForAttempt(4))
	assert.Equal(t, 1*time.Second, policy.DelayForAttempt(10))
}

func TestRetryPolicy_DelayWithNonIntegerBase(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        time.Minute,
		ExponentialBase: 1.5,
	}

	assert.Equal(t, 100*time.Millisecond, policy.DelayForAttempt(0))
	assert.Equal(t, 150*time.Millisecond, policy.DelayForAttempt(1))
	assert.Equal(t, 225*time.Millisecond, policy.DelayForAttempt(2))
}
