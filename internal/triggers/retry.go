package triggers

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"message-functions/internal/repositories"
)

// RetryConfig configures redelivery of a failed trigger invocation
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay" mapstructure:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" mapstructure:"backoff_factor"`
	JitterEnabled bool          `json:"jitter_enabled" mapstructure:"jitter_enabled"`

	// Retryable decides whether an error is worth another attempt.
	// Defaults to repositories.IsRetryable.
	Retryable func(error) bool `json:"-" mapstructure:"-"`
}

// DefaultRetryConfig returns the redelivery policy used when none is configured
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func(ctx context.Context) error

// WithRetry runs op until it succeeds, fails with a non-retryable error,
// or MaxAttempts is reached. It returns the last error and the attempt count.
func WithRetry(ctx context.Context, config *RetryConfig, op RetryableOperation) (int, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.Retryable
	if retryable == nil {
		retryable = repositories.IsRetryable
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	boff := config.newBackOff()
	var lastErr error
	attempt := 0

	for attempt < maxAttempts {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt, lastErr
			}
			return attempt, err
		}

		attempt++
		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if attempt >= maxAttempts || !retryable(err) {
			break
		}

		timer := time.NewTimer(boff.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, lastErr
		case <-timer.C:
		}
	}

	return attempt, lastErr
}

// newBackOff returns the delay schedule initial_delay * backoff_factor^n, capped at
// max_delay. Jitter spreads each delay by up to 10% either way.
func (c *RetryConfig) newBackOff() *backoff.ExponentialBackOff {
	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = c.InitialDelay
	boff.Multiplier = c.BackoffFactor
	if boff.Multiplier < 1 {
		boff.Multiplier = 1
	}
	if c.MaxDelay > 0 {
		boff.MaxInterval = c.MaxDelay
	}
	boff.MaxElapsedTime = 0
	boff.RandomizationFactor = 0
	if c.JitterEnabled {
		boff.RandomizationFactor = 0.1
	}
	boff.Reset()
	return boff
}
