package triggers

import (
	"context"
	"errors"
	"testing"
	"time"

	"message-functions/internal/repositories"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 5 {
		t.Errorf("Expected MaxAttempts=5, got %d", config.MaxAttempts)
	}
	if config.InitialDelay != 200*time.Millisecond {
		t.Errorf("Expected InitialDelay=200ms, got %v", config.InitialDelay)
	}
	if config.BackoffFactor != 2.0 {
		t.Errorf("Expected BackoffFactor=2.0, got %f", config.BackoffFactor)
	}
}

func fastRetry(maxAttempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   maxAttempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	transient := repositories.ConnectionError(errors.New("connection reset"))

	t.Run("SuccessOnFirstAttempt", func(t *testing.T) {
		attempts, err := WithRetry(ctx, fastRetry(3), func(ctx context.Context) error {
			return nil
		})
		if err != nil {
			t.Fatalf("WithRetry failed: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("SuccessAfterTransientFailure", func(t *testing.T) {
		calls := 0
		attempts, err := WithRetry(ctx, fastRetry(3), func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return transient
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithRetry failed: %v", err)
		}
		if attempts != 2 {
			t.Errorf("Expected 2 attempts, got %d", attempts)
		}
	})

	t.Run("FailAfterMaxAttempts", func(t *testing.T) {
		attempts, err := WithRetry(ctx, fastRetry(3), func(ctx context.Context) error {
			return transient
		})
		if !errors.Is(err, repositories.ErrConnection) {
			t.Errorf("Expected last error to be returned, got %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("NonRetryableStopsImmediately", func(t *testing.T) {
		invalid := repositories.ValidationError("messages", "abc", errors.New("original is missing"))
		attempts, err := WithRetry(ctx, fastRetry(5), func(ctx context.Context) error {
			return invalid
		})
		if !repositories.IsValidation(err) {
			t.Errorf("Expected validation error, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("CustomRetryablePredicate", func(t *testing.T) {
		config := fastRetry(4)
		config.Retryable = func(error) bool { return true }

		attempts, _ := WithRetry(ctx, config, func(ctx context.Context) error {
			return errors.New("anything")
		})
		if attempts != 4 {
			t.Errorf("Expected 4 attempts, got %d", attempts)
		}
	})

	t.Run("ContextCancelledBeforeStart", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		attempts, err := WithRetry(cancelled, fastRetry(3), func(ctx context.Context) error {
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		if attempts != 0 {
			t.Errorf("Expected 0 attempts, got %d", attempts)
		}
	})
}

func TestNewBackOff(t *testing.T) {
	config := &RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		BackoffFactor: 2.0,
	}

	boff := config.newBackOff()
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1 * time.Second,
		1 * time.Second,
	}
	for i, w := range want {
		if got := boff.NextBackOff(); got != w {
			t.Errorf("delay %d = %v, want %v", i+1, got, w)
		}
	}

	config.JitterEnabled = true
	for i := 0; i < 20; i++ {
		delay := config.newBackOff().NextBackOff()
		if delay < 90*time.Millisecond || delay > 110*time.Millisecond {
			t.Errorf("Jittered delay %v outside [90ms, 110ms]", delay)
		}
	}
}
