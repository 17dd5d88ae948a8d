package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func retryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestRunRetriesTemporaryFailure(t *testing.T) {
	errTemp := errors.New("temporary")
	exec := NewExecutor(retryConfig(), func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})

	attempts := 0
	err := exec.Run(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRunDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(retryConfig(), func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Run(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRunReturnsFinalAttemptErrorWhenExhausted(t *testing.T) {
	exec := NewExecutor(retryConfig(), func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})

	attempts := 0
	errLast := errors.New("attempt 3 failed")
	err := exec.Run(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts == 3 {
			return errLast
		}
		return errors.New("earlier failure")
	})
	if !errors.Is(err, errLast) {
		t.Fatalf("expected the final attempt's error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	errTemp := errors.New("temporary")
	exec := NewExecutor(retryConfig(), func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := exec.Run(ctx, "op", func(context.Context) error {
		attempts++
		cancel()
		return errTemp
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected last attempt error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt before cancel stops retries, got %d", attempts)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     1 * time.Millisecond,
		RetryMultiplier:     2,

		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	})

	backendErr := errors.New("backend down")
	for i := 0; i < 2; i++ {
		_ = exec.Run(context.Background(), "op", func(context.Context) error {
			return backendErr
		})
	}

	err := exec.Run(context.Background(), "op", func(context.Context) error {
		t.Fatalf("callback must not run with an open breaker")
		return nil
	})
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open-circuit error, got %v", err)
	}
}
