package icloud

import (
	"errors"
	"time"

	"photovault/internal/logging"
	"photovault/internal/metrics"
)

// RetryPolicy configures retry behavior for transient remote failures.
// Delays are fixed; only calls failing with ErrServiceUnavailable are
// retried. Every other failure is returned to the caller on the first
// attempt.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns the standard policy: three attempts with a
// fixed one-second delay between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       time.Second,
	}
}

// Do runs fn under the policy. The operation name is used for logging
// and metric labels only.
func (p RetryPolicy) Do(operation string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logging.Info("remote %s succeeded on attempt %d", operation, attempt)
			}
			return nil
		}

		lastErr = err

		if !errors.Is(err, ErrServiceUnavailable) {
			return err
		}

		if attempt < attempts {
			metrics.RemoteRetriesTotal.WithLabelValues(operation).Inc()
			logging.Warn("remote %s unavailable, retrying in %v (attempt %d/%d)",
				operation, p.Delay, attempt, attempts)
			time.Sleep(p.Delay)
		}
	}

	logging.Error("remote %s failed after %d attempts: %v", operation, attempts, lastErr)
	return lastErr
}
