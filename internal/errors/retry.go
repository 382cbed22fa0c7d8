package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"agentcore/internal/logging"
)

// RetryPolicy configures bounded retry with exponential backoff and jitter.
type RetryPolicy struct {
	MaxAttempts       int           // Total attempts including the first call (default: 5)
	InitialDelay      time.Duration // Delay before the first retry (default: 1s)
	MaxDelay          time.Duration // Cap applied before jitter (default: 30s)
	BackoffMultiplier float64       // Growth factor per retry (default: 2.0)
	JitterFactor      float64       // Extra random delay as a fraction of the delay (default: 0.1)
}

// DefaultRetryPolicy returns the defaults used by the agent runtime.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       5,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.1,
	}
}

// Normalize clamps invalid values so the policy can always be executed.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = 1
	}
	if p.JitterFactor < 0 {
		p.JitterFactor = 0
	}
	return p
}

// BackoffDelay returns the pre-jitter wait before retry number retry (1-based):
// min(InitialDelay * BackoffMultiplier^(retry-1), MaxDelay).
func (p RetryPolicy) BackoffDelay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	raw := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(retry-1))
	if math.IsInf(raw, 0) || math.IsNaN(raw) || raw > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(raw)
}

// Jitter adds a uniformly random amount in [0, delay*JitterFactor] using
// randFloat, which must return values in [0, 1).
func (p RetryPolicy) Jitter(delay time.Duration, randFloat func() float64) time.Duration {
	if p.JitterFactor <= 0 || delay <= 0 {
		return delay
	}
	if randFloat == nil {
		randFloat = rand.Float64
	}
	return delay + time.Duration(float64(delay)*p.JitterFactor*randFloat())
}

// RetryWithResult executes a function that returns a result with retry logic.
// Only transient errors are retried.
func RetryWithResult[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	return RetryWithResultAndLog(ctx, policy, fn, nil)
}

// RetryWithResultAndLog executes a function that returns a result with retry logic and custom logger
func RetryWithResultAndLog[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error), logger logging.Logger) (T, error) {
	logger = logging.OrNop(logger)
	policy = policy.Normalize()

	var lastErr error
	var zeroValue T

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			logger.Debug("Context cancelled, stopping retries")
			return zeroValue, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("Retry succeeded after %d attempts", attempt)
			}
			return result, nil
		}

		lastErr = err
		logger.Debug("Attempt %d/%d failed: %v", attempt, policy.MaxAttempts, err)

		if !IsTransient(err) {
			return zeroValue, err
		}
		if attempt == policy.MaxAttempts {
			logger.Warn("Max retries (%d) exhausted", policy.MaxAttempts)
			break
		}

		delay := policy.Jitter(policy.BackoffDelay(attempt), nil)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zeroValue, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	return zeroValue, fmt.Errorf("max retries exceeded: %w", lastErr)
}
