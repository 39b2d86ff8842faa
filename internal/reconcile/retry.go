package reconcile

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// retryConfig configures the apply step's retry behavior. Reimplemented
// from the teacher's exponential-backoff pattern, scoped to exactly one
// use: a transient kernel-filter restore failure (e.g. a momentarily
// busy xtables lock). Parse and compile are pure and are never retried.
type retryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// retryApply runs fn up to cfg.MaxAttempts times with jittered
// exponential backoff between attempts, stopping early on success or
// context cancellation.
func retryApply(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(calculateDelay(attempt, cfg)):
		}
	}
	return lastErr
}

func calculateDelay(attempt int, cfg retryConfig) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt))
	delay += delay * 0.25 * rand.Float64()
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
