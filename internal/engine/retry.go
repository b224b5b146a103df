package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines retry behavior for completion calls.
type RetryPolicy struct {
	MaxRetries   int           // Maximum number of retry attempts (0 = no retries)
	InitialDelay time.Duration // Initial delay before first retry
	MaxDelay     time.Duration // Maximum delay cap
	Multiplier   float64       // Exponential backoff multiplier
	Jitter       bool          // Whether to add random jitter to delays
}

// DefaultRetryPolicy returns the standard completion retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// retryCompletion executes one completion call with retry on transient
// provider failures. Non-retryable failures surface immediately; "maybe"
// class failures (deadline-flavored) get at most two attempts so retries
// never eat the whole processing budget.
func retryCompletion(
	ctx context.Context,
	policy RetryPolicy,
	fn func(ctx context.Context) (Completion, error),
	onRetry func(attempt int, delay time.Duration, err error),
) (Completion, error) {
	attempt := 0

	for {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		class := classifyCompletionError(err)
		if class == retryNo {
			return Completion{}, err
		}
		if attempt >= policy.MaxRetries {
			return Completion{}, fmt.Errorf("retries exhausted after %d attempts: %w", attempt, err)
		}
		if class == retryMaybe && attempt >= 2 {
			return Completion{}, fmt.Errorf("guarded retries exhausted after %d attempts: %w", attempt, err)
		}

		delay := backoffDelay(policy, attempt)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}

		select {
		case <-ctx.Done():
			return Completion{}, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}

		attempt++
	}
}

// backoffDelay computes the exponential backoff delay for one attempt.
func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt))
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	if policy.Jitter {
		// Up to 25% jitter to spread thundering herds.
		delay += delay * 0.25 * rand.Float64()
	}
	return time.Duration(delay)
}
