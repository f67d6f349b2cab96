package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryProvider is a decorator that retries transient errors with
// exponential backoff and jitter.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WithRetry wraps a Provider with retry logic.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	return &RetryProvider{inner: p, config: cfg}
}

// Generate calls the inner provider until it succeeds or the retry budget
// is spent. Failures always come back as *ErrRequestFailed.
func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	retriesLeft := max(r.config.MaxRetries, 0)
	invalidRetried := false
	attempts := 0

	for {
		attempts++
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}

		if retriesLeft <= 0 || !r.shouldRetry(err, &invalidRetried) {
			return nil, &ErrRequestFailed{Attempts: attempts, Err: err}
		}

		wait := r.backoff(attempts-1, err)
		select {
		case <-ctx.Done():
			return nil, &ErrRequestFailed{Attempts: attempts, Err: ctx.Err()}
		case <-time.After(wait):
		}
		retriesLeft--
	}
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// shouldRetry determines if an error is retryable.
func (r *RetryProvider) shouldRetry(err error, invalidRetried *bool) bool {
	// Context errors are never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// A per-attempt timeout surfaces as DeadlineExceeded too; only the
		// caller's own deadline is final.
		var to *ErrAttemptTimeout
		return errors.As(err, &to)
	}

	// Max tokens is a configuration issue, not transient.
	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &maxTok) {
		return false
	}

	// Invalid response gets one retry.
	var invResp *ErrInvalidResponse
	if errors.As(err, &invResp) {
		if *invalidRetried {
			return false
		}
		*invalidRetried = true
		return true
	}

	// Rate limit, provider unavailable and network errors are transient.
	return true
}

// backoff computes the wait duration for the given attempt.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	// Respect RetryAfter for rate limits.
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if r.config.MaxWait > 0 && wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter, plus a uniform [0, Jitter) spread.
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if r.config.Jitter > 0 {
		wait += rand.Float64() * float64(r.config.Jitter)
	}

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
