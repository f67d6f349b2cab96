package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// ErrAttemptTimeout is returned when a single attempt exceeds the
// configured per-request timeout while the caller's context is still live.
type ErrAttemptTimeout struct {
	Timeout time.Duration
	Err     error
}

func (e *ErrAttemptTimeout) Error() string {
	return fmt.Sprintf("LLM request timed out after %s: %v", e.Timeout, e.Err)
}

func (e *ErrAttemptTimeout) Unwrap() error { return e.Err }

type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout bounds every call to the inner provider. A zero timeout
// returns p unchanged.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{inner: p, timeout: timeout}
}

func (t *timeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.inner.Generate(attemptCtx, req)
	if err != nil && ctx.Err() == nil && attemptCtx.Err() == context.DeadlineExceeded {
		return nil, &ErrAttemptTimeout{Timeout: t.timeout, Err: err}
	}
	return resp, err
}

func (t *timeoutProvider) ModelID() string { return t.inner.ModelID() }

type pacingProvider struct {
	inner Provider
	wait  time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// WithPacing sleeps a uniformly random duration in [0, wait) before each
// request. A zero wait returns p unchanged.
func WithPacing(p Provider, wait time.Duration) Provider {
	if wait <= 0 {
		return p
	}
	return &pacingProvider{inner: p, wait: wait, sleep: sleepCtx}
}

func (p *pacingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	d := time.Duration(rand.Float64() * float64(p.wait))
	if err := p.sleep(ctx, d); err != nil {
		return nil, err
	}
	return p.inner.Generate(ctx, req)
}

func (p *pacingProvider) ModelID() string { return p.inner.ModelID() }

type rateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// WithRateLimit caps the request rate at rps requests per second with a
// burst of one. A non-positive rps returns p unchanged.
func WithRateLimit(p Provider, rps float64) Provider {
	if rps <= 0 {
		return p
	}
	return &rateLimitedProvider{inner: p, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (r *rateLimitedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return r.inner.Generate(ctx, req)
}

func (r *rateLimitedProvider) ModelID() string { return r.inner.ModelID() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
