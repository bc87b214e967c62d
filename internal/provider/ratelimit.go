package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how often generation requests leave the process.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero or negative disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests allowed at once. Defaults to 1.
	Burst int `yaml:"burst"`
}

// RateLimited wraps a Provider with a token-bucket limiter. Each Complete or
// Stream call waits for a token, honoring context cancellation.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with the given limit.
func NewRateLimited(inner Provider, cfg RateLimitConfig) *RateLimited {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Complete implements Provider.
func (l *RateLimited) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return CompletionResponse{}, fmt.Errorf("provider: waiting for rate limiter: %w", err)
	}
	return l.inner.Complete(ctx, req)
}

// Stream implements Provider.
func (l *RateLimited) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider: waiting for rate limiter: %w", err)
	}
	return l.inner.Stream(ctx, req)
}

// ModelName implements Provider.
func (l *RateLimited) ModelName() string {
	return l.inner.ModelName()
}

// HealthCheck implements HealthChecker when the wrapped provider does.
func (l *RateLimited) HealthCheck(ctx context.Context) error {
	if hc, ok := l.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Compile-time interface assertions.
var (
	_ Provider      = (*RateLimited)(nil)
	_ HealthChecker = (*RateLimited)(nil)
)
