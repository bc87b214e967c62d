package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default values for RetryConfig.
const (
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = time.Second
)

// RetryConfig controls the bounded retry around generation calls.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts int `yaml:"attempts"`

	// Backoff is the base delay. The wait after attempt n (0-based) is
	// Backoff*(n+1), so delays grow linearly.
	Backoff time.Duration `yaml:"backoff"`
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = DefaultRetryAttempts
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultRetryBackoff
	}
	return c
}

// RetryOption configures optional Retrying behavior.
type RetryOption func(*Retrying)

// WithLogger injects a structured logger into the Retrying decorator.
// When nil or omitted, all log output is silently discarded (zero cost).
func WithLogger(l *slog.Logger) RetryOption {
	return func(r *Retrying) { r.logger = l }
}

// Retrying wraps a Provider with bounded, linearly backed-off retries.
// Caller cancellation is never retried.
type Retrying struct {
	inner  Provider
	config RetryConfig
	logger *slog.Logger

	// sleep is injectable for testing.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps inner with the given retry policy.
func NewRetrying(inner Provider, cfg RetryConfig, opts ...RetryOption) *Retrying {
	r := &Retrying{
		inner:  inner,
		config: cfg.withDefaults(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = discardLogger(r.logger)
	return r
}

// Complete implements Provider.
func (r *Retrying) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error
	for attempt := range r.config.Attempts {
		if attempt > 0 {
			if err := r.sleep(ctx, r.delay(attempt-1)); err != nil {
				return CompletionResponse{}, err
			}
		}

		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if isCancellation(err) {
			return CompletionResponse{}, err
		}
		lastErr = err
		r.logAttempt(attempt, err)
	}
	return CompletionResponse{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.config.Attempts, lastErr)
}

// Stream implements Provider. A stream that fails before yielding its first
// text fragment is retried like Complete; once a fragment has been handed to
// the caller, later errors are forwarded as-is.
func (r *Retrying) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	var lastErr error
	for attempt := range r.config.Attempts {
		if attempt > 0 {
			if err := r.sleep(ctx, r.delay(attempt-1)); err != nil {
				return nil, err
			}
		}

		ch, err := r.inner.Stream(ctx, req)
		if err == nil {
			var head []StreamChunk
			head, err = awaitFirstFragment(ch)
			if err == nil {
				return forward(ctx, head, ch), nil
			}
		}
		if isCancellation(err) {
			return nil, err
		}
		lastErr = err
		r.logAttempt(attempt, err)
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.config.Attempts, lastErr)
}

// ModelName implements Provider.
func (r *Retrying) ModelName() string {
	return r.inner.ModelName()
}

// HealthCheck implements HealthChecker when the wrapped provider does.
func (r *Retrying) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (r *Retrying) delay(attempt int) time.Duration {
	return r.config.Backoff * time.Duration(attempt+1)
}

func (r *Retrying) logAttempt(attempt int, err error) {
	r.logger.Warn("generation attempt failed",
		"attempt", attempt+1,
		"attempts", r.config.Attempts,
		"retryable", IsRetryable(err),
		"error", err,
	)
}

// awaitFirstFragment reads ch until the first text fragment, an error, or
// the end of the stream. Chunks read so far are returned so they can be
// replayed. On error the rest of the stream is drained.
func awaitFirstFragment(ch <-chan StreamChunk) ([]StreamChunk, error) {
	var head []StreamChunk
	for chunk := range ch {
		if chunk.Err != nil {
			//nolint:revive // intentional empty drain loop
			for range ch { //nolint:revive
			}
			return nil, chunk.Err
		}
		head = append(head, chunk)
		if chunk.Content != "" {
			break
		}
	}
	return head, nil
}

// forward replays head and then relays the rest of ch. If the caller's
// context ends first, the remaining chunks are drained so the producer
// goroutine can exit.
func forward(ctx context.Context, head []StreamChunk, ch <-chan StreamChunk) <-chan StreamChunk {
	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)
		send := func(c StreamChunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, c := range head {
			if !send(c) {
				//nolint:revive // intentional empty drain loop
				for range ch { //nolint:revive
				}
				return
			}
		}
		for c := range ch {
			if !send(c) {
				//nolint:revive // intentional empty drain loop
				for range ch { //nolint:revive
				}
				return
			}
		}
	}()
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Compile-time interface assertions.
var (
	_ Provider      = (*Retrying)(nil)
	_ HealthChecker = (*Retrying)(nil)
)
