package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubProvider is an in-package double; providertest imports this package
// and cannot be used from internal tests.
type stubProvider struct {
	mu       sync.Mutex
	calls    int
	complete func(call int) (CompletionResponse, error)
	stream   func(call int) (<-chan StreamChunk, error)
}

func (s *stubProvider) Complete(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	return s.complete(n)
}

func (s *stubProvider) Stream(_ context.Context, _ CompletionRequest) (<-chan StreamChunk, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	return s.stream(n)
}

func (s *stubProvider) ModelName() string { return "stub" }

func chunks(items ...StreamChunk) <-chan StreamChunk {
	ch := make(chan StreamChunk, len(items))
	for _, c := range items {
		ch <- c
	}
	close(ch)
	return ch
}

func newTestRetrying(inner Provider) (*Retrying, *[]time.Duration) {
	var delays []time.Duration
	r := NewRetrying(inner, RetryConfig{})
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return r, &delays
}

func TestRetryingCompleteSucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{complete: func(call int) (CompletionResponse, error) {
		if call < 3 {
			return CompletionResponse{}, ErrProviderDown
		}
		return CompletionResponse{Content: "ok"}, nil
	}}
	r, delays := newTestRetrying(inner)

	resp, err := r.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q, want ok", resp.Content)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("delays = %v, want %v", *delays, want)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Errorf("delay[%d] = %v, want %v", i, (*delays)[i], d)
		}
	}
}

func TestRetryingCompleteExhausted(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{complete: func(int) (CompletionResponse, error) {
		return CompletionResponse{}, ErrRateLimit
	}}
	r, _ := newTestRetrying(inner)

	_, err := r.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if !errors.Is(err, ErrRateLimit) {
		t.Errorf("err = %v, want wrapped ErrRateLimit", err)
	}
	if inner.calls != DefaultRetryAttempts {
		t.Errorf("calls = %d, want %d", inner.calls, DefaultRetryAttempts)
	}
}

func TestRetryingCompleteDoesNotRetryCancellation(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{complete: func(int) (CompletionResponse, error) {
		return CompletionResponse{}, context.Canceled
	}}
	r, delays := newTestRetrying(inner)

	_, err := r.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
	if len(*delays) != 0 {
		t.Errorf("delays = %v, want none", *delays)
	}
}

func TestRetryingCompleteSleepInterrupted(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{complete: func(int) (CompletionResponse, error) {
		return CompletionResponse{}, ErrProviderDown
	}}
	r := NewRetrying(inner, RetryConfig{Attempts: 3, Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Complete(ctx, CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestRetryingStreamRetriesBeforeFirstFragment(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{stream: func(call int) (<-chan StreamChunk, error) {
		switch call {
		case 1:
			return nil, ErrProviderDown
		case 2:
			return chunks(StreamChunk{Err: ErrRateLimit}), nil
		default:
			return chunks(
				StreamChunk{Content: "Thought: a"},
				StreamChunk{Content: "b"},
				StreamChunk{FinishReason: FinishReasonStop},
			), nil
		}
	}}
	r, delays := newTestRetrying(inner)

	ch, err := r.Stream(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, err := Collect(ch)
	if err != nil {
		t.Fatalf("collect error: %v", err)
	}
	if text != "Thought: ab" {
		t.Errorf("text = %q", text)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
	if len(*delays) != 2 {
		t.Errorf("delays = %v, want 2 entries", *delays)
	}
}

func TestRetryingStreamForwardsMidStreamError(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{stream: func(int) (<-chan StreamChunk, error) {
		return chunks(
			StreamChunk{Content: "partial"},
			StreamChunk{Err: ErrProviderDown},
		), nil
	}}
	r, _ := newTestRetrying(inner)

	ch, err := r.Stream(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, err := Collect(ch)
	if !errors.Is(err, ErrProviderDown) {
		t.Fatalf("err = %v, want ErrProviderDown", err)
	}
	if text != "partial" {
		t.Errorf("text = %q, want partial", text)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestRetryConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{}.withDefaults()
	if cfg.Attempts != DefaultRetryAttempts || cfg.Backoff != DefaultRetryBackoff {
		t.Errorf("defaults = %+v", cfg)
	}
	cfg = RetryConfig{Attempts: 5, Backoff: time.Millisecond}.withDefaults()
	if cfg.Attempts != 5 || cfg.Backoff != time.Millisecond {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
}
