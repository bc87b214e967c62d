// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/flemzord/quill/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Set the Func fields to control behavior. Unset funcs panic on call.
// All methods are safe for concurrent use.
type MockProvider struct {
	CompleteFunc    func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	StreamFunc      func(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error)
	ModelNameFunc   func() string
	HealthCheckFunc func(ctx context.Context) error

	mu            sync.Mutex
	CompleteCalls int
	StreamCalls   int
	HealthCalls   int
	Prompts       []string
}

// Complete delegates to CompleteFunc and tracks call count.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.Prompts = append(m.Prompts, req.Prompt)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// Stream delegates to StreamFunc and tracks call count.
func (m *MockProvider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	m.mu.Lock()
	m.StreamCalls++
	m.Prompts = append(m.Prompts, req.Prompt)
	m.mu.Unlock()
	return m.StreamFunc(ctx, req)
}

// ModelName delegates to ModelNameFunc, defaulting to "mock-model".
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return "mock-model"
	}
	return m.ModelNameFunc()
}

// HealthCheck delegates to HealthCheckFunc and tracks call count.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.HealthCalls++
	m.mu.Unlock()
	return m.HealthCheckFunc(ctx)
}

// Calls returns CompleteCalls + StreamCalls.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CompleteCalls + m.StreamCalls
}

// Scripted returns a MockProvider that answers successive Complete and
// Stream calls with the given responses in order. Streams split each
// response into fragments of at most chunkSize bytes. Once the script runs
// out, the last response is repeated.
func Scripted(chunkSize int, responses ...string) *MockProvider {
	var mu sync.Mutex
	idx := 0
	next := func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(responses) == 0 {
			return ""
		}
		r := responses[min(idx, len(responses)-1)]
		idx++
		return r
	}

	return &MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{Content: next(), FinishReason: provider.FinishReasonStop}, nil
		},
		StreamFunc: func(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			return ChunkStream(next(), chunkSize), nil
		},
	}
}

// ChunkStream returns a closed-when-done channel carrying text split into
// fragments of at most size bytes.
func ChunkStream(text string, size int) <-chan provider.StreamChunk {
	if size <= 0 {
		size = len(text)
	}
	ch := make(chan provider.StreamChunk, len(text)/max(size, 1)+2)
	for len(text) > 0 {
		n := min(size, len(text))
		ch <- provider.StreamChunk{Content: text[:n]}
		text = text[n:]
	}
	ch <- provider.StreamChunk{FinishReason: provider.FinishReasonStop}
	close(ch)
	return ch
}

// Interface guards.
var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.HealthChecker = (*MockProvider)(nil)
)
