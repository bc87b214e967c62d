// Package openaicompat is a text-generation backend for any API that speaks
// the OpenAI chat completions protocol (vLLM, LiteLLM, Groq, Mistral, ...),
// reached through a configurable base_url.
package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/flemzord/quill/internal/provider"
)

// Provider is an OpenAI-compatible text-generation backend.
type Provider struct {
	config Config
	apiKey string
	client *http.Client
	logger *slog.Logger
}

// New validates cfg and returns a ready Provider. When api_key is empty the
// key is read from the environment variable named by api_key_env.
func New(cfg Config, logger *slog.Logger) (*Provider, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("provider.openai_compatible: environment variable %s is empty", cfg.APIKeyEnv)
		}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Provider{
		config: cfg,
		apiKey: key,
		// A global client timeout would cut long SSE streams; the request
		// context bounds each call instead.
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
		logger: logger.With("provider", "openai_compatible", "model", cfg.Model),
	}, nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	resp, err := p.doRequest(ctx, p.buildRequest(req, false))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return provider.CompletionResponse{}, handleErrorResponse(resp)
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("decode response: %w", err)
	}

	cr := parseResponse(oaiResp)
	if cr.Content == "" {
		return cr, provider.ErrEmptyResponse
	}
	p.logger.Debug("completion received",
		"finish_reason", cr.FinishReason,
		"total_tokens", cr.Usage.TotalTokens,
	)
	return cr, nil
}

// Stream implements provider.Provider.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	resp, err := p.doRequest(ctx, p.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close() //nolint:errcheck // best-effort close
		return nil, handleErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ch := parseSSEStream(ctx, scanner)

	out := make(chan provider.StreamChunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close() //nolint:errcheck // best-effort close
		for chunk := range ch {
			select {
			case out <- chunk:
			case <-ctx.Done():
				//nolint:revive // intentional empty drain loop
				for range ch { //nolint:revive
				}
				return
			}
		}
	}()

	return out, nil
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// HealthCheck implements provider.HealthChecker by probing /models.
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/models", nil)
	if err != nil {
		return err
	}
	p.setAuthHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check: %w", provider.ErrProviderDown, err)
	}
	defer resp.Body.Close()               //nolint:errcheck // best-effort close
	_, _ = io.Copy(io.Discard, resp.Body) // drain body

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: health check returned HTTP %d", provider.ErrProviderDown, resp.StatusCode)
	}
	return nil
}

// Compile-time interface assertions.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
)
