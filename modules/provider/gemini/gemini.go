// Package gemini is a text-generation backend for the Google Gemini API,
// built on go-resty.
package gemini

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/flemzord/quill/internal/provider"
)

// Provider talks to the generateContent and streamGenerateContent endpoints.
type Provider struct {
	config Config
	client *resty.Client
	logger *slog.Logger
}

// New applies defaults, validates cfg, and resolves the API key from the
// environment when api_key is empty.
func New(cfg Config, logger *slog.Logger) (*Provider, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("provider.gemini: environment variable %s is empty", cfg.APIKeyEnv)
		}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// Retries are handled by provider.Retrying, so resty's are left off.
	// The timeout only bounds the response headers of streaming calls
	// through the transport; the request context bounds the rest.
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", key).
		SetTransport(&http.Transport{ResponseHeaderTimeout: cfg.Timeout})

	return &Provider{
		config: cfg,
		client: client,
		logger: logger.With("provider", "gemini", "model", cfg.Model),
	}, nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	var out generateResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(p.buildRequest(req)).
		SetResult(&out).
		Post("/models/" + p.config.Model + ":generateContent")
	if err != nil {
		return provider.CompletionResponse{}, transportError(ctx, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return provider.CompletionResponse{}, statusError(resp.StatusCode(), resp.Body())
	}

	cr := provider.CompletionResponse{
		Content:      out.text(),
		FinishReason: out.finishReason(),
		Usage:        out.usage(),
	}
	if cr.Content == "" {
		return cr, provider.ErrEmptyResponse
	}
	p.logger.Debug("completion received",
		"finish_reason", cr.FinishReason,
		"total_tokens", cr.Usage.TotalTokens,
	)
	return cr, nil
}

// Stream implements provider.Provider using server-sent events.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(p.buildRequest(req)).
		SetQueryParam("alt", "sse").
		SetDoNotParseResponse(true).
		Post("/models/" + p.config.Model + ":streamGenerateContent")
	if err != nil {
		return nil, transportError(ctx, err)
	}
	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		defer body.Close() //nolint:errcheck // best-effort close
		data, _ := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
		return nil, statusError(resp.StatusCode(), data)
	}

	out := make(chan provider.StreamChunk, 16)
	go func() {
		defer close(out)
		defer body.Close() //nolint:errcheck // best-effort close

		send := func(c provider.StreamChunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == "" {
				continue
			}

			var event generateResponse
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				send(provider.StreamChunk{Err: fmt.Errorf("parse SSE chunk: %w", err)})
				return
			}
			chunk := provider.StreamChunk{
				Content:      event.text(),
				FinishReason: event.finishReason(),
			}
			if event.UsageMetadata.TotalTokenCount > 0 {
				u := event.usage()
				chunk.Usage = &u
			}
			if chunk.Content == "" && chunk.FinishReason == "" && chunk.Usage == nil {
				continue
			}
			if !send(chunk) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				send(provider.StreamChunk{Err: ctx.Err()})
				return
			}
			send(provider.StreamChunk{Err: fmt.Errorf("%w: stream read error: %w", provider.ErrProviderDown, err)})
		}
	}()
	return out, nil
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// HealthCheck implements provider.HealthChecker by fetching the model resource.
func (p *Provider) HealthCheck(ctx context.Context) error {
	resp, err := p.client.R().
		SetContext(ctx).
		Get("/models/" + p.config.Model)
	if err != nil {
		return fmt.Errorf("%w: health check: %w", provider.ErrProviderDown, err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("%w: health check returned HTTP %d", provider.ErrProviderDown, resp.StatusCode())
	}
	return nil
}

const maxErrorBodySize = 4096

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
}

// statusError maps a non-200 response to a provider sentinel.
func statusError(status int, body []byte) error {
	msg := string(body)
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Error.Message != "" {
		msg = ae.Error.Message
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, status, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrAuthentication, status, msg)
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "token"):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	default:
		return fmt.Errorf("gemini: unexpected status %d: %s", status, msg)
	}
}

// Compile-time interface assertions.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
)
