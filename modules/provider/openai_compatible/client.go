package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flemzord/quill/internal/provider"
)

// chat completions wire types.

type oaiRequest struct {
	Model         string            `json:"model"`
	Messages      []oaiMessage      `json:"messages"`
	Stream        bool              `json:"stream,omitempty"`
	StreamOptions *oaiStreamOptions `json:"stream_options,omitempty"`
	MaxTokens     int               `json:"max_tokens,omitempty"`
	Temperature   *float64          `json:"temperature,omitempty"`
	TopP          *float64          `json:"top_p,omitempty"`
	Stop          []string          `json:"stop,omitempty"`
}

type oaiStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Usage   oaiUsage    `json:"usage"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// buildRequest wraps the ReAct transcript in a single user message. Sampling
// values missing from req fall back to the configured ones.
func (p *Provider) buildRequest(req provider.CompletionRequest, stream bool) oaiRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	temperature := req.Temperature
	if temperature == nil {
		temperature = p.config.Temperature
	}
	topP := req.TopP
	if topP == nil {
		topP = p.config.TopP
	}

	oai := oaiRequest{
		Model:       p.config.Model,
		Messages:    []oaiMessage{{Role: "user", Content: req.Prompt}},
		Stream:      stream,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		Stop:        req.Stop,
	}
	if stream {
		oai.StreamOptions = &oaiStreamOptions{IncludeUsage: true}
	}
	return oai
}

func parseResponse(resp oaiResponse) provider.CompletionResponse {
	cr := provider.CompletionResponse{
		Usage: provider.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return cr
	}
	cr.Content = resp.Choices[0].Message.Content
	cr.FinishReason = mapFinishReason(resp.Choices[0].FinishReason)
	return cr
}

func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "stop":
		return provider.FinishReasonStop
	case "length":
		return provider.FinishReasonLength
	case "content_filter":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReason(reason)
	}
}

// doRequest posts body to the chat completions endpoint.
func (p *Provider) doRequest(ctx context.Context, body oaiRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := p.config.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.setAuthHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return resp, nil
}

func (p *Provider) setAuthHeaders(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}
}

// maxErrorBodySize caps how much of an error body is read.
const maxErrorBodySize = 4096

// handleErrorResponse maps HTTP error status codes to sentinel errors.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, body)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, resp.StatusCode, body)
	case resp.StatusCode == http.StatusBadRequest:
		if isContextLengthError(body) {
			return fmt.Errorf("%w: %s", provider.ErrContextLength, body)
		}
		return fmt.Errorf("bad request: %s", body)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrAuthentication, resp.StatusCode, body)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
}

func isContextLengthError(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "context_length_exceeded") ||
		strings.Contains(lower, "context length") ||
		strings.Contains(lower, "maximum context") ||
		strings.Contains(lower, "token limit")
}
