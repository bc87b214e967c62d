package gemini

import (
	"strings"

	"github.com/flemzord/quill/internal/provider"
)

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            int      `json:"topK,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (p *Provider) buildRequest(req provider.CompletionRequest) generateRequest {
	gc := generationConfig{
		Temperature:     p.config.Temperature,
		TopP:            p.config.TopP,
		TopK:            p.config.TopK,
		MaxOutputTokens: p.config.MaxOutputTokens,
		StopSequences:   req.Stop,
	}
	if req.Temperature != nil {
		gc.Temperature = req.Temperature
	}
	if req.TopP != nil {
		gc.TopP = req.TopP
	}
	if req.TopK > 0 {
		gc.TopK = req.TopK
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = req.MaxTokens
	}
	return generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: gc,
	}
}

// text concatenates the parts of the first candidate.
func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func (r generateResponse) finishReason() provider.FinishReason {
	if len(r.Candidates) == 0 {
		return ""
	}
	return mapFinishReason(r.Candidates[0].FinishReason)
}

func (r generateResponse) usage() provider.TokenUsage {
	return provider.TokenUsage{
		PromptTokens:     r.UsageMetadata.PromptTokenCount,
		CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      r.UsageMetadata.TotalTokenCount,
	}
}

func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "":
		return ""
	case "STOP":
		return provider.FinishReasonStop
	case "MAX_TOKENS":
		return provider.FinishReasonLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReason(strings.ToLower(reason))
	}
}
