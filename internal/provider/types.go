package provider

// FinishReason describes why the model stopped generating.
type FinishReason string

// FinishReason constants for model completion termination.
const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonFiltering FinishReason = "filtering"
)

// CompletionRequest is the input to a Provider.Complete or Provider.Stream call.
// The ReAct transcript is sent as a single prompt; sampling fields left nil
// fall back to the backend's configured defaults.
type CompletionRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// CompletionResponse is the output of a Provider.Complete call.
type CompletionResponse struct {
	Content      string       `json:"content"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        TokenUsage   `json:"usage"`
}

// StreamChunk represents one piece of a streaming completion response.
type StreamChunk struct {
	Content      string       `json:"content,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
	Err          error        `json:"-"`
}

// TokenUsage tracks token consumption for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
