package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flemzord/quill/internal/provider"
)

type oaiStreamChunk struct {
	Choices []oaiStreamChoice `json:"choices"`
	Usage   *oaiUsage         `json:"usage,omitempty"`
}

type oaiStreamChoice struct {
	Delta        oaiStreamDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

type oaiStreamDelta struct {
	Content string `json:"content,omitempty"`
}

// parseSSEStream reads an SSE body and emits StreamChunks. The channel is
// closed on [DONE], on a parse error, or when the body ends.
func parseSSEStream(ctx context.Context, scanner *bufio.Scanner) <-chan provider.StreamChunk {
	ch := make(chan provider.StreamChunk, 16)

	go func() {
		defer close(ch)

		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				ch <- provider.StreamChunk{Err: err}
				return
			}

			// Some servers omit the space after "data:".
			line := scanner.Text()
			var data string
			switch {
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimPrefix(line, "data:")
			default:
				continue
			}

			if data == "[DONE]" {
				return
			}

			var chunk oaiStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				ch <- provider.StreamChunk{Err: fmt.Errorf("parse SSE chunk: %w", err)}
				return
			}

			var sc provider.StreamChunk
			if chunk.Usage != nil {
				sc.Usage = &provider.TokenUsage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			if len(chunk.Choices) > 0 {
				choice := chunk.Choices[0]
				sc.Content = choice.Delta.Content
				if choice.FinishReason != nil {
					sc.FinishReason = mapFinishReason(*choice.FinishReason)
				}
			}

			if sc.Content != "" || sc.FinishReason != "" || sc.Usage != nil {
				ch <- sc
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				ch <- provider.StreamChunk{Err: ctx.Err()}
			} else {
				ch <- provider.StreamChunk{
					Err: fmt.Errorf("%w: stream read error: %w", provider.ErrProviderDown, err),
				}
			}
		}
	}()

	return ch
}
