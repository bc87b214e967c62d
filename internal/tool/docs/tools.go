package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flemzord/quill/internal/tool"
)

// Invoker runs a named tool remotely. *Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (tool.Result, error)
}

// docTool is one document-service tool.
type docTool struct {
	name        string
	description string
	params      []string
	category    tool.Category
	required    []string
	// limits caps the rune length of string arguments.
	limits    map[string]int
	defaults  map[string]any
	input     json.RawMessage
	output    json.RawMessage
	summarize func(tool.Result) string

	invoker Invoker
}

func (t *docTool) Name() string                  { return t.name }
func (t *docTool) Description() string           { return t.description }
func (t *docTool) Parameters() []string          { return t.params }
func (t *docTool) Category() tool.Category       { return t.category }
func (t *docTool) InputSchema() json.RawMessage  { return t.input }
func (t *docTool) OutputSchema() json.RawMessage { return t.output }

// Summarize implements tool.Summarizer.
func (t *docTool) Summarize(r tool.Result) string { return t.summarize(r) }

// Execute validates args and forwards them to the document service.
// Invalid arguments come back as a Result carrying "error" so the model can
// correct itself on the next step.
func (t *docTool) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	payload, msg := t.prepare(args)
	if msg != "" {
		return tool.Result{"error": msg}, nil
	}
	return t.invoker.Invoke(ctx, t.name, payload)
}

func (t *docTool) prepare(args map[string]any) (map[string]any, string) {
	payload := make(map[string]any, len(args)+len(t.defaults))
	for k, v := range t.defaults {
		payload[k] = v
	}
	for k, v := range args {
		payload[k] = v
	}

	for _, key := range t.required {
		v, ok := payload[key]
		if !ok || v == nil {
			return nil, fmt.Sprintf("missing required parameter %q", key)
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return nil, fmt.Sprintf("parameter %q must not be empty", key)
		}
	}
	for key, limit := range t.limits {
		if s, ok := payload[key].(string); ok && len([]rune(s)) > limit {
			return nil, fmt.Sprintf("parameter %q exceeds %d characters", key, limit)
		}
	}

	if ids, ok := payload["document_ids"]; ok {
		payload["document_ids"] = documentIDs(ids)
	}
	return payload, ""
}

// documentIDs normalizes the document_ids argument. The action grammar only
// yields scalars, so a comma-separated string is split into a list.
func documentIDs(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	var ids []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids = append(ids, p)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// Tools returns the five document tools bound to inv.
func Tools(inv Invoker) []tool.Tool {
	return []tool.Tool{
		&docTool{
			name:        "search_documents",
			description: "Search through uploaded historical documents for relevant information",
			params:      []string{"query", "document_ids (optional)"},
			category:    tool.CategorySearch,
			required:    []string{"query"},
			limits:      map[string]int{"query": 1000},
			input:       searchInput,
			output:      searchOutput,
			summarize:   summarizeSearch,
			invoker:     inv,
		},
		&docTool{
			name:        "build_timeline",
			description: "Extract and organize dates, events, and chronological information",
			params:      []string{"document_ids (optional)"},
			category:    tool.CategoryAnalysis,
			input:       documentsInput,
			output:      timelineOutput,
			summarize:   summarizeTimeline,
			invoker:     inv,
		},
		&docTool{
			name:        "extract_entities",
			description: "Identify people, places, battles, and historical entities",
			params:      []string{"document_ids (optional)"},
			category:    tool.CategoryAnalysis,
			input:       documentsInput,
			output:      entitiesOutput,
			summarize:   summarizeEntities,
			invoker:     inv,
		},
		&docTool{
			name:        "cross_reference_documents",
			description: "Compare information across multiple documents",
			params:      []string{"topic", "document_ids (optional)"},
			category:    tool.CategoryAnalysis,
			required:    []string{"topic"},
			limits:      map[string]int{"topic": 500},
			input:       crossReferenceInput,
			output:      crossReferenceOutput,
			summarize:   summarizeCrossReference,
			invoker:     inv,
		},
		&docTool{
			name:        "generate_citations",
			description: "Create proper academic citations for sources",
			params:      []string{"search_results", "style (optional)"},
			category:    tool.CategoryFormatting,
			required:    []string{"search_results"},
			defaults:    map[string]any{"style": "academic"},
			input:       citationsInput,
			output:      citationsOutput,
			summarize:   summarizeCitations,
			invoker:     inv,
		},
	}
}

// Register adds the document tools to reg.
func Register(reg *tool.Registry, inv Invoker) error {
	for _, t := range Tools(inv) {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("docs: register %s: %w", t.Name(), err)
		}
	}
	return nil
}

var (
	_ tool.Tool       = (*docTool)(nil)
	_ tool.Summarizer = (*docTool)(nil)
	_ Invoker         = (*Client)(nil)
)
