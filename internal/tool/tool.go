// Package tool defines the tool contract and the closed registry the
// reasoning engine dispatches into. Tools are external capabilities invoked
// by name with keyword arguments; they report failure either by returning an
// error or by setting the "error" key of their Result.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Category groups tools for listing purposes. It has no effect on dispatch.
type Category string

// Category values used by the tool listing.
const (
	CategorySearch     Category = "search"
	CategoryAnalysis   Category = "analysis"
	CategoryFormatting Category = "formatting"
	CategoryGeneral    Category = "general"
)

// Tool is the interface every registered tool implements.
type Tool interface {
	// Name returns the unique identifier the model uses in an Action line.
	Name() string

	// Description is embedded verbatim in the system prompt.
	Description() string

	// Parameters lists the declared parameter names shown in the system
	// prompt, e.g. "query" or "document_ids (optional)".
	Parameters() []string

	// InputSchema and OutputSchema describe the argument and result shapes.
	// They are used for documentation and external validation only; the
	// dispatcher does not enforce them.
	InputSchema() json.RawMessage
	OutputSchema() json.RawMessage

	// Category returns the listing group of the tool.
	Category() Category

	// Execute runs the tool with the parsed keyword arguments.
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Summarizer is implemented by tools that know how to turn their own result
// into a one or two line observation. Tools that do not implement it get the
// generic truncated rendering.
type Summarizer interface {
	Summarize(result Result) string
}

// Result is the structured payload returned by a tool.
type Result map[string]any

// Err returns the tool-level error message carried in the "error" key, or
// the empty string when the result does not signal a failure.
func (r Result) Err() string {
	v, ok := r["error"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Descriptor is a serializable view of a registered tool.
type Descriptor struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Parameters   []string        `json:"parameters"`
	Category     Category        `json:"category"`
	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
}
