// Package tooltest provides test helpers and mocks for the tool package.
package tooltest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/flemzord/quill/internal/tool"
)

// MockTool is a configurable mock implementation of tool.Tool.
type MockTool struct {
	NameFunc        func() string
	DescriptionFunc func() string
	ParametersFunc  func() []string
	CategoryFunc    func() tool.Category
	ExecuteFunc     func(ctx context.Context, args map[string]any) (tool.Result, error)

	mu           sync.Mutex
	ExecuteCalls int
	LastArgs     map[string]any
}

// Name implements tool.Tool.
func (m *MockTool) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock_tool"
}

// Description implements tool.Tool.
func (m *MockTool) Description() string {
	if m.DescriptionFunc != nil {
		return m.DescriptionFunc()
	}
	return "a mock tool"
}

// Parameters implements tool.Tool.
func (m *MockTool) Parameters() []string {
	if m.ParametersFunc != nil {
		return m.ParametersFunc()
	}
	return nil
}

// InputSchema implements tool.Tool.
func (m *MockTool) InputSchema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

// OutputSchema implements tool.Tool.
func (m *MockTool) OutputSchema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

// Category implements tool.Tool.
func (m *MockTool) Category() tool.Category {
	if m.CategoryFunc != nil {
		return m.CategoryFunc()
	}
	return tool.CategoryGeneral
}

// Execute implements tool.Tool.
func (m *MockTool) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	m.mu.Lock()
	m.ExecuteCalls++
	m.LastArgs = args
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, args)
	}
	return tool.Result{"status": "ok"}, nil
}

// Calls returns the number of Execute calls so far.
func (m *MockTool) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// SummarizingTool wraps a MockTool with a fixed summary.
type SummarizingTool struct {
	*MockTool
	SummarizeFunc func(tool.Result) string
}

// Summarize implements tool.Summarizer.
func (s *SummarizingTool) Summarize(r tool.Result) string {
	return s.SummarizeFunc(r)
}

// SimpleTool creates a minimal tool for testing that returns result.
func SimpleTool(name string, result tool.Result) *MockTool {
	return &MockTool{
		NameFunc:        func() string { return name },
		DescriptionFunc: func() string { return "simple test tool: " + name },
		ParametersFunc:  func() []string { return []string{"query"} },
		ExecuteFunc: func(_ context.Context, _ map[string]any) (tool.Result, error) {
			return result, nil
		},
	}
}

// Interface guards.
var (
	_ tool.Tool       = (*MockTool)(nil)
	_ tool.Summarizer = (*SummarizingTool)(nil)
)
