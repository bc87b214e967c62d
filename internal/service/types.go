package service

import (
	"time"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/monitor"
	"github.com/flemzord/quill/internal/tool"
)

// MaxQueryLen is the longest accepted query, in characters.
const MaxQueryLen = 2000

// Request is a query submitted by a caller.
type Request struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
	// Context is accepted for forward compatibility and is not used by the
	// engine.
	Context map[string]any `json:"context,omitempty"`
	Stream  bool           `json:"stream,omitempty"`
}

// Result is the caller-facing outcome of Process.
type Result struct {
	SessionID         string          `json:"session_id"`
	Query             string          `json:"query"`
	Answer            *string         `json:"answer"`
	Success           bool            `json:"success"`
	Error             *string         `json:"error"`
	ReasoningSteps    int             `json:"reasoning_steps"`
	ToolCalls         int             `json:"tool_calls"`
	SessionDuration   float64         `json:"session_duration"`
	DetailedReasoning []StepBreakdown `json:"detailed_reasoning"`
	Timestamp         time.Time       `json:"timestamp"`
}

// StepBreakdown summarizes one step in a Result.
type StepBreakdown struct {
	Step        int      `json:"step"`
	Thought     string   `json:"thought"`
	Action      *string  `json:"action"`
	Observation *string  `json:"observation"`
	ToolsUsed   []string `json:"tools_used"`
}

// SessionSummary is one row of ListSessions.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	Query        string    `json:"query"`
	Success      bool      `json:"success"`
	ToolCalls    int       `json:"tool_calls"`
	SessionStart time.Time `json:"session_start"`
	LastActivity time.Time `json:"last_activity"`
}

// SessionDetail is the full view returned by GetSession.
type SessionDetail struct {
	SessionID      string       `json:"session_id"`
	Query          string       `json:"query"`
	Answer         *string      `json:"answer"`
	Success        bool         `json:"success"`
	Error          *string      `json:"error"`
	ReasoningSteps []StepDetail `json:"reasoning_steps"`
	TotalToolCalls int          `json:"total_tool_calls"`
	SessionStart   time.Time    `json:"session_start"`
	SessionEnd     *time.Time   `json:"session_end"`
	LastActivity   time.Time    `json:"last_activity"`
}

// StepDetail is one step of a SessionDetail.
type StepDetail struct {
	Step        int              `json:"step"`
	State       agent.StepState  `json:"state"`
	Thought     string           `json:"thought"`
	Action      *string          `json:"action"`
	Observation *string          `json:"observation"`
	ToolCalls   []ToolCallDetail `json:"tool_calls"`
}

// ToolCallDetail is one tool call of a StepDetail.
type ToolCallDetail struct {
	Tool          string         `json:"tool"`
	Arguments     map[string]any `json:"arguments"`
	Success       bool           `json:"success"`
	ExecutionTime *float64       `json:"execution_time"`
	Error         *string        `json:"error"`
}

// AgentConfig is the static engine configuration reported by Monitoring.
type AgentConfig struct {
	Model          string   `json:"model"`
	MaxIterations  int      `json:"max_iterations"`
	Temperature    float64  `json:"temperature"`
	AvailableTools []string `json:"available_tools"`
}

// Monitoring is the administrative snapshot.
type Monitoring struct {
	Health         monitor.Health `json:"health"`
	Statistics     monitor.Stats  `json:"statistics"`
	ActiveSessions int            `json:"active_sessions"`
	AgentConfig    AgentConfig    `json:"agent_config"`
}

// ToolListing describes the registered tools.
type ToolListing struct {
	TotalTools int                        `json:"total_tools"`
	Tools      map[string]tool.Descriptor `json:"tools"`
	Categories map[tool.Category][]string `json:"categories"`
}

func newResult(s *agent.Session) Result {
	steps := make([]StepBreakdown, 0, len(s.Steps))
	for _, st := range s.Steps {
		steps = append(steps, StepBreakdown{
			Step:        st.Number,
			Thought:     st.Thought,
			Action:      st.Action,
			Observation: st.Observation,
			ToolsUsed:   st.SuccessfulTools(),
		})
	}
	return Result{
		SessionID:         s.ID,
		Query:             s.Query,
		Answer:            s.FinalAnswer,
		Success:           s.Success,
		Error:             s.Error,
		ReasoningSteps:    len(s.Steps),
		ToolCalls:         s.TotalToolCalls,
		SessionDuration:   elapsed(s),
		DetailedReasoning: steps,
		Timestamp:         completedAt(s),
	}
}

// completedAt is when the session ended, or now for one still open.
func completedAt(s *agent.Session) time.Time {
	if s.End != nil {
		return *s.End
	}
	return time.Now()
}

func newDetail(s *agent.Session, lastActivity time.Time) SessionDetail {
	steps := make([]StepDetail, 0, len(s.Steps))
	for _, st := range s.Steps {
		calls := make([]ToolCallDetail, 0, len(st.ToolCalls))
		for _, c := range st.ToolCalls {
			var exec *float64
			if c.Duration > 0 {
				v := c.Duration.Seconds()
				exec = &v
			}
			calls = append(calls, ToolCallDetail{
				Tool:          c.Name,
				Arguments:     c.Arguments,
				Success:       c.Success,
				ExecutionTime: exec,
				Error:         c.Error,
			})
		}
		steps = append(steps, StepDetail{
			Step:        st.Number,
			State:       st.State,
			Thought:     st.Thought,
			Action:      st.Action,
			Observation: st.Observation,
			ToolCalls:   calls,
		})
	}
	return SessionDetail{
		SessionID:      s.ID,
		Query:          s.Query,
		Answer:         s.FinalAnswer,
		Success:        s.Success,
		Error:          s.Error,
		ReasoningSteps: steps,
		TotalToolCalls: s.TotalToolCalls,
		SessionStart:   s.Start,
		SessionEnd:     s.End,
		LastActivity:   lastActivity,
	}
}

// elapsed returns the session duration in seconds, or 0 while it runs.
func elapsed(s *agent.Session) float64 {
	if s.End == nil {
		return 0
	}
	return s.End.Sub(s.Start).Seconds()
}
