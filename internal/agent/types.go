// Package agent implements the bounded ReAct (Reason + Act) engine: it
// prompts a text-generation model step by step, parses each reply into a
// Step, dispatches requested tool calls, and feeds the observations back
// until a final answer, an error, or the iteration budget ends the run.
package agent

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/flemzord/quill/internal/tool"
)

// StepState is the lifecycle state of a reasoning step.
type StepState string

// Step states. Completed and Error are terminal for the session.
const (
	StateThinking  StepState = "thinking"
	StateActing    StepState = "acting"
	StateObserving StepState = "observing"
	StateCompleted StepState = "completed"
	StateError     StepState = "error"
)

// rank orders states so transitions can be checked for monotonicity.
func (s StepState) rank() int {
	switch s {
	case StateThinking:
		return 0
	case StateActing:
		return 1
	case StateObserving:
		return 2
	case StateCompleted, StateError:
		return 3
	default:
		return -1
	}
}

// Terminal reports whether the state ends the session.
func (s StepState) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// ToolCall records one tool invocation made while executing a step.
type ToolCall struct {
	Name      string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"-"`
	Result    tool.Result    `json:"result"`
	Error     *string        `json:"error"`
	Success   bool           `json:"success"`
}

// MarshalJSON renders Duration as fractional seconds under execution_time,
// or null for calls that never ran.
func (c ToolCall) MarshalJSON() ([]byte, error) {
	type plain ToolCall
	var exec *float64
	if c.Duration > 0 {
		s := c.Duration.Seconds()
		exec = &s
	}
	return json.Marshal(struct {
		plain
		ExecutionTime *float64 `json:"execution_time"`
	}{plain(c), exec})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *ToolCall) UnmarshalJSON(data []byte) error {
	type plain ToolCall
	var aux struct {
		plain
		ExecutionTime *float64 `json:"execution_time"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = ToolCall(aux.plain)
	if aux.ExecutionTime != nil {
		c.Duration = time.Duration(*aux.ExecutionTime * float64(time.Second))
	}
	return nil
}

// Step is one Think/Act/Observe cycle.
type Step struct {
	Number      int        `json:"step_number"`
	State       StepState  `json:"state"`
	Thought     string     `json:"thought"`
	Action      *string    `json:"action"`
	Observation *string    `json:"observation"`
	Timestamp   time.Time  `json:"timestamp"`
	ToolCalls   []ToolCall `json:"tool_calls"`
}

// advance moves the step to next unless that would regress its state.
func (s *Step) advance(next StepState) {
	if next.rank() >= s.State.rank() {
		s.State = next
	}
}

// SuccessfulTools returns the names of the tool calls that succeeded, in
// call order.
func (s Step) SuccessfulTools() []string {
	names := make([]string, 0, len(s.ToolCalls))
	for _, c := range s.ToolCalls {
		if c.Success {
			names = append(names, c.Name)
		}
	}
	return names
}

// Session is the full record of one engine run.
type Session struct {
	ID             string     `json:"session_id"`
	Query          string     `json:"query"`
	Steps          []Step     `json:"reasoning_steps"`
	FinalAnswer    *string    `json:"final_answer"`
	TotalToolCalls int        `json:"total_tool_calls"`
	Start          time.Time  `json:"session_start"`
	End            *time.Time `json:"session_end"`
	Success        bool       `json:"success"`
	Error          *string    `json:"error"`
}

// Duration returns the elapsed run time, measured to End when stamped.
func (s *Session) Duration() time.Duration {
	if s.End == nil {
		return time.Since(s.Start)
	}
	return s.End.Sub(s.Start)
}

// complete marks the session successful with the given answer.
func (s *Session) complete(answer string) {
	s.FinalAnswer = &answer
	s.Success = true
	s.Error = nil
}

// fail marks the session failed. The first recorded error wins.
func (s *Session) fail(msg string) {
	s.Success = false
	if s.Error == nil {
		s.Error = &msg
	}
}

// finish stamps the end time and recounts tool calls.
func (s *Session) finish(at time.Time) {
	s.End = &at
	total := 0
	for _, st := range s.Steps {
		total += len(st.ToolCalls)
	}
	s.TotalToolCalls = total
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.FinalAnswer = clonePtr(s.FinalAnswer)
	cp.Error = clonePtr(s.Error)
	cp.End = clonePtr(s.End)
	if s.Steps != nil {
		cp.Steps = make([]Step, len(s.Steps))
		for i, st := range s.Steps {
			cp.Steps[i] = st.clone()
		}
	}
	return &cp
}

func (s Step) clone() Step {
	cp := s
	cp.Action = clonePtr(s.Action)
	cp.Observation = clonePtr(s.Observation)
	if s.ToolCalls != nil {
		cp.ToolCalls = make([]ToolCall, len(s.ToolCalls))
		for i, c := range s.ToolCalls {
			c.Arguments = maps.Clone(c.Arguments)
			c.Result = maps.Clone(c.Result)
			c.Error = clonePtr(c.Error)
			cp.ToolCalls[i] = c
		}
	}
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr[T any](v T) *T { return &v }
