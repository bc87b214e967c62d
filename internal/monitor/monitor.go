// Package monitor aggregates usage statistics over finished reasoning
// sessions and classifies service health from them.
package monitor

import (
	"sync"
	"time"

	"github.com/flemzord/quill/internal/agent"
)

const (
	// RecentCapacity is the number of session summaries retained.
	RecentCapacity = 100
	// RecentExposed is the number of summaries reported by Stats.
	RecentExposed = 10

	queryPreviewLen = 100
)

// Summary is the retained digest of one finished session.
type Summary struct {
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Success   bool      `json:"success"`
	ToolCalls int       `json:"tool_calls"`
	Duration  float64   `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
	Error     *string   `json:"error"`
}

// Performance holds the session counters and running averages.
type Performance struct {
	TotalSessions              int     `json:"total_sessions"`
	SuccessfulSessions         int     `json:"successful_sessions"`
	FailedSessions             int     `json:"failed_sessions"`
	AverageSessionTime         float64 `json:"average_session_time"`
	AverageToolCallsPerSession float64 `json:"average_tool_calls_per_session"`
	TotalToolCalls             int     `json:"total_tool_calls"`
}

// Stats is a point-in-time copy of the aggregate.
type Stats struct {
	Performance    Performance    `json:"performance"`
	ToolUsage      map[string]int `json:"tool_usage"`
	Errors         map[string]int `json:"errors"`
	RecentSessions []Summary      `json:"recent_sessions"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMetrics mirrors every recorded session into Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(mon *Monitor) { mon.metrics = m }
}

// WithClock overrides time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(mon *Monitor) { mon.now = now }
}

// Monitor is safe for concurrent use.
type Monitor struct {
	mu        sync.RWMutex
	perf      Performance
	toolUsage map[string]int
	errors    map[string]int
	// recent is a ring; next is the slot the next summary goes into.
	recent []Summary
	next   int

	metrics *Metrics
	now     func() time.Time
}

// New creates an empty Monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		toolUsage: make(map[string]int),
		errors:    make(map[string]int),
		recent:    make([]Summary, 0, RecentCapacity),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record folds a finished session into the aggregate.
func (m *Monitor) Record(s *agent.Session) {
	var duration float64
	if s.End != nil {
		duration = s.End.Sub(s.Start).Seconds()
	}

	m.mu.Lock()
	p := &m.perf
	p.TotalSessions++
	if s.Success {
		p.SuccessfulSessions++
	} else {
		p.FailedSessions++
		if s.Error != nil {
			m.errors[*s.Error]++
		}
	}
	n := float64(p.TotalSessions)
	p.AverageSessionTime = (p.AverageSessionTime*(n-1) + duration) / n
	p.TotalToolCalls += s.TotalToolCalls
	p.AverageToolCallsPerSession = float64(p.TotalToolCalls) / n

	for _, step := range s.Steps {
		for _, call := range step.ToolCalls {
			if call.Success {
				m.toolUsage[call.Name]++
			} else {
				m.errors["tool_"+call.Name+"_error"]++
			}
		}
	}

	m.push(Summary{
		SessionID: s.ID,
		Query:     agent.Truncate(s.Query, queryPreviewLen),
		Success:   s.Success,
		ToolCalls: s.TotalToolCalls,
		Duration:  duration,
		Timestamp: s.Start,
		Error:     s.Error,
	})
	health := m.healthLocked()
	m.mu.Unlock()

	m.metrics.observe(s, duration, health.Status)
}

func (m *Monitor) push(sum Summary) {
	if len(m.recent) < RecentCapacity {
		m.recent = append(m.recent, sum)
		return
	}
	m.recent[m.next] = sum
	m.next = (m.next + 1) % RecentCapacity
}

// lastLocked returns up to n most recent summaries, oldest first.
func (m *Monitor) lastLocked(n int) []Summary {
	size := len(m.recent)
	n = min(n, size)
	out := make([]Summary, 0, n)
	for i := size - n; i < size; i++ {
		out = append(out, m.recent[(m.next+i)%size])
	}
	return out
}

// Stats returns a copy of the aggregate with the last RecentExposed
// session summaries.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	usage := make(map[string]int, len(m.toolUsage))
	for k, v := range m.toolUsage {
		usage[k] = v
	}
	errs := make(map[string]int, len(m.errors))
	for k, v := range m.errors {
		errs[k] = v
	}
	return Stats{
		Performance:    m.perf,
		ToolUsage:      usage,
		Errors:         errs,
		RecentSessions: m.lastLocked(RecentExposed),
		Timestamp:      m.now(),
	}
}
