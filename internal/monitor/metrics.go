package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/quill/internal/agent"
)

const namespace = "quill"

// Metrics are the Prometheus collectors fed by Monitor.Record.
type Metrics struct {
	sessions        *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	sessionSteps    prometheus.Histogram
	toolCalls       *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	health          *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished reasoning sessions by outcome.",
		}, []string{"status"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of reasoning sessions.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		sessionSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_steps",
			Help:      "Reasoning steps per session.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_status",
			Help:      "1 for the current health classification, 0 otherwise.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{
		m.sessions, m.sessionDuration, m.sessionSteps,
		m.toolCalls, m.toolDuration, m.health,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	m.setHealth(StatusHealthy)
	return m, nil
}

func (m *Metrics) observe(s *agent.Session, duration float64, status Status) {
	if m == nil {
		return
	}

	outcome := "success"
	if !s.Success {
		outcome = "failure"
	}
	m.sessions.WithLabelValues(outcome).Inc()
	m.sessionDuration.Observe(duration)
	m.sessionSteps.Observe(float64(len(s.Steps)))

	for _, step := range s.Steps {
		for _, call := range step.ToolCalls {
			result := "success"
			if !call.Success {
				result = "failure"
			}
			m.toolCalls.WithLabelValues(call.Name, result).Inc()
			if call.Duration > 0 {
				m.toolDuration.WithLabelValues(call.Name).Observe(call.Duration.Seconds())
			}
		}
	}
	m.setHealth(status)
}

func (m *Metrics) setHealth(current Status) {
	for _, s := range []Status{StatusHealthy, StatusDegraded, StatusUnhealthy} {
		v := 0.0
		if s == current {
			v = 1
		}
		m.health.WithLabelValues(string(s)).Set(v)
	}
}
