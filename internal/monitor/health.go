package monitor

import "time"

// Status is a health classification.
type Status string

// Health statuses, best to worst.
const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Classification thresholds.
const (
	healthyRate  = 0.9
	degradedRate = 0.7

	recentUnhealthyFailures = 5
	recentDegradedFailures  = 3
)

// Health is the classified state of the service.
type Health struct {
	Status              Status    `json:"status"`
	SuccessRate         float64   `json:"success_rate"`
	TotalSessions       int       `json:"total_sessions"`
	RecentErrors        int       `json:"recent_errors"`
	AverageResponseTime float64   `json:"average_response_time"`
	Timestamp           time.Time `json:"timestamp"`
}

// Health classifies the current aggregate.
func (m *Monitor) Health() Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthLocked()
}

func (m *Monitor) healthLocked() Health {
	rate := 1.0
	if m.perf.TotalSessions > 0 {
		rate = float64(m.perf.SuccessfulSessions) / float64(m.perf.TotalSessions)
	}

	failures := 0
	for _, s := range m.lastLocked(RecentExposed) {
		if !s.Success {
			failures++
		}
	}

	return Health{
		Status:              classify(rate, failures),
		SuccessRate:         rate,
		TotalSessions:       m.perf.TotalSessions,
		RecentErrors:        failures,
		AverageResponseTime: m.perf.AverageSessionTime,
		Timestamp:           m.now(),
	}
}

// classify buckets the success rate, then applies the recent-failure
// overrides, which never improve the status.
func classify(rate float64, recentFailures int) Status {
	status := StatusUnhealthy
	switch {
	case rate >= healthyRate:
		status = StatusHealthy
	case rate >= degradedRate:
		status = StatusDegraded
	}

	switch {
	case recentFailures >= recentUnhealthyFailures:
		return StatusUnhealthy
	case recentFailures >= recentDegradedFailures && status == StatusHealthy:
		return StatusDegraded
	}
	return status
}
