package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/quill/internal/monitor"
)

// HealthSource is satisfied by *monitor.Monitor.
type HealthSource interface {
	Health() monitor.Health
}

// SessionCounter is satisfied by every session.Store.
type SessionCounter interface {
	Len(ctx context.Context) (int, error)
}

// HealthReportJob logs the monitor's health classification. It logs at
// warn level whenever the service is not healthy.
type HealthReportJob struct {
	Monitor      HealthSource
	Sessions     SessionCounter // optional
	Logger       *slog.Logger
	ScheduleExpr string // empty = "*/5 * * * *"
}

var _ Job = (*HealthReportJob)(nil)

// Name implements Job.
func (j *HealthReportJob) Name() string { return "health_report" }

// Schedule implements Job.
func (j *HealthReportJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run implements Job.
func (j *HealthReportJob) Run(ctx context.Context) error {
	h := j.Monitor.Health()
	attrs := []any{
		"status", h.Status,
		"success_rate", h.SuccessRate,
		"total_sessions", h.TotalSessions,
		"recent_errors", h.RecentErrors,
		"average_response_time", h.AverageResponseTime,
	}
	if j.Sessions != nil {
		n, err := j.Sessions.Len(ctx)
		if err != nil {
			return fmt.Errorf("cron: count sessions: %w", err)
		}
		attrs = append(attrs, "active_sessions", n)
	}

	if h.Status == monitor.StatusHealthy {
		j.Logger.Info("cron: health report", attrs...)
	} else {
		j.Logger.Warn("cron: service not healthy", attrs...)
	}
	return nil
}

// Prober is satisfied by providers implementing provider.HealthChecker.
type Prober interface {
	HealthCheck(ctx context.Context) error
}

// ProviderProbeJob actively checks that the generation backend answers.
type ProviderProbeJob struct {
	Provider     Prober
	Timeout      time.Duration // zero = 10s
	Logger       *slog.Logger
	ScheduleExpr string // empty = "*/15 * * * *"
}

var _ Job = (*ProviderProbeJob)(nil)

// Name implements Job.
func (j *ProviderProbeJob) Name() string { return "provider_probe" }

// Schedule implements Job.
func (j *ProviderProbeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/15 * * * *"
}

// Run implements Job.
func (j *ProviderProbeJob) Run(ctx context.Context) error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := j.Provider.HealthCheck(ctx); err != nil {
		return fmt.Errorf("cron: provider probe: %w", err)
	}
	j.Logger.Debug("cron: provider reachable", "latency", time.Since(start))
	return nil
}
