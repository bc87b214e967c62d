// Package cron runs periodic background reports on 5-field cron schedules.
// Session expiry is not one of them: stores sweep lazily before serving.
package cron

import "context"

// Job defines a periodic background task.
type Job interface {
	// Name identifies the job in logs and must be unique per scheduler.
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "*/5 * * * *").
	Schedule() string

	// Run executes the job. Implementations should honor ctx cancellation.
	Run(ctx context.Context) error
}
