// Package cron runs periodic maintenance jobs, such as pruning the
// observed-message index, on 5-field cron schedules.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs. Must be unique per Scheduler.
	Name() string

	// Schedule returns a 5-field cron expression (e.g. "0 * * * *").
	Schedule() string

	// Run executes one tick. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}
