package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Pruner deletes index entries observed before a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// IndexPruneJob drops observed-message entries older than Retention.
type IndexPruneJob struct {
	Index        Pruner
	Retention    time.Duration
	ScheduleExpr string // empty = hourly
	Logger       *slog.Logger
	Now          func() time.Time
}

var _ Job = (*IndexPruneJob)(nil)

// Name implements Job.
func (j *IndexPruneJob) Name() string { return "index_prune" }

// Schedule implements Job.
func (j *IndexPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run implements Job.
func (j *IndexPruneJob) Run(ctx context.Context) error {
	if j.Index == nil {
		return errors.New("cron: index_prune: no index")
	}
	if j.Retention <= 0 {
		return nil
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}

	n, err := j.Index.Prune(ctx, now().Add(-j.Retention))
	if err != nil {
		return err
	}
	if n > 0 && j.Logger != nil {
		j.Logger.Info("cron: pruned index entries", "count", n, "retention", j.Retention)
	}
	return nil
}
