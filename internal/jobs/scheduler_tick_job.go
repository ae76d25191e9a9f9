package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/service"
)

// SchedulerTickJob is the periodic trigger for the publish pipeline:
// enqueue due schedules, reclaim jobs held by crashed workers, and sweep
// expired oauth states. Safe to run while a previous tick is still going.
type SchedulerTickJob struct {
	scheduler  service.SchedulerService
	connection service.ConnectionService
}

func NewSchedulerTickJob(scheduler service.SchedulerService, connection service.ConnectionService) *SchedulerTickJob {
	return &SchedulerTickJob{scheduler: scheduler, connection: connection}
}

func (j *SchedulerTickJob) Tick() {
	ctx := context.Background()
	now := time.Now()

	enqueued, err := j.scheduler.EnqueueDue(ctx, now)
	if err != nil {
		slog.Info("enqueue due schedules failed", "error", err.Error())
	} else if enqueued > 0 {
		slog.Info("enqueued due schedules", "count", enqueued)
	}

	reclaimed, err := j.scheduler.ReclaimStale(ctx, now)
	if err != nil {
		slog.Info("reclaim stale jobs failed", "error", err.Error())
	} else if reclaimed > 0 {
		slog.Info("reclaimed stale jobs", "count", reclaimed)
	}

	if err := j.connection.SweepExpiredStates(ctx, now); err != nil {
		slog.Info("oauth state sweep failed", "error", err.Error())
	}
}
