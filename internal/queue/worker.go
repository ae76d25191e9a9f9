package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
	"github.com/postpilot/postpilot/internal/service"
)

// Worker consumes publish tasks and hands them to the scheduler. Claiming
// and retry bookkeeping live in the scheduler service; asynq only delivers.
type Worker struct {
	scheduler service.SchedulerService
}

func NewWorker(scheduler service.SchedulerService) *Worker {
	return &Worker{scheduler: scheduler}
}

func (w *Worker) HandlePublishJobTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if err := w.scheduler.RunOne(ctx, payload.JobID); err != nil {
		log.Printf("Error running publish job %d: %v", payload.JobID, err)
		return err
	}

	return nil
}
