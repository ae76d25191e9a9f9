package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypePublishJob = "publish:job"

type PublishJobPayload struct {
	JobID int64 `json:"job_id"`
}

// Client wraps the asynq producer and implements service.TaskEnqueuer.
type Client struct {
	asynqClient *asynq.Client
}

func NewClient(asynqClient *asynq.Client) *Client {
	return &Client{asynqClient: asynqClient}
}

func (c *Client) EnqueuePublishJob(jobID int64, delay time.Duration) error {
	payload, err := json.Marshal(PublishJobPayload{JobID: jobID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishJob, payload)
	_, err = c.asynqClient.Enqueue(task, asynq.ProcessIn(delay))
	return err
}
