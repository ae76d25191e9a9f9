package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

type PublishJobRepository interface {
	EnqueueDue(ctx context.Context, now time.Time, maxAttempts int) ([]int64, error)
	GetByID(ctx context.Context, id int64) (*models.PublishJob, error)
	Claim(ctx context.Context, id int64, now time.Time) (*models.PublishJob, error)
	SetSucceeded(ctx context.Context, id int64, at time.Time) error
	SetFailed(ctx context.Context, id int64, message string, at time.Time) error
	SetPending(ctx context.Context, id int64, message string) error
	ReclaimStale(ctx context.Context, cutoff time.Time) ([]int64, error)
}

type publishJobRepository struct {
	db *sql.DB
}

func NewPublishJobRepository(db *sql.DB) PublishJobRepository {
	return &publishJobRepository{db: db}
}

const jobColumns = `id, organization_id, post_schedule_id, priority, status, attempts, max_attempts,
	scheduled_for, started_at, completed_at, error_message, created_at`

// EnqueueDue creates one pending job per due schedule that has no
// non-terminal job yet. The NOT EXISTS guard runs in the same statement,
// so concurrent ticks cannot double-enqueue a schedule.
func (r *publishJobRepository) EnqueueDue(ctx context.Context, now time.Time, maxAttempts int) ([]int64, error) {
	query := `
		INSERT INTO publish_jobs (organization_id, post_schedule_id, status, attempts, max_attempts, scheduled_for)
		SELECT ps.organization_id, ps.id, 'pending', 0, $2, ps.scheduled_for
		FROM post_schedules ps
		WHERE ps.status = 'scheduled' AND ps.scheduled_for <= $1
		AND NOT EXISTS (
			SELECT 1 FROM publish_jobs pj
			WHERE pj.post_schedule_id = ps.id
			AND pj.status IN ('pending', 'in_progress')
		)
		RETURNING id
	`

	rows, err := r.db.QueryContext(ctx, query, now, maxAttempts)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanJob(row interface{ Scan(...interface{}) error }) (*models.PublishJob, error) {
	var job models.PublishJob
	err := row.Scan(&job.ID, &job.OrganizationID, &job.PostScheduleID, &job.Priority, &job.Status,
		&job.Attempts, &job.MaxAttempts, &job.ScheduledFor, &job.StartedAt, &job.CompletedAt,
		&job.ErrorMessage, &job.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *publishJobRepository) GetByID(ctx context.Context, id int64) (*models.PublishJob, error) {
	query := `SELECT ` + jobColumns + ` FROM publish_jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return job, nil
}

// Claim moves a job from pending to in_progress with a conditional update.
// A second worker racing for the same job sees zero rows and gets
// (nil, nil); attempts is counted at claim time.
func (r *publishJobRepository) Claim(ctx context.Context, id int64, now time.Time) (*models.PublishJob, error) {
	query := `
		UPDATE publish_jobs
		SET status = 'in_progress', attempts = attempts + 1, started_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id, now))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return job, nil
}

func (r *publishJobRepository) SetSucceeded(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE publish_jobs
		SET status = 'succeeded', completed_at = $2, error_message = NULL
		WHERE id = $1
	`
	return r.exec(ctx, query, id, at)
}

func (r *publishJobRepository) SetFailed(ctx context.Context, id int64, message string, at time.Time) error {
	query := `
		UPDATE publish_jobs
		SET status = 'failed', error_message = $2, completed_at = $3
		WHERE id = $1
	`
	return r.exec(ctx, query, id, message, at)
}

// SetPending returns a job to the queue for a later retry.
func (r *publishJobRepository) SetPending(ctx context.Context, id int64, message string) error {
	query := `
		UPDATE publish_jobs
		SET status = 'pending', error_message = $2, started_at = NULL
		WHERE id = $1
	`
	return r.exec(ctx, query, id, message)
}

// ReclaimStale returns jobs that need redelivery: in_progress past the
// grace period (the holder is treated as a crashed worker) and pending
// jobs older than the cutoff, whose queue handoff was lost. Redelivering
// a job whose task is still queued is harmless; the claim admits one
// winner.
func (r *publishJobRepository) ReclaimStale(ctx context.Context, cutoff time.Time) ([]int64, error) {
	query := `
		UPDATE publish_jobs
		SET status = 'pending', started_at = NULL
		WHERE (status = 'in_progress' AND started_at < $1)
		OR (status = 'pending' AND created_at < $1)
		RETURNING id
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *publishJobRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
