package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

type PostScheduleRepository interface {
	Create(ctx context.Context, tx *sql.Tx, ps *models.PostSchedule) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PostSchedule, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*models.PostSchedule, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostSchedule, error)
	SetPublishing(ctx context.Context, id int64, at time.Time) error
	SetPublished(ctx context.Context, id int64, externalPostID string, at time.Time) error
	SetFailed(ctx context.Context, id int64, message string) error
	RecordAttempt(ctx context.Context, id int64, message string, at time.Time) error
	Cancel(ctx context.Context, id int64) error
}

type postScheduleRepository struct {
	db *sql.DB
}

func NewPostScheduleRepository(db *sql.DB) PostScheduleRepository {
	return &postScheduleRepository{db: db}
}

const scheduleColumns = `id, organization_id, post_id, social_account_id, platform, scheduled_for,
	status, attempts, last_attempt_at, error_message, published_post_id, published_at,
	created_at, updated_at`

// Create inserts a schedule only when the (post, account) pair has no
// other non-terminal schedule.
func (r *postScheduleRepository) Create(ctx context.Context, tx *sql.Tx, ps *models.PostSchedule) (int64, error) {
	query := `
		INSERT INTO post_schedules (organization_id, post_id, social_account_id, platform, scheduled_for, status)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM post_schedules
			WHERE post_id = $2 AND social_account_id = $3
			AND status IN ('scheduled', 'publishing')
		)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, ps.OrganizationID, ps.PostID, ps.SocialAccountID,
			ps.Platform, ps.ScheduledFor, ps.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, ps.OrganizationID, ps.PostID, ps.SocialAccountID,
			ps.Platform, ps.ScheduledFor, ps.Status).Scan(&id)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func scanSchedule(row interface{ Scan(...interface{}) error }) (*models.PostSchedule, error) {
	var ps models.PostSchedule
	err := row.Scan(&ps.ID, &ps.OrganizationID, &ps.PostID, &ps.SocialAccountID, &ps.Platform,
		&ps.ScheduledFor, &ps.Status, &ps.Attempts, &ps.LastAttemptAt, &ps.ErrorMessage,
		&ps.PublishedPostID, &ps.PublishedAt, &ps.CreatedAt, &ps.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

func (r *postScheduleRepository) GetByID(ctx context.Context, id int64) (*models.PostSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM post_schedules WHERE id = $1`
	ps, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return ps, nil
}

func (r *postScheduleRepository) ListByOrganization(ctx context.Context, orgID int64) ([]*models.PostSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM post_schedules WHERE organization_id = $1 ORDER BY scheduled_for DESC`
	return r.list(ctx, query, orgID)
}

func (r *postScheduleRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM post_schedules WHERE post_id = $1 ORDER BY scheduled_for DESC`
	return r.list(ctx, query, postID)
}

func (r *postScheduleRepository) list(ctx context.Context, query string, arg interface{}) ([]*models.PostSchedule, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var schedules []*models.PostSchedule
	for rows.Next() {
		ps, err := scanSchedule(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		schedules = append(schedules, ps)
	}
	return schedules, rows.Err()
}

func (r *postScheduleRepository) SetPublishing(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE post_schedules
		SET status = 'publishing', attempts = attempts + 1, last_attempt_at = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	return r.exec(ctx, query, id, at)
}

func (r *postScheduleRepository) SetPublished(ctx context.Context, id int64, externalPostID string, at time.Time) error {
	query := `
		UPDATE post_schedules
		SET status = 'published', published_post_id = $2, published_at = $3,
			error_message = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	return r.exec(ctx, query, id, externalPostID, at)
}

func (r *postScheduleRepository) SetFailed(ctx context.Context, id int64, message string) error {
	query := `
		UPDATE post_schedules
		SET status = 'failed', error_message = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	return r.exec(ctx, query, id, message)
}

// RecordAttempt returns a schedule to scheduled after a retryable failure.
func (r *postScheduleRepository) RecordAttempt(ctx context.Context, id int64, message string, at time.Time) error {
	query := `
		UPDATE post_schedules
		SET status = 'scheduled', error_message = $2, last_attempt_at = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	return r.exec(ctx, query, id, message, at)
}

func (r *postScheduleRepository) Cancel(ctx context.Context, id int64) error {
	query := `
		UPDATE post_schedules
		SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status IN ('scheduled', 'publishing')
	`
	return r.exec(ctx, query, id)
}

func (r *postScheduleRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
