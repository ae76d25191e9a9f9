package models

import (
	"database/sql"
	"time"
)

// PostSchedule binds one post to one social account at one future time.
// At most one non-terminal schedule may exist per (post, account) pair.
type PostSchedule struct {
	ID              int64          `db:"id" json:"id"`
	OrganizationID  int64          `db:"organization_id" json:"organization_id"`
	PostID          int64          `db:"post_id" json:"post_id"`
	SocialAccountID int64          `db:"social_account_id" json:"social_account_id"`
	Platform        Platform       `db:"platform" json:"platform"`
	ScheduledFor    time.Time      `db:"scheduled_for" json:"scheduled_for"`
	Status          string         `db:"status" json:"status"`
	Attempts        int            `db:"attempts" json:"attempts"`
	LastAttemptAt   sql.NullTime   `db:"last_attempt_at" json:"last_attempt_at"`
	ErrorMessage    sql.NullString `db:"error_message" json:"error_message"`
	PublishedPostID sql.NullString `db:"published_post_id" json:"published_post_id"`
	PublishedAt     sql.NullTime   `db:"published_at" json:"published_at"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// PublishJob is the unit of work derived from a due schedule. Exactly one
// job may be in_progress per schedule at a time.
type PublishJob struct {
	ID             int64          `db:"id" json:"id"`
	OrganizationID int64          `db:"organization_id" json:"organization_id"`
	PostScheduleID int64          `db:"post_schedule_id" json:"post_schedule_id"`
	Priority       int            `db:"priority" json:"priority"`
	Status         string         `db:"status" json:"status"`
	Attempts       int            `db:"attempts" json:"attempts"`
	MaxAttempts    int            `db:"max_attempts" json:"max_attempts"`
	ScheduledFor   time.Time      `db:"scheduled_for" json:"scheduled_for"`
	StartedAt      sql.NullTime   `db:"started_at" json:"started_at"`
	CompletedAt    sql.NullTime   `db:"completed_at" json:"completed_at"`
	ErrorMessage   sql.NullString `db:"error_message" json:"error_message"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"
)
