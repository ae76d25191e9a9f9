package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type Post struct {
	ID             int64          `db:"id" json:"id"`
	OrganizationID int64          `db:"organization_id" json:"organization_id"`
	UserID         int64          `db:"user_id" json:"user_id"`
	Caption        string         `db:"caption" json:"caption"`
	Title          string         `db:"title" json:"title"`
	Hashtags       string         `db:"hashtags" json:"hashtags"`
	CallToAction   string         `db:"call_to_action" json:"call_to_action"`
	MediaURLs      pq.StringArray `db:"media_urls" json:"media_urls"`
	Status         string         `db:"status" json:"status"`
	ApprovalStatus sql.NullString `db:"approval_status" json:"approval_status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

type MediaAsset struct {
	ID             int64     `db:"id" json:"id"`
	OrganizationID int64     `db:"organization_id" json:"organization_id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	FileName       string    `db:"file_name" json:"file_name"`
	FileType       string    `db:"file_type" json:"file_type"`
	FileSize       int64     `db:"file_size" json:"file_size"`
	FileURL        string    `db:"file_url" json:"file_url"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

const (
	PostStatusDraft      = "draft"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
	PostStatusCancelled  = "cancelled"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)
