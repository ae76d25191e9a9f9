package models

import (
	"database/sql"
	"time"
)

type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
)

func ParsePlatform(s string) (Platform, bool) {
	switch Platform(s) {
	case PlatformFacebook, PlatformInstagram, PlatformLinkedIn, PlatformTwitter:
		return Platform(s), true
	}
	return "", false
}

type SocialAccount struct {
	ID              int64          `db:"id" json:"id"`
	OrganizationID  int64          `db:"organization_id" json:"organization_id"`
	Platform        Platform       `db:"platform" json:"platform"`
	AccountID       string         `db:"account_id" json:"account_id"`
	AccountName     string         `db:"account_name" json:"account_name"`
	AccessToken     string         `db:"access_token" json:"-"`
	RefreshToken    string         `db:"refresh_token" json:"-"`
	PageID          sql.NullString `db:"page_id" json:"page_id"`
	PageAccessToken sql.NullString `db:"page_access_token" json:"-"`
	TokenExpiresAt  sql.NullTime   `db:"token_expires_at" json:"token_expires_at"`
	IsActive        bool           `db:"is_active" json:"is_active"`
	LastError       sql.NullString `db:"last_error" json:"last_error"`
	LastSyncAt      sql.NullTime   `db:"last_sync_at" json:"last_sync_at"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}
