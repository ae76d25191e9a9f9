package models

import "time"

// OAuthState is a single-use correlation record between a connect request
// and its callback. Consumed (deleted) on first use.
type OAuthState struct {
	State        string    `db:"state" json:"state"`
	Platform     Platform  `db:"platform" json:"platform"`
	UserID       int64     `db:"user_id" json:"user_id"`
	RedirectURL  string    `db:"redirect_url" json:"redirect_url"`
	CodeVerifier string    `db:"code_verifier" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
}
