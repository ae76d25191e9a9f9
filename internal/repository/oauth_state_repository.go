package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

type OAuthStateRepository interface {
	Create(ctx context.Context, st *models.OAuthState) error
	Consume(ctx context.Context, state string, platform models.Platform, now time.Time) (*models.OAuthState, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type oauthStateRepository struct {
	db *sql.DB
}

func NewOAuthStateRepository(db *sql.DB) OAuthStateRepository {
	return &oauthStateRepository{db: db}
}

func (r *oauthStateRepository) Create(ctx context.Context, st *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, platform, user_id, redirect_url, code_verifier, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		st.State,
		st.Platform,
		st.UserID,
		st.RedirectURL,
		st.CodeVerifier,
		st.ExpiresAt,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Consume atomically deletes and returns the record. Two callbacks racing
// on the same state see exactly one row; the loser gets (nil, nil).
// Expired records never match even when the string does.
func (r *oauthStateRepository) Consume(ctx context.Context, state string, platform models.Platform, now time.Time) (*models.OAuthState, error) {
	query := `
		DELETE FROM oauth_states
		WHERE state = $1 AND platform = $2 AND expires_at > $3
		RETURNING state, platform, user_id, redirect_url, code_verifier, created_at, expires_at
	`
	row := r.db.QueryRowContext(ctx, query, state, platform, now)

	var st models.OAuthState
	err := row.Scan(&st.State, &st.Platform, &st.UserID, &st.RedirectURL, &st.CodeVerifier, &st.CreatedAt, &st.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &st, nil
}

func (r *oauthStateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at <= $1`, now)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}
