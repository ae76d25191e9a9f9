package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

type SocialAccountRepository interface {
	Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*models.SocialAccount, error)
	ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error)
	CheckByOrganization(ctx context.Context, accountID, orgID int64) (bool, error)
	SetTokens(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error
	SetError(ctx context.Context, id int64, message string, active bool) error
	Remove(ctx context.Context, id int64) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

// Upsert makes reconnection idempotent: the row is keyed by
// (organization_id, platform, account_id) and a conflict overwrites
// tokens while reactivating the account.
func (r *socialAccountRepository) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	query := `
		INSERT INTO social_accounts (
			organization_id,
			platform,
			account_id,
			account_name,
			access_token,
			refresh_token,
			page_id,
			page_access_token,
			token_expires_at,
			is_active,
			last_sync_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10)
		ON CONFLICT (organization_id, platform, account_id) DO UPDATE SET
			account_name = EXCLUDED.account_name,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			page_id = EXCLUDED.page_id,
			page_access_token = EXCLUDED.page_access_token,
			token_expires_at = EXCLUDED.token_expires_at,
			is_active = TRUE,
			last_error = NULL,
			last_sync_at = EXCLUDED.last_sync_at,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		sa.OrganizationID,
		sa.Platform,
		sa.AccountID,
		sa.AccountName,
		sa.AccessToken,
		sa.RefreshToken,
		sa.PageID,
		sa.PageAccessToken,
		sa.TokenExpiresAt,
		sa.LastSyncAt,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `
		SELECT id, organization_id, platform, account_id, account_name,
			access_token, refresh_token, page_id, page_access_token,
			token_expires_at, is_active, last_error, last_sync_at,
			created_at, updated_at
		FROM social_accounts WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.OrganizationID, &sa.Platform, &sa.AccountID, &sa.AccountName,
		&sa.AccessToken, &sa.RefreshToken, &sa.PageID, &sa.PageAccessToken,
		&sa.TokenExpiresAt, &sa.IsActive, &sa.LastError, &sa.LastSyncAt,
		&sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &sa, nil
}

func (r *socialAccountRepository) ListByOrganization(ctx context.Context, orgID int64) ([]*models.SocialAccount, error) {
	query := `
		SELECT id, platform, account_id, account_name, page_id, is_active, last_error, last_sync_at
		FROM social_accounts WHERE organization_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		var sa models.SocialAccount
		err := rows.Scan(&sa.ID, &sa.Platform, &sa.AccountID, &sa.AccountName,
			&sa.PageID, &sa.IsActive, &sa.LastError, &sa.LastSyncAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &sa)
	}
	return accounts, rows.Err()
}

func (r *socialAccountRepository) ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	query := `
		SELECT id, organization_id, platform, access_token, refresh_token, token_expires_at
		FROM social_accounts
		WHERE is_active = TRUE
		AND token_expires_at IS NOT NULL
		AND token_expires_at BETWEEN $1 AND $2
	`
	rows, err := r.db.QueryContext(ctx, query, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		var sa models.SocialAccount
		err := rows.Scan(&sa.ID, &sa.OrganizationID, &sa.Platform, &sa.AccessToken, &sa.RefreshToken, &sa.TokenExpiresAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &sa)
	}
	return accounts, rows.Err()
}

func (r *socialAccountRepository) CheckByOrganization(ctx context.Context, accountID, orgID int64) (bool, error) {
	query := `SELECT 1 FROM social_accounts WHERE id = $1 AND organization_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, orgID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// SetTokens updates credentials only when the stored access token still
// matches oldAccessToken, so a racing connect and refresh cannot clobber
// each other's write.
func (r *socialAccountRepository) SetTokens(ctx context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error {
	query := `
		UPDATE social_accounts
		SET
			access_token = COALESCE(NULLIF($3, ''), access_token),
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			token_expires_at = COALESCE($5, token_expires_at),
			last_error = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND access_token = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, oldAccessToken, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return errors.New("token update conflicted with a concurrent write")
	}

	return nil
}

func (r *socialAccountRepository) SetError(ctx context.Context, id int64, message string, active bool) error {
	query := `
		UPDATE social_accounts
		SET last_error = $2, is_active = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, message, active)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) Remove(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM social_accounts WHERE id = $1`, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
