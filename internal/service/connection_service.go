package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/pkg/utils"
)

const stateTTL = 10 * time.Minute

// ConnectionService drives the connect -> redirect -> callback -> persist
// sequence. Begin and Complete are two independent entry points sharing
// state only through the persisted oauth_states record.
type ConnectionService interface {
	Begin(ctx context.Context, userID int64, p models.Platform, redirectURL string) (string, error)
	Complete(ctx context.Context, p models.Platform, code, state, errParam string) string
	SweepExpiredStates(ctx context.Context, now time.Time) error
}

type connectionService struct {
	cfg      config.Config
	adapters platform.Registry
	os       repository.OAuthStateRepository
	sa       repository.SocialAccountRepository
	pr       repository.ProfileRepository
}

func NewConnectionService(
	cfg config.Config,
	adapters platform.Registry,
	os repository.OAuthStateRepository,
	sa repository.SocialAccountRepository,
	pr repository.ProfileRepository) ConnectionService {
	return &connectionService{
		cfg:      cfg,
		adapters: adapters,
		os:       os,
		sa:       sa,
		pr:       pr,
	}
}

func (s *connectionService) Begin(ctx context.Context, userID int64, p models.Platform, redirectURL string) (string, error) {
	adapter, ok := s.adapters.Get(p)
	if !ok {
		return "", ErrUnsupportedPlatform
	}
	if !adapter.Configured() {
		return "", ErrConfiguration
	}

	if redirectURL == "" {
		redirectURL = s.cfg.FrontendURL + "/accounts"
	}

	state := uuid.NewString()
	authURL, codeVerifier, err := adapter.AuthorizationURL(state)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	now := time.Now()
	record := &models.OAuthState{
		State:        state,
		Platform:     p,
		UserID:       userID,
		RedirectURL:  redirectURL,
		CodeVerifier: codeVerifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(stateTTL),
	}
	if err := s.os.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}

	return authURL, nil
}

// Complete always resolves to a redirect URL; no platform error escapes to
// the browser as anything but an error query parameter. The state record
// is consumed before the code exchange so a retried callback cannot reuse
// it.
func (s *connectionService) Complete(ctx context.Context, p models.Platform, code, state, errParam string) string {
	redirectURL := s.cfg.FrontendURL + "/accounts"

	var record *models.OAuthState
	if state != "" {
		var err error
		record, err = s.os.Consume(ctx, state, p, time.Now())
		if err != nil {
			slog.Info(err.Error())
		}
		if record != nil {
			redirectURL = record.RedirectURL
		}
	}

	if errParam != "" {
		slog.Info("oauth callback returned error", "platform", p, "error", errParam)
		return failureRedirect(redirectURL, errParam)
	}
	if code == "" || state == "" {
		return failureRedirect(redirectURL, "missing required parameters")
	}
	if record == nil {
		slog.Info("oauth state not found or expired", "platform", p)
		return failureRedirect(redirectURL, ErrInvalidState.Error())
	}

	account, err := s.exchangeAndPersist(ctx, p, code, record)
	if err != nil {
		slog.Info(err.Error())
		return failureRedirect(redirectURL, err.Error())
	}

	return successRedirect(redirectURL, p, account.AccountName)
}

func (s *connectionService) exchangeAndPersist(ctx context.Context, p models.Platform, code string, record *models.OAuthState) (*models.SocialAccount, error) {
	adapter, ok := s.adapters.Get(p)
	if !ok {
		return nil, ErrUnsupportedPlatform
	}

	token, err := adapter.ExchangeCode(ctx, code, record.CodeVerifier)
	if err != nil {
		return nil, err
	}

	identity, err := adapter.ResolveIdentity(ctx, token)
	if err != nil {
		return nil, err
	}

	profile, err := s.pr.GetByUserID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.New("user profile not found")
	}

	vaultKey := []byte(s.cfg.VaultKey)
	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), vaultKey)
	if err != nil {
		return nil, err
	}

	var encryptedRefreshToken string
	if token.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), vaultKey)
		if err != nil {
			return nil, err
		}
	}

	account := &models.SocialAccount{
		OrganizationID: profile.OrganizationID,
		Platform:       p,
		AccountID:      identity.ExternalID,
		AccountName:    identity.DisplayName,
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: GetExpiresAt(token.ExpiresIn),
		LastSyncAt:     sql.NullTime{Time: time.Now(), Valid: true},
	}

	if identity.PageID != "" {
		encryptedPageToken, err := utils.Encrypt([]byte(identity.PageAccessToken), vaultKey)
		if err != nil {
			return nil, err
		}
		account.PageID = sql.NullString{String: identity.PageID, Valid: true}
		account.PageAccessToken = sql.NullString{String: encryptedPageToken, Valid: true}
	}

	id, err := s.sa.Upsert(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to save account connection: %w", err)
	}
	account.ID = id

	return account, nil
}

func (s *connectionService) SweepExpiredStates(ctx context.Context, now time.Time) error {
	_, err := s.os.DeleteExpired(ctx, now)
	return err
}

func successRedirect(base string, p models.Platform, accountName string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("connected", string(p))
	q.Set("account", accountName)
	u.RawQuery = q.Encode()
	return u.String()
}

func failureRedirect(base, message string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("error", message)
	u.RawQuery = q.Encode()
	return u.String()
}
