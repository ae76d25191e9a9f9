package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/service"
	"github.com/postpilot/postpilot/pkg/utils"
)

// TokenRefreshJob proactively refreshes tokens expiring soon so publishes
// do not hit expired credentials. Accounts whose refresh fails are marked
// inactive with the error surfaced for reconnection.
type TokenRefreshJob struct {
	cfg      config.Config
	sr       repository.SocialAccountRepository
	adapters platform.Registry
}

func NewTokenRefreshJob(cfg config.Config, sr repository.SocialAccountRepository, adapters platform.Registry) *TokenRefreshJob {
	return &TokenRefreshJob{cfg: cfg, sr: sr, adapters: adapters}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListExpiringBetween(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.refresh(ctx, acc); err != nil {
				slog.Info("unable to refresh token", "platform", acc.Platform, "account_id", acc.ID)
				if err := c.sr.SetError(ctx, acc.ID, err.Error(), false); err != nil {
					slog.Info(err.Error())
				}
			}
		}(acc)
	}

	wg.Wait()
}

func (c *TokenRefreshJob) refresh(ctx context.Context, acc *models.SocialAccount) error {
	adapter, ok := c.adapters.Get(acc.Platform)
	if !ok {
		return service.ErrUnsupportedPlatform
	}

	vaultKey := []byte(c.cfg.VaultKey)

	// Facebook and Instagram refresh with the long-lived access token
	// itself; the others carry a dedicated refresh token.
	credential := acc.RefreshToken
	if credential == "" {
		credential = acc.AccessToken
	}
	decrypted, err := utils.Decrypt(credential, vaultKey)
	if err != nil {
		return err
	}

	refreshed, err := adapter.RefreshToken(ctx, decrypted)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(refreshed.AccessToken), vaultKey)
	if err != nil {
		return err
	}
	var encryptedRefreshToken string
	if refreshed.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(refreshed.RefreshToken), vaultKey)
		if err != nil {
			return err
		}
	}

	update := &models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: service.GetExpiresAt(refreshed.ExpiresIn),
	}

	return c.sr.SetTokens(ctx, acc.ID, acc.AccessToken, update)
}
