package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/pkg/utils"
)

const (
	DefaultMaxAttempts = 3
	retryBackoffBase   = time.Minute
	staleJobGrace      = 10 * time.Minute
)

// TaskEnqueuer hands a publish job to the delivery queue, optionally
// delayed. Implemented by the asynq-backed queue.
type TaskEnqueuer interface {
	EnqueuePublishJob(jobID int64, delay time.Duration) error
}

// SchedulerService turns due schedules into publish job executions with
// bounded retry. All three operations are safe under concurrent or
// overlapping invocations.
type SchedulerService interface {
	EnqueueDue(ctx context.Context, now time.Time) (int, error)
	RunOne(ctx context.Context, jobID int64) error
	ReclaimStale(ctx context.Context, now time.Time) (int, error)
}

type schedulerService struct {
	cfg      config.Config
	adapters platform.Registry
	jr       repository.PublishJobRepository
	sr       repository.PostScheduleRepository
	ar       repository.SocialAccountRepository
	pr       repository.PostRepository
	enq      TaskEnqueuer
}

func NewSchedulerService(
	cfg config.Config,
	adapters platform.Registry,
	jr repository.PublishJobRepository,
	sr repository.PostScheduleRepository,
	ar repository.SocialAccountRepository,
	pr repository.PostRepository,
	enq TaskEnqueuer) SchedulerService {
	return &schedulerService{
		cfg:      cfg,
		adapters: adapters,
		jr:       jr,
		sr:       sr,
		ar:       ar,
		pr:       pr,
		enq:      enq,
	}
}

func (s *schedulerService) EnqueueDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.jr.EnqueueDue(ctx, now, DefaultMaxAttempts)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.enq.EnqueuePublishJob(id, 0); err != nil {
			slog.Info("failed to enqueue publish task", "job_id", id, "error", err.Error())
		}
	}
	return len(ids), nil
}

// RunOne claims and executes a single job. A job already claimed by
// another worker, or already terminal, is a no-op.
func (s *schedulerService) RunOne(ctx context.Context, jobID int64) error {
	now := time.Now()

	job, err := s.jr.Claim(ctx, jobID, now)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	schedule, err := s.sr.GetByID(ctx, job.PostScheduleID)
	if err != nil {
		return err
	}
	if schedule == nil {
		return s.failPermanently(ctx, job, nil, "schedule no longer exists")
	}

	if err := s.sr.SetPublishing(ctx, schedule.ID, now); err != nil {
		return err
	}

	account, err := s.ar.GetByID(ctx, schedule.SocialAccountID)
	if err != nil {
		return err
	}
	if account == nil || !account.IsActive {
		return s.failPermanently(ctx, job, schedule, "social account is disconnected")
	}

	post, err := s.pr.GetByID(ctx, schedule.PostID)
	if err != nil {
		return err
	}
	if post == nil {
		return s.failPermanently(ctx, job, schedule, "post no longer exists")
	}

	adapter, ok := s.adapters.Get(schedule.Platform)
	if !ok {
		return s.failPermanently(ctx, job, schedule, ErrUnsupportedPlatform.Error())
	}

	creds, err := s.credentials(ctx, adapter, account, now)
	if err != nil {
		if err := s.ar.SetError(ctx, account.ID, err.Error(), false); err != nil {
			slog.Info(err.Error())
		}
		return s.failPermanently(ctx, job, schedule, ErrAuthExpired.Error())
	}

	content := platform.PostContent{
		Caption:      post.Caption,
		Title:        post.Title,
		Hashtags:     post.Hashtags,
		CallToAction: post.CallToAction,
		MediaURLs:    post.MediaURLs,
	}

	externalID, err := adapter.Publish(ctx, creds, content)
	if err != nil {
		return s.handlePublishFailure(ctx, job, schedule, account, err)
	}

	completedAt := time.Now()
	if err := s.jr.SetSucceeded(ctx, job.ID, completedAt); err != nil {
		return err
	}
	if err := s.sr.SetPublished(ctx, schedule.ID, externalID, completedAt); err != nil {
		return err
	}
	if err := s.pr.UpdateStatus(ctx, models.PostStatusPublished, schedule.PostID); err != nil {
		slog.Info(err.Error())
	}

	return nil
}

func (s *schedulerService) handlePublishFailure(ctx context.Context, job *models.PublishJob, schedule *models.PostSchedule, account *models.SocialAccount, pubErr error) error {
	if platform.IsAuthError(pubErr) {
		if err := s.ar.SetError(ctx, account.ID, pubErr.Error(), false); err != nil {
			slog.Info(err.Error())
		}
		return s.failPermanently(ctx, job, schedule, pubErr.Error())
	}

	if platform.IsRetryable(pubErr) && job.Attempts < job.MaxAttempts {
		if err := s.jr.SetPending(ctx, job.ID, pubErr.Error()); err != nil {
			return err
		}
		if err := s.sr.RecordAttempt(ctx, schedule.ID, pubErr.Error(), time.Now()); err != nil {
			slog.Info(err.Error())
		}

		delay := retryBackoffBase * time.Duration(1<<job.Attempts)
		if err := s.enq.EnqueuePublishJob(job.ID, delay); err != nil {
			slog.Info("failed to enqueue retry", "job_id", job.ID, "error", err.Error())
		}
		return nil
	}

	return s.failPermanently(ctx, job, schedule, pubErr.Error())
}

func (s *schedulerService) failPermanently(ctx context.Context, job *models.PublishJob, schedule *models.PostSchedule, message string) error {
	if err := s.jr.SetFailed(ctx, job.ID, message, time.Now()); err != nil {
		return err
	}
	if schedule != nil {
		if err := s.sr.SetFailed(ctx, schedule.ID, message); err != nil {
			return err
		}
		if err := s.pr.UpdateStatus(ctx, models.PostStatusFailed, schedule.PostID); err != nil {
			slog.Info(err.Error())
		}
	}
	return nil
}

// credentials decrypts the stored tokens, refreshing first when the
// access token has expired and a refresh token is available.
func (s *schedulerService) credentials(ctx context.Context, adapter platform.Adapter, account *models.SocialAccount, now time.Time) (platform.Credentials, error) {
	vaultKey := []byte(s.cfg.VaultKey)

	accessToken, err := utils.Decrypt(account.AccessToken, vaultKey)
	if err != nil {
		return platform.Credentials{}, err
	}

	if account.TokenExpiresAt.Valid && account.TokenExpiresAt.Time.Before(now) {
		if account.RefreshToken == "" {
			return platform.Credentials{}, fmt.Errorf("access token expired and no refresh token is stored")
		}

		refreshToken, err := utils.Decrypt(account.RefreshToken, vaultKey)
		if err != nil {
			return platform.Credentials{}, err
		}

		refreshed, err := adapter.RefreshToken(ctx, refreshToken)
		if err != nil {
			return platform.Credentials{}, fmt.Errorf("token refresh failed: %w", err)
		}

		encryptedAccessToken, err := utils.Encrypt([]byte(refreshed.AccessToken), vaultKey)
		if err != nil {
			return platform.Credentials{}, err
		}
		var encryptedRefreshToken string
		if refreshed.RefreshToken != "" {
			encryptedRefreshToken, err = utils.Encrypt([]byte(refreshed.RefreshToken), vaultKey)
			if err != nil {
				return platform.Credentials{}, err
			}
		}

		update := &models.SocialAccount{
			AccessToken:    encryptedAccessToken,
			RefreshToken:   encryptedRefreshToken,
			TokenExpiresAt: GetExpiresAt(refreshed.ExpiresIn),
		}
		if err := s.ar.SetTokens(ctx, account.ID, account.AccessToken, update); err != nil {
			return platform.Credentials{}, err
		}

		accessToken = refreshed.AccessToken
	}

	creds := platform.Credentials{
		AccountID:   account.AccountID,
		AccessToken: accessToken,
	}

	if account.PageID.Valid && account.PageAccessToken.Valid {
		pageToken, err := utils.Decrypt(account.PageAccessToken.String, vaultKey)
		if err != nil {
			return platform.Credentials{}, err
		}
		creds.PageID = account.PageID.String
		creds.PageAccessToken = pageToken
	}

	return creds, nil
}

func (s *schedulerService) ReclaimStale(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.jr.ReclaimStale(ctx, now.Add(-staleJobGrace))
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.enq.EnqueuePublishJob(id, 0); err != nil {
			slog.Info("failed to enqueue reclaimed job", "job_id", id, "error", err.Error())
		}
	}
	return len(ids), nil
}
