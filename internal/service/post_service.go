package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
)

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, userID, postID int64) (*models.Post, error)
	ListSchedules(ctx context.Context, userID int64) ([]*models.PostSchedule, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	db      *sql.DB
	pr      repository.PostRepository
	sr      repository.PostScheduleRepository
	ar      repository.SocialAccountRepository
	ma      repository.MediaAssetRepository
	prof    repository.ProfileRepository
	storage *StorageService
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	sr repository.PostScheduleRepository,
	ar repository.SocialAccountRepository,
	ma repository.MediaAssetRepository,
	prof repository.ProfileRepository,
	storage *StorageService) PostService {
	return &postService{
		db:      db,
		pr:      pr,
		sr:      sr,
		ar:      ar,
		ma:      ma,
		prof:    prof,
		storage: storage,
	}
}

// CreatePost stores the post and one schedule per selected account in a
// single transaction. Publishing is left to the scheduler tick.
func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, err
	}
	if pc.Caption == "" {
		err := errors.New("caption cannot be empty")
		slog.Info(err.Error())
		return 0, err
	}

	scheduledTime, err := time.Parse("2006-01-02T15:04", pc.ScheduledTime)
	if err != nil {
		err = fmt.Errorf("invalid scheduled time format: %w", err)
		slog.Error(err.Error())
		return 0, err
	}

	var accountIDs []int64
	if err := json.Unmarshal([]byte(pc.AccountIDs), &accountIDs); err != nil {
		err = fmt.Errorf("invalid account ids format: %w", err)
		slog.Error(err.Error())
		return 0, err
	}
	if len(accountIDs) == 0 {
		err := errors.New("no social accounts selected")
		slog.Error(err.Error())
		return 0, err
	}

	profile, err := s.prof.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if profile == nil {
		return 0, errors.New("user profile not found")
	}
	orgID := profile.OrganizationID

	accounts := make(map[int64]*models.SocialAccount, len(accountIDs))
	for _, accountID := range accountIDs {
		account, err := s.ar.GetByID(ctx, accountID)
		if err != nil {
			return 0, err
		}
		if account == nil || account.OrganizationID != orgID {
			return 0, fmt.Errorf("social account %d does not exist", accountID)
		}
		if !account.IsActive {
			return 0, fmt.Errorf("social account %d needs reconnection", accountID)
		}
		accounts[accountID] = account
	}

	mediaURLs, err := s.processFiles(ctx, orgID, userID, files)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	post := models.Post{
		OrganizationID: orgID,
		UserID:         userID,
		Caption:        pc.Caption,
		Title:          pc.Title,
		Hashtags:       pc.Hashtags,
		CallToAction:   pc.CallToAction,
		MediaURLs:      mediaURLs,
		Status:         models.PostStatusScheduled,
	}

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	for _, accountID := range accountIDs {
		schedule := models.PostSchedule{
			OrganizationID:  orgID,
			PostID:          postID,
			SocialAccountID: accountID,
			Platform:        accounts[accountID].Platform,
			ScheduledFor:    scheduledTime,
			Status:          models.PostStatusScheduled,
		}
		if _, err = s.sr.Create(ctx, tx, &schedule); err != nil {
			return 0, fmt.Errorf("error scheduling for account %d: %w", accountID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return postID, nil
}

func (s *postService) processFiles(ctx context.Context, orgID, userID int64, files []*multipart.FileHeader) ([]string, error) {
	allowedTypes := map[string]struct{}{
		"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {},
	}

	var urls []string
	for _, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening file: %w", err)
		}

		fileBytes, err := io.ReadAll(fileContent)
		fileContent.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return nil, errors.New("unsupported file type")
		}
		if _, ok := allowedTypes[fileType.Extension]; !ok {
			return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		key, err := gonanoid.New()
		if err != nil {
			return nil, err
		}

		fileURL, err := s.storage.Upload(ctx, key, fileBytes, fileType.MIME.Value)
		if err != nil {
			return nil, fmt.Errorf("error uploading file: %w", err)
		}

		ma := models.MediaAsset{
			OrganizationID: orgID,
			UserID:         userID,
			FileName:       key,
			FileType:       fileType.MIME.Value,
			FileSize:       int64(len(fileBytes)),
			FileURL:        fileURL,
		}
		if _, err := s.ma.Create(ctx, nil, &ma); err != nil {
			return nil, fmt.Errorf("error saving media asset: %w", err)
		}

		urls = append(urls, fileURL)
	}
	return urls, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	profile, err := s.prof.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.New("user profile not found")
	}

	posts, err := s.pr.ListByOrganization(ctx, profile.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("error getting posts")
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, userID, postID int64) (*models.Post, error) {
	profile, err := s.prof.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.New("user profile not found")
	}

	isValid, err := s.pr.CheckByOrganization(ctx, postID, profile.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	return s.pr.GetByID(ctx, postID)
}

func (s *postService) ListSchedules(ctx context.Context, userID int64) ([]*models.PostSchedule, error) {
	profile, err := s.prof.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.New("user profile not found")
	}

	schedules, err := s.sr.ListByOrganization(ctx, profile.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("error getting schedules")
	}
	return schedules, nil
}

// Remove cancels the post rather than deleting it while schedules still
// reference it; a post with no schedules is deleted outright.
func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	profile, err := s.prof.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if profile == nil {
		return errors.New("user profile not found")
	}

	isValid, err := s.pr.CheckByOrganization(ctx, postID, profile.OrganizationID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return err
	}

	schedules, err := s.sr.ListByPostID(ctx, postID)
	if err != nil {
		return err
	}

	if len(schedules) == 0 {
		if err := s.pr.Remove(ctx, postID); err != nil {
			return fmt.Errorf("error removing post")
		}
		return nil
	}

	for _, schedule := range schedules {
		if schedule.Status == models.PostStatusScheduled || schedule.Status == models.PostStatusPublishing {
			if err := s.sr.Cancel(ctx, schedule.ID); err != nil {
				return err
			}
		}
	}

	return s.pr.UpdateStatus(ctx, models.PostStatusCancelled, postID)
}
