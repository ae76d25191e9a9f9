package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
)

type AccountService interface {
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID, accountID int64) error
}

type accountService struct {
	sa repository.SocialAccountRepository
	pr repository.ProfileRepository
}

func NewAccountService(sa repository.SocialAccountRepository, pr repository.ProfileRepository) AccountService {
	return &accountService{sa: sa, pr: pr}
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	profile, err := s.organization(ctx, userID)
	if err != nil {
		return nil, err
	}

	accounts, err := s.sa.ListByOrganization(ctx, profile.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts")
	}

	return accounts, nil
}

// Disconnect hard-deletes the account row; tokens go with it.
func (s *accountService) Disconnect(ctx context.Context, userID, accountID int64) error {
	if accountID == 0 {
		err := errors.New("account id is not valid")
		slog.Info(err.Error())
		return err
	}

	profile, err := s.organization(ctx, userID)
	if err != nil {
		return err
	}

	isValid, err := s.sa.CheckByOrganization(ctx, accountID, profile.OrganizationID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("social account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	if err := s.sa.Remove(ctx, accountID); err != nil {
		return fmt.Errorf("error removing account")
	}

	return nil
}

func (s *accountService) organization(ctx context.Context, userID int64) (*models.Profile, error) {
	if userID == 0 {
		err := errors.New("user id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	profile, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		err = errors.New("user profile not found")
		slog.Info(err.Error())
		return nil, err
	}

	return profile, nil
}
