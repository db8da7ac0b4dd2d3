package service

import (
	"context"
	"strings"

	"nimbus-portal/internal/models"
	"nimbus-portal/internal/repository"

	"go.uber.org/zap"
)

type ProfileService interface {
	Get(ctx context.Context, db repository.DBTX, username string) (*models.User, error)
	// Complete overwrites every profile field. Blank input clears the
	// previously saved value; nothing is merged.
	Complete(ctx context.Context, db repository.DBTX, username string, input models.Profile) (*models.User, error)
}

type profileService struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewProfileService(repo repository.UserRepository, logger *zap.Logger) ProfileService {
	return &profileService{repo: repo, logger: logger}
}

func (s *profileService) Get(ctx context.Context, db repository.DBTX, username string) (*models.User, error) {
	return s.repo.FindByUsername(ctx, db, username)
}

func (s *profileService) Complete(ctx context.Context, db repository.DBTX, username string, input models.Profile) (*models.User, error) {
	user, err := s.repo.FindByUsername(ctx, db, username)
	if err != nil {
		return nil, err
	}

	profile := trimProfile(input)
	if err := s.repo.UpdateProfile(ctx, db, user.Username, profile); err != nil {
		return nil, err
	}

	s.logger.Info("Profile saved", zap.String("username", user.Username))
	user.Profile = profile
	return user, nil
}

func trimProfile(p models.Profile) models.Profile {
	return models.Profile{
		FirstName:       strings.TrimSpace(p.FirstName),
		LastName:        strings.TrimSpace(p.LastName),
		Email:           strings.TrimSpace(p.Email),
		JobTitle:        strings.TrimSpace(p.JobTitle),
		FavoriteService: strings.TrimSpace(p.FavoriteService),
		Region:          strings.TrimSpace(p.Region),
		Bio:             strings.TrimSpace(p.Bio),
	}
}
