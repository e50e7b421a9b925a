package services

import (
	"context"

	"github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/platform"
	"github.com/vytor/chessync/internal/repository"
)

// ProfileService handles profile-related business logic
type ProfileService interface {
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	CreateProfile(ctx context.Context, chessComUsername, lichessUsername string) (*models.Profile, error)
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	DeleteProfile(ctx context.Context, id int64) error
}

type profileService struct {
	profileRepo repository.ProfileRepository
	adapters    map[models.Source]platform.SourceAdapter
}

// NewProfileService creates a new ProfileService
func NewProfileService(profileRepo repository.ProfileRepository, adapters []platform.SourceAdapter) ProfileService {
	bySource := make(map[models.Source]platform.SourceAdapter, len(adapters))
	for _, a := range adapters {
		bySource[a.Source()] = a
	}
	return &profileService{profileRepo: profileRepo, adapters: bySource}
}

func (s *profileService) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing profiles")

	profiles, err := s.profileRepo.List(ctx)
	if err != nil {
		log.Error("failed to list profiles: %v", err)
		return nil, err
	}
	return profiles, nil
}

func (s *profileService) CreateProfile(ctx context.Context, chessComUsername, lichessUsername string) (*models.Profile, error) {
	log := logger.FromContext(ctx)
	log.Debug("creating profile: chesscom=%s, lichess=%s", chessComUsername, lichessUsername)

	if chessComUsername == "" && lichessUsername == "" {
		return nil, errors.NewValidationError("username", "at least one platform username is required")
	}

	// A bad username is cheaper to catch here than on the first sync.
	candidate := models.Profile{ChessComUsername: chessComUsername, LichessUsername: lichessUsername}
	for _, source := range candidate.Sources() {
		adapter, ok := s.adapters[source]
		if !ok {
			continue
		}
		username := candidate.Username(source)
		exists, err := adapter.ValidateUser(ctx, username)
		if err != nil {
			log.Warn("could not validate %s user %q: %v", source, username, err)
			continue
		}
		if !exists {
			return nil, errors.NewUserNotFoundError(string(source), username)
		}
	}

	profile, err := s.profileRepo.Create(ctx, chessComUsername, lichessUsername)
	if err != nil {
		log.Error("failed to create profile: %v", err)
		return nil, err
	}
	return profile, nil
}

func (s *profileService) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting profile: id=%d", id)

	profile, err := s.profileRepo.Get(ctx, id)
	if err != nil {
		log.Error("failed to get profile: %v", err)
		return nil, err
	}
	if profile == nil {
		return nil, errors.NewNotFoundError("profile", id)
	}
	return profile, nil
}

func (s *profileService) DeleteProfile(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx)
	log.Debug("deleting profile: id=%d", id)

	if err := s.profileRepo.Delete(ctx, id); err != nil {
		log.Error("failed to delete profile: %v", err)
		return err
	}
	return nil
}
