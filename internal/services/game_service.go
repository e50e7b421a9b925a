package services

import (
	"context"

	"github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/repository"
)

// GameService handles game-related business logic
type GameService interface {
	GetGame(ctx context.Context, id int64, profileID int64) (*models.Game, error)
	ListGames(ctx context.Context, filter models.GameFilter) ([]models.Game, int, error)
}

type gameService struct {
	gameRepo repository.GameRepository
}

// NewGameService creates a new GameService
func NewGameService(gameRepo repository.GameRepository) GameService {
	return &gameService{gameRepo: gameRepo}
}

func (s *gameService) GetGame(ctx context.Context, id int64, profileID int64) (*models.Game, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting game: id=%d, profile_id=%d", id, profileID)

	game, err := s.gameRepo.FindByID(ctx, id)
	if err != nil {
		log.Error("failed to get game: %v", err)
		return nil, err
	}
	// A game belonging to another profile is indistinguishable from a
	// missing one at this boundary.
	if game == nil || game.ProfileID != profileID {
		return nil, errors.NewNotFoundError("game", id)
	}
	return game, nil
}

func (s *gameService) ListGames(ctx context.Context, filter models.GameFilter) ([]models.Game, int, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing games: profile_id=%d", filter.ProfileID)

	games, err := s.gameRepo.List(ctx, filter)
	if err != nil {
		log.Error("failed to list games: %v", err)
		return nil, 0, err
	}
	total, err := s.gameRepo.CountByProfile(ctx, filter.ProfileID)
	if err != nil {
		log.Error("failed to count games: %v", err)
		return nil, 0, err
	}
	return games, total, nil
}
