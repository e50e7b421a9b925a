package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/platform"
	"github.com/vytor/chessync/internal/repository"
)

// Re-fetch buffer past the latest stored game, so the boundary game is
// not fetched again on every incremental run.
const incrementalBuffer = time.Second

// SyncOptions tunes one sync invocation.
type SyncOptions struct {
	FullSync bool
	MaxGames int
}

// SyncService coordinates the configured source adapters against the
// store. Sources are processed independently: one platform being down
// never blocks the other's games from landing.
type SyncService interface {
	SyncGames(ctx context.Context, profileID int64, opts SyncOptions) (*models.SyncResult, error)
	FullResync(ctx context.Context, profileID int64) (*models.SyncResult, error)
}

type syncService struct {
	profileRepo repository.ProfileRepository
	gameRepo    repository.GameRepository
	adapters    map[models.Source]platform.SourceAdapter
	maxGames    int
}

// NewSyncService creates a new SyncService. maxGames caps a single
// incremental fetch per source; zero means the adapter default.
func NewSyncService(
	profileRepo repository.ProfileRepository,
	gameRepo repository.GameRepository,
	adapters []platform.SourceAdapter,
	maxGames int,
) SyncService {
	bySource := make(map[models.Source]platform.SourceAdapter, len(adapters))
	for _, a := range adapters {
		bySource[a.Source()] = a
	}
	return &syncService{
		profileRepo: profileRepo,
		gameRepo:    gameRepo,
		adapters:    bySource,
		maxGames:    maxGames,
	}
}

func (s *syncService) SyncGames(ctx context.Context, profileID int64, opts SyncOptions) (*models.SyncResult, error) {
	runID := uuid.NewString()
	log := logger.FromContext(ctx).WithFields(map[string]any{
		"profile_id": profileID,
		"run_id":     runID,
	})
	ctx = logger.NewContext(ctx, log)

	profile, err := s.profileRepo.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.NewNotFoundError("profile", profileID)
	}

	result := &models.SyncResult{
		RunID:    runID,
		Success:  true,
		SyncedAt: time.Now().UTC(),
	}

	sources := profile.Sources()
	log.Info("starting sync: full=%v, sources=%d", opts.FullSync, len(sources))

	for _, source := range sources {
		sr := s.syncSource(ctx, profile, source, opts)
		if sr.Error != "" {
			result.Success = false
		}
		result.NewGamesCount += sr.NewGames
		result.Sources = append(result.Sources, sr)
	}

	// The total reflects reality even on partial failure.
	total, err := s.gameRepo.CountByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	result.TotalGamesCount = total

	if result.Success && len(sources) > 0 {
		if err := s.profileRepo.UpdateSync(ctx, profileID, result.SyncedAt); err != nil {
			log.Warn("failed to record sync timestamp: %v", err)
		}
	}

	log.Info("sync finished: success=%v, new=%d, total=%d",
		result.Success, result.NewGamesCount, result.TotalGamesCount)
	return result, nil
}

// syncSource runs the fetch-then-persist sequence for one platform.
// Adapter and store failures are downgraded to the per-source result;
// they never abort the sibling source.
func (s *syncService) syncSource(ctx context.Context, profile *models.Profile, source models.Source, opts SyncOptions) models.SyncSourceResult {
	log := logger.FromContext(ctx).WithField("source", string(source))
	sr := models.SyncSourceResult{Source: source}

	adapter, ok := s.adapters[source]
	if !ok {
		log.Error("no adapter registered")
		sr.Error = "no adapter registered for " + string(source)
		return sr
	}
	username := profile.Username(source)

	fetchOpts := platform.FetchOptions{
		MaxGames: opts.MaxGames,
		FetchAll: opts.FullSync,
	}
	if fetchOpts.MaxGames == 0 {
		fetchOpts.MaxGames = s.maxGames
	}

	if !opts.FullSync {
		latest, err := s.gameRepo.LatestGameDate(ctx, profile.ID, source)
		if err != nil {
			log.Error("failed to read sync point: %v", err)
			sr.Error = err.Error()
			return sr
		}
		if latest != nil {
			since := latest.Add(incrementalBuffer)
			fetchOpts.Since = &since
			log.Debug("incremental fetch since %s", since.Format(time.RFC3339))
		}
	}

	games, err := adapter.FetchGames(ctx, username, fetchOpts)
	if err != nil {
		log.Error("fetch failed: %v", err)
		sr.Error = err.Error()
		return sr
	}
	if len(games) == 0 {
		log.Debug("no new games")
		return sr
	}

	for i := range games {
		games[i].ProfileID = profile.ID
	}

	newCount, err := s.gameRepo.SaveMany(ctx, games)
	if err != nil {
		log.Error("persist failed: %v", err)
		sr.Error = err.Error()
		return sr
	}

	sr.NewGames = newCount
	log.Info("synced %d games (%d new)", len(games), newCount)
	return sr
}

// FullResync discards every stored game for the profile and refetches
// from scratch. Destructive: if the refetch then fails, the returned
// result still reports the real (reduced) totals rather than masking
// the deletion.
func (s *syncService) FullResync(ctx context.Context, profileID int64) (*models.SyncResult, error) {
	log := logger.FromContext(ctx).WithField("profile_id", profileID)

	deleted, err := s.gameRepo.DeleteByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	log.Info("full resync: deleted %d stored games", deleted)

	return s.SyncGames(ctx, profileID, SyncOptions{FullSync: true})
}
