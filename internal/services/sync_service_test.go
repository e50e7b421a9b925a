package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/platform"
	"github.com/vytor/chessync/internal/services"
	"github.com/vytor/chessync/internal/testutil/mocks"
)

func testProfile(id int64, chessCom, lichess string) *models.Profile {
	return &models.Profile{
		ID:               id,
		ChessComUsername: chessCom,
		LichessUsername:  lichess,
		CreatedAt:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func sourceGames(source models.Source, n int) []models.Game {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	games := make([]models.Game, n)
	for i := range games {
		games[i] = models.Game{
			GameUID:  string(source) + ":" + string(rune('a'+i)),
			Source:   source,
			PlayedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return games
}

func TestSyncGames_SingleSource(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	gameRepo := new(mocks.MockGameRepository)
	lichess := &mocks.MockSourceAdapter{AdapterSource: models.SourceLichess}

	profileRepo.On("Get", mock.Anything, int64(1)).Return(testProfile(1, "", "alice"), nil)
	gameRepo.On("LatestGameDate", mock.Anything, int64(1), models.SourceLichess).Return(nil, nil)
	lichess.On("FetchGames", mock.Anything, "alice", mock.Anything).Return(sourceGames(models.SourceLichess, 3), nil)
	gameRepo.On("SaveMany", mock.Anything, mock.MatchedBy(func(games []models.Game) bool {
		for _, g := range games {
			if g.ProfileID != 1 {
				return false
			}
		}
		return len(games) == 3
	})).Return(3, nil)
	gameRepo.On("CountByProfile", mock.Anything, int64(1)).Return(3, nil)
	profileRepo.On("UpdateSync", mock.Anything, int64(1), mock.Anything).Return(nil)

	svc := services.NewSyncService(profileRepo, gameRepo, []platform.SourceAdapter{lichess}, 500)
	result, err := svc.SyncGames(context.Background(), 1, services.SyncOptions{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.NewGamesCount)
	assert.Equal(t, 3, result.TotalGamesCount)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, models.SourceLichess, result.Sources[0].Source)
	assert.Equal(t, 3, result.Sources[0].NewGames)
	assert.Empty(t, result.Sources[0].Error)

	profileRepo.AssertExpectations(t)
	gameRepo.AssertExpectations(t)
}

func TestSyncGames_PartialFailureIsolatesSources(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	gameRepo := new(mocks.MockGameRepository)
	chessCom := &mocks.MockSourceAdapter{AdapterSource: models.SourceChessCom}
	lichess := &mocks.MockSourceAdapter{AdapterSource: models.SourceLichess}

	profileRepo.On("Get", mock.Anything, int64(1)).Return(testProfile(1, "alice", "alice_li"), nil)
	gameRepo.On("LatestGameDate", mock.Anything, int64(1), mock.Anything).Return(nil, nil)

	chessCom.On("FetchGames", mock.Anything, "alice", mock.Anything).
		Return(nil, errors.NewRateLimitedError("chesscom"))
	lichess.On("FetchGames", mock.Anything, "alice_li", mock.Anything).
		Return(sourceGames(models.SourceLichess, 2), nil)
	gameRepo.On("SaveMany", mock.Anything, mock.Anything).Return(2, nil)
	gameRepo.On("CountByProfile", mock.Anything, int64(1)).Return(2, nil)

	svc := services.NewSyncService(profileRepo, gameRepo,
		[]platform.SourceAdapter{chessCom, lichess}, 500)
	result, err := svc.SyncGames(context.Background(), 1, services.SyncOptions{})
	require.NoError(t, err)

	// The failing platform must not block the healthy one, and a partial
	// run must not advance the sync timestamp.
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.NewGamesCount)
	assert.Equal(t, 2, result.TotalGamesCount)
	require.Len(t, result.Sources, 2)

	bySource := map[models.Source]models.SyncSourceResult{}
	for _, sr := range result.Sources {
		bySource[sr.Source] = sr
	}
	assert.NotEmpty(t, bySource[models.SourceChessCom].Error)
	assert.Equal(t, 2, bySource[models.SourceLichess].NewGames)

	profileRepo.AssertNotCalled(t, "UpdateSync", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncGames_IncrementalUsesLatestGameDate(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	gameRepo := new(mocks.MockGameRepository)
	lichess := &mocks.MockSourceAdapter{AdapterSource: models.SourceLichess}

	latest := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	profileRepo.On("Get", mock.Anything, int64(1)).Return(testProfile(1, "", "alice"), nil)
	gameRepo.On("LatestGameDate", mock.Anything, int64(1), models.SourceLichess).Return(&latest, nil)

	// The fetch window opens just past the newest stored game.
	lichess.On("FetchGames", mock.Anything, "alice", mock.MatchedBy(func(opts platform.FetchOptions) bool {
		return opts.Since != nil && opts.Since.Equal(latest.Add(time.Second)) && !opts.FetchAll
	})).Return([]models.Game{}, nil)
	gameRepo.On("CountByProfile", mock.Anything, int64(1)).Return(10, nil)
	profileRepo.On("UpdateSync", mock.Anything, int64(1), mock.Anything).Return(nil)

	svc := services.NewSyncService(profileRepo, gameRepo, []platform.SourceAdapter{lichess}, 500)
	result, err := svc.SyncGames(context.Background(), 1, services.SyncOptions{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.NewGamesCount)
	assert.Equal(t, 10, result.TotalGamesCount)
	lichess.AssertExpectations(t)
}

func TestSyncGames_RefetchedGamesAreNotNew(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	gameRepo := new(mocks.MockGameRepository)
	lichess := &mocks.MockSourceAdapter{AdapterSource: models.SourceLichess}

	profileRepo.On("Get", mock.Anything, int64(1)).Return(testProfile(1, "", "alice"), nil)
	gameRepo.On("LatestGameDate", mock.Anything, int64(1), models.SourceLichess).Return(nil, nil)
	lichess.On("FetchGames", mock.Anything, "alice", mock.Anything).Return(sourceGames(models.SourceLichess, 3), nil)
	gameRepo.On("SaveMany", mock.Anything, mock.Anything).Return(0, nil)
	gameRepo.On("CountByProfile", mock.Anything, int64(1)).Return(3, nil)
	profileRepo.On("UpdateSync", mock.Anything, int64(1), mock.Anything).Return(nil)

	svc := services.NewSyncService(profileRepo, gameRepo, []platform.SourceAdapter{lichess}, 500)
	result, err := svc.SyncGames(context.Background(), 1, services.SyncOptions{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.NewGamesCount)
	assert.Equal(t, 3, result.TotalGamesCount)
}

func TestSyncGames_ProfileNotFound(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	gameRepo := new(mocks.MockGameRepository)
	profileRepo.On("Get", mock.Anything, int64(42)).Return(nil, nil)

	svc := services.NewSyncService(profileRepo, gameRepo, nil, 500)
	result, err := svc.SyncGames(context.Background(), 42, services.SyncOptions{})
	assert.Nil(t, result)
	assert.True(t, errors.IsNotFound(err))
}

func TestSyncGames_MissingAdapter(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	gameRepo := new(mocks.MockGameRepository)

	profileRepo.On("Get", mock.Anything, int64(1)).Return(testProfile(1, "alice", ""), nil)
	gameRepo.On("CountByProfile", mock.Anything, int64(1)).Return(0, nil)

	svc := services.NewSyncService(profileRepo, gameRepo, nil, 500)
	result, err := svc.SyncGames(context.Background(), 1, services.SyncOptions{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.Len(t, result.Sources, 1)
	assert.NotEmpty(t, result.Sources[0].Error)
}

func TestFullResync_DeletesThenFetchesEverything(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	gameRepo := new(mocks.MockGameRepository)
	lichess := &mocks.MockSourceAdapter{AdapterSource: models.SourceLichess}

	gameRepo.On("DeleteByProfile", mock.Anything, int64(1)).Return(5, nil)
	profileRepo.On("Get", mock.Anything, int64(1)).Return(testProfile(1, "", "alice"), nil)
	lichess.On("FetchGames", mock.Anything, "alice", mock.MatchedBy(func(opts platform.FetchOptions) bool {
		return opts.FetchAll && opts.Since == nil
	})).Return(sourceGames(models.SourceLichess, 5), nil)
	gameRepo.On("SaveMany", mock.Anything, mock.Anything).Return(5, nil)
	gameRepo.On("CountByProfile", mock.Anything, int64(1)).Return(5, nil)
	profileRepo.On("UpdateSync", mock.Anything, int64(1), mock.Anything).Return(nil)

	svc := services.NewSyncService(profileRepo, gameRepo, []platform.SourceAdapter{lichess}, 500)
	result, err := svc.FullResync(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 5, result.NewGamesCount)
	gameRepo.AssertNotCalled(t, "LatestGameDate", mock.Anything, mock.Anything, mock.Anything)
	gameRepo.AssertExpectations(t)
}
