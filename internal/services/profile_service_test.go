package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/platform"
	"github.com/vytor/chessync/internal/services"
	"github.com/vytor/chessync/internal/testutil/mocks"
)

func TestCreateProfile_ValidatesUsernames(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	chessCom := &mocks.MockSourceAdapter{AdapterSource: models.SourceChessCom}

	chessCom.On("ValidateUser", mock.Anything, "alice").Return(true, nil)
	profileRepo.On("Create", mock.Anything, "alice", "").Return(testProfile(1, "alice", ""), nil)

	svc := services.NewProfileService(profileRepo, []platform.SourceAdapter{chessCom})
	p, err := svc.CreateProfile(context.Background(), "alice", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	chessCom.AssertExpectations(t)
}

func TestCreateProfile_RejectsUnknownUser(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	chessCom := &mocks.MockSourceAdapter{AdapterSource: models.SourceChessCom}

	chessCom.On("ValidateUser", mock.Anything, "ghost").Return(false, nil)

	svc := services.NewProfileService(profileRepo, []platform.SourceAdapter{chessCom})
	_, err := svc.CreateProfile(context.Background(), "ghost", "")
	assert.True(t, errors.IsUserNotFound(err))
	profileRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateProfile_RequiresAtLeastOneUsername(t *testing.T) {
	svc := services.NewProfileService(new(mocks.MockProfileRepository), nil)
	_, err := svc.CreateProfile(context.Background(), "", "")
	assert.Error(t, err)
}

func TestCreateProfile_ValidationOutageDoesNotBlock(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	chessCom := &mocks.MockSourceAdapter{AdapterSource: models.SourceChessCom}

	// A platform being down must not block profile creation; the first
	// sync will surface a genuinely bad username.
	chessCom.On("ValidateUser", mock.Anything, "alice").
		Return(false, errors.NewRateLimitedError("chesscom"))
	profileRepo.On("Create", mock.Anything, "alice", "").Return(testProfile(1, "alice", ""), nil)

	svc := services.NewProfileService(profileRepo, []platform.SourceAdapter{chessCom})
	_, err := svc.CreateProfile(context.Background(), "alice", "")
	assert.NoError(t, err)
}

func TestGetProfile_NotFound(t *testing.T) {
	profileRepo := new(mocks.MockProfileRepository)
	profileRepo.On("Get", mock.Anything, int64(42)).Return(nil, nil)

	svc := services.NewProfileService(profileRepo, nil)
	_, err := svc.GetProfile(context.Background(), 42)
	assert.True(t, errors.IsNotFound(err))
}

func TestGetGame_WrongProfileLooksMissing(t *testing.T) {
	gameRepo := new(mocks.MockGameRepository)
	gameRepo.On("FindByID", mock.Anything, int64(7)).
		Return(&models.Game{ID: 7, ProfileID: 2}, nil)

	svc := services.NewGameService(gameRepo)
	_, err := svc.GetGame(context.Background(), 7, 1)
	assert.True(t, errors.IsNotFound(err))
}

func TestListGames_ReturnsTotal(t *testing.T) {
	gameRepo := new(mocks.MockGameRepository)
	filter := models.GameFilter{ProfileID: 1, Limit: 2}
	gameRepo.On("List", mock.Anything, filter).Return(sourceGames(models.SourceLichess, 2), nil)
	gameRepo.On("CountByProfile", mock.Anything, int64(1)).Return(9, nil)

	svc := services.NewGameService(gameRepo)
	games, total, err := svc.ListGames(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, games, 2)
	assert.Equal(t, 9, total)
}
