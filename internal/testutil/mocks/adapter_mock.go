package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/platform"
)

// MockSourceAdapter is a mock implementation of platform.SourceAdapter
type MockSourceAdapter struct {
	mock.Mock
	AdapterSource models.Source
}

func (m *MockSourceAdapter) Source() models.Source {
	return m.AdapterSource
}

func (m *MockSourceAdapter) ValidateUser(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockSourceAdapter) FetchGames(ctx context.Context, username string, opts platform.FetchOptions) ([]models.Game, error) {
	args := m.Called(ctx, username, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Game), args.Error(1)
}
