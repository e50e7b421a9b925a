package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/chessync/internal/models"
)

// MockLocalEvaluator is a mock implementation of services.LocalEvaluator
type MockLocalEvaluator struct {
	mock.Mock
}

func (m *MockLocalEvaluator) Init(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLocalEvaluator) Analyze(ctx context.Context, fen string, depth int) (models.Evaluation, error) {
	args := m.Called(ctx, fen, depth)
	return args.Get(0).(models.Evaluation), args.Error(1)
}

func (m *MockLocalEvaluator) Destroy() error {
	args := m.Called()
	return args.Error(0)
}

// MockCloudEvaluator is a mock implementation of services.CloudEvaluator
type MockCloudEvaluator struct {
	mock.Mock
}

func (m *MockCloudEvaluator) GetCloudEval(ctx context.Context, fen string) (*models.Evaluation, error) {
	args := m.Called(ctx, fen)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Evaluation), args.Error(1)
}
