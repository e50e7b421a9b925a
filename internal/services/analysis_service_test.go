package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/services"
	"github.com/vytor/chessync/internal/testutil/mocks"
)

func evalCP(cp float64) models.Evaluation {
	return models.Evaluation{CP: cp, Depth: 12, Source: models.EvalSourceLocal}
}

func newAnalysisService(gameRepo *mocks.MockGameRepository, cloud *mocks.MockCloudEvaluator, engine *mocks.MockLocalEvaluator) services.AnalysisService {
	var c services.CloudEvaluator
	if cloud != nil {
		c = cloud
	}
	return services.NewAnalysisService(gameRepo, c, engine, services.AnalysisConfig{StockfishDepth: 16})
}

func TestAnalyzePosition_CloudHitSkipsEngine(t *testing.T) {
	cloud := new(mocks.MockCloudEvaluator)
	engine := new(mocks.MockLocalEvaluator)

	cached := &models.Evaluation{CP: 25, Depth: 40, Source: models.EvalSourceCloud}
	cloud.On("GetCloudEval", mock.Anything, "fen1").Return(cached, nil)

	svc := newAnalysisService(new(mocks.MockGameRepository), cloud, engine)
	eval, err := svc.AnalyzePosition(context.Background(), "fen1", services.AnalyzeOptions{UseCloud: true})
	require.NoError(t, err)

	assert.Equal(t, 25.0, eval.CP)
	assert.Equal(t, models.EvalSourceCloud, eval.Source)
	engine.AssertNotCalled(t, "Init", mock.Anything)
	engine.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzePosition_CloudMissFallsBackToEngine(t *testing.T) {
	cloud := new(mocks.MockCloudEvaluator)
	engine := new(mocks.MockLocalEvaluator)

	cloud.On("GetCloudEval", mock.Anything, "fen1").Return(nil, nil)
	engine.On("Init", mock.Anything).Return(nil)
	// Depth falls back to the configured default when unset.
	engine.On("Analyze", mock.Anything, "fen1", 16).Return(evalCP(42), nil)

	svc := newAnalysisService(new(mocks.MockGameRepository), cloud, engine)
	eval, err := svc.AnalyzePosition(context.Background(), "fen1", services.AnalyzeOptions{UseCloud: true})
	require.NoError(t, err)

	assert.Equal(t, 42.0, eval.CP)
	engine.AssertExpectations(t)
}

func TestAnalyzePosition_CloudFailureFallsBackToEngine(t *testing.T) {
	cloud := new(mocks.MockCloudEvaluator)
	engine := new(mocks.MockLocalEvaluator)

	cloud.On("GetCloudEval", mock.Anything, "fen1").Return(nil, errors.NewRateLimitedError("lichess"))
	engine.On("Init", mock.Anything).Return(nil)
	engine.On("Analyze", mock.Anything, "fen1", 12).Return(evalCP(10), nil)

	svc := newAnalysisService(new(mocks.MockGameRepository), cloud, engine)
	eval, err := svc.AnalyzePosition(context.Background(), "fen1", services.AnalyzeOptions{UseCloud: true, Depth: 12})
	require.NoError(t, err)
	assert.Equal(t, 10.0, eval.CP)
}

func TestAnalyzePosition_EmptyFEN(t *testing.T) {
	svc := newAnalysisService(new(mocks.MockGameRepository), nil, new(mocks.MockLocalEvaluator))
	_, err := svc.AnalyzePosition(context.Background(), "", services.AnalyzeOptions{})
	assert.Error(t, err)
}

// Four plies with the subject playing White. The position after each
// ply is scored 0, -150, -150, -600, -600, so White loses 150cp on
// ply 0 (mistake) and 450cp on ply 2 (blunder) while Black's replies
// cost nothing.
func TestAnalyzeGame_ScoresOnlySubjectMoves(t *testing.T) {
	engine := new(mocks.MockLocalEvaluator)
	engine.On("Init", mock.Anything).Return(nil)

	fens := []string{"f0", "f1", "f2", "f3", "f4"}
	moves := []string{"e2e4", "c7c5", "f2f4", "d7d5"}
	scores := []float64{0, -150, -150, -600, -600}
	for i, f := range fens {
		engine.On("Analyze", mock.Anything, f, 12).Return(evalCP(scores[i]), nil)
	}

	svc := newAnalysisService(new(mocks.MockGameRepository), nil, engine)
	result, err := svc.AnalyzeGame(context.Background(), 7, fens, moves, models.White, services.AnalyzeOptions{Depth: 12})
	require.NoError(t, err)

	require.Len(t, result.Moves, 4)
	assert.Equal(t, 150.0, result.Moves[0].CPLoss)
	assert.Equal(t, "mistake", result.Moves[0].Classification)
	assert.Equal(t, 450.0, result.Moves[2].CPLoss)
	assert.Equal(t, "blunder", result.Moves[2].Classification)
	assert.Equal(t, "good", result.Moves[1].Classification)
	assert.Equal(t, "good", result.Moves[3].Classification)

	assert.Equal(t, 1, result.Mistakes)
	assert.Equal(t, 1, result.Blunders)
	assert.Equal(t, 0, result.Inaccuracies)
	assert.Equal(t, 300.0, result.ACPL)
	assert.False(t, result.Estimated)
	assert.Less(t, result.Accuracy, 10.0)
	assert.False(t, result.AnalyzedAt.IsZero())

	// Sequential evaluation: n plies cost n+1 engine calls, each
	// "after" reused as the next "before".
	engine.AssertNumberOfCalls(t, "Analyze", 5)
}

func TestAnalyzeGame_ProgressIsMonotonic(t *testing.T) {
	engine := new(mocks.MockLocalEvaluator)
	engine.On("Init", mock.Anything).Return(nil)
	engine.On("Analyze", mock.Anything, mock.Anything, 12).Return(evalCP(0), nil)

	fens := []string{"f0", "f1", "f2", "f3", "f4"}
	moves := []string{"e2e4", "c7c5", "g1f3", "d7d6"}

	var percents []float64
	opts := services.AnalyzeOptions{
		Depth: 12,
		Progress: func(percent float64, message string) {
			percents = append(percents, percent)
		},
	}

	svc := newAnalysisService(new(mocks.MockGameRepository), nil, engine)
	_, err := svc.AnalyzeGame(context.Background(), 1, fens, moves, models.White, opts)
	require.NoError(t, err)

	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
	assert.Equal(t, 100.0, percents[len(percents)-1])
}

func TestAnalyzeGame_LengthMismatch(t *testing.T) {
	svc := newAnalysisService(new(mocks.MockGameRepository), nil, new(mocks.MockLocalEvaluator))

	_, err := svc.AnalyzeGame(context.Background(), 1, []string{"f0", "f1"}, []string{"e2e4", "c7c5"}, models.White, services.AnalyzeOptions{})
	assert.Error(t, err)

	_, err = svc.AnalyzeGame(context.Background(), 1, []string{"f0"}, nil, models.White, services.AnalyzeOptions{})
	assert.Error(t, err)
}

func TestQuickAnalysis_SamplesAndExtrapolates(t *testing.T) {
	engine := new(mocks.MockLocalEvaluator)
	engine.On("Init", mock.Anything).Return(nil)

	// 20 plies, subject White: player moves are plies 0..18 even, and
	// the stride picks plies 0 and 10.
	fens := make([]string, 21)
	moves := make([]string, 20)
	for i := range fens {
		fens[i] = fmt.Sprintf("f%d", i)
	}
	for i := range moves {
		moves[i] = "m"
	}

	engine.On("Analyze", mock.Anything, "f0", 12).Return(evalCP(0), nil)
	engine.On("Analyze", mock.Anything, "f1", 12).Return(evalCP(-300), nil)
	engine.On("Analyze", mock.Anything, "f10", 12).Return(evalCP(-300), nil)
	engine.On("Analyze", mock.Anything, "f11", 12).Return(evalCP(-300), nil)

	svc := newAnalysisService(new(mocks.MockGameRepository), nil, engine)
	result, err := svc.QuickAnalysis(context.Background(), 1, fens, moves, models.White, services.AnalyzeOptions{Depth: 12})
	require.NoError(t, err)

	assert.True(t, result.Estimated)
	require.Len(t, result.Moves, 2)
	assert.Equal(t, 0, result.Moves[0].Ply)
	assert.Equal(t, 10, result.Moves[1].Ply)

	// One sampled blunder out of 2 samples projects to 5 of the 10
	// player moves; never beyond them.
	assert.Equal(t, 5, result.Blunders)
	assert.Equal(t, 0, result.Mistakes)
	assert.Equal(t, 0, result.Inaccuracies)
	assert.LessOrEqual(t, result.Blunders+result.Mistakes+result.Inaccuracies, 10)
	assert.Equal(t, 150.0, result.ACPL)

	// Only the sampled positions are evaluated.
	engine.AssertNumberOfCalls(t, "Analyze", 4)
}

func TestQuickAnalysis_DegenerateShortGame(t *testing.T) {
	engine := new(mocks.MockLocalEvaluator)
	engine.On("Init", mock.Anything).Return(nil)
	engine.On("Analyze", mock.Anything, mock.Anything, 12).Return(evalCP(0), nil)

	// Black subject with two plies: ply 1 is the only player move and
	// misses the sampling grid, so it is analyzed directly.
	fens := []string{"f0", "f1", "f2"}
	moves := []string{"e2e4", "c7c5"}

	svc := newAnalysisService(new(mocks.MockGameRepository), nil, engine)
	result, err := svc.QuickAnalysis(context.Background(), 1, fens, moves, models.Black, services.AnalyzeOptions{Depth: 12})
	require.NoError(t, err)

	require.Len(t, result.Moves, 1)
	assert.Equal(t, 1, result.Moves[0].Ply)
}

func TestAnalyzeStoredGame_NotFound(t *testing.T) {
	gameRepo := new(mocks.MockGameRepository)
	gameRepo.On("FindByID", mock.Anything, int64(99)).Return(nil, nil)

	svc := newAnalysisService(gameRepo, nil, new(mocks.MockLocalEvaluator))
	_, err := svc.AnalyzeStoredGame(context.Background(), 99, services.AnalyzeOptions{})
	assert.True(t, errors.IsNotFound(err))
}

func TestAnalyzeStoredGame_AnalyzesAndPersists(t *testing.T) {
	gameRepo := new(mocks.MockGameRepository)
	engine := new(mocks.MockLocalEvaluator)

	game := &models.Game{
		ID:          7,
		ProfileID:   1,
		GameUID:     "chesscom:7",
		PGN:         "1. e4 e5 1-0",
		PlayedAs:    models.White,
		OpeningName: "King's Pawn Game",
	}
	gameRepo.On("FindByID", mock.Anything, int64(7)).Return(game, nil)
	engine.On("Init", mock.Anything).Return(nil)
	engine.On("Analyze", mock.Anything, mock.Anything, 16).Return(evalCP(20), nil)
	gameRepo.On("UpdateAnalysis", mock.Anything, int64(7), mock.MatchedBy(func(a models.AnalysisData) bool {
		return a.Accuracy == 100 && a.Blunders != nil && *a.Blunders == 0 && !a.Estimated
	})).Return(nil)

	svc := newAnalysisService(gameRepo, nil, engine)
	result, err := svc.AnalyzeStoredGame(context.Background(), 7, services.AnalyzeOptions{})
	require.NoError(t, err)

	require.Len(t, result.Moves, 2)
	assert.Equal(t, "e2e4", result.Moves[0].Move)
	assert.Equal(t, 100.0, result.Accuracy)
	gameRepo.AssertExpectations(t)
}

func TestAnalyzeStoredGame_UnparseablePGN(t *testing.T) {
	gameRepo := new(mocks.MockGameRepository)
	game := &models.Game{ID: 8, PGN: "1. e4 e9 xx"}
	gameRepo.On("FindByID", mock.Anything, int64(8)).Return(game, nil)

	svc := newAnalysisService(gameRepo, nil, new(mocks.MockLocalEvaluator))
	_, err := svc.AnalyzeStoredGame(context.Background(), 8, services.AnalyzeOptions{})
	assert.Error(t, err)
}
