package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"github.com/vytor/chessync/internal/analysis"
	"github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/repository"
)

// Every 5th ply gets evaluated in quick mode.
const quickSampleStride = 5

// LocalEvaluator is the long-lived engine capability. Init is lazy and
// idempotent; Destroy is safe at any time, including mid-search.
type LocalEvaluator interface {
	Init(ctx context.Context) error
	Analyze(ctx context.Context, fen string, depth int) (models.Evaluation, error)
	Destroy() error
}

// CloudEvaluator looks positions up in a shared precomputed cache.
// A nil Evaluation with nil error means "not cached upstream".
type CloudEvaluator interface {
	GetCloudEval(ctx context.Context, fen string) (*models.Evaluation, error)
}

// AnalysisService walks game position sequences and derives per-move
// loss, classification, and game-level accuracy.
type AnalysisService interface {
	AnalyzePosition(ctx context.Context, fen string, opts AnalyzeOptions) (models.Evaluation, error)
	AnalyzeGame(ctx context.Context, gameID int64, fens []string, moves []string, playerColor models.Color, opts AnalyzeOptions) (*models.GameAnalysis, error)
	QuickAnalysis(ctx context.Context, gameID int64, fens []string, moves []string, playerColor models.Color, opts AnalyzeOptions) (*models.GameAnalysis, error)
	AnalyzeStoredGame(ctx context.Context, gameID int64, opts AnalyzeOptions) (*models.GameAnalysis, error)
}

type analysisService struct {
	gameRepo repository.GameRepository
	cloud    CloudEvaluator
	engine   LocalEvaluator
	config   AnalysisConfig
}

// NewAnalysisService creates a new AnalysisService. The evaluator is
// owned by the caller; the service initializes it lazily but never
// destroys it.
func NewAnalysisService(
	gameRepo repository.GameRepository,
	cloud CloudEvaluator,
	engine LocalEvaluator,
	config AnalysisConfig,
) AnalysisService {
	return &analysisService{
		gameRepo: gameRepo,
		cloud:    cloud,
		engine:   engine,
		config:   config,
	}
}

// AnalyzePosition evaluates one position, cloud cache first when
// enabled, falling back to the local engine on a miss.
func (s *analysisService) AnalyzePosition(ctx context.Context, fen string, opts AnalyzeOptions) (models.Evaluation, error) {
	log := logger.FromContext(ctx)

	if fen == "" {
		return models.Evaluation{}, errors.NewValidationError("fen", "cannot be empty")
	}

	if opts.UseCloud && s.cloud != nil {
		eval, err := s.cloud.GetCloudEval(ctx, fen)
		if err != nil {
			// Cloud failures never fail the analysis; the local engine
			// can answer anything the cache can.
			log.Warn("cloud eval failed, falling back to engine: %v", err)
		} else if eval != nil {
			return *eval, nil
		}
	}

	if s.engine == nil {
		return models.Evaluation{}, errors.NewInternalError(fmt.Errorf("no local evaluator configured"))
	}
	if err := s.engine.Init(ctx); err != nil {
		log.Error("failed to initialize engine: %v", err)
		return models.Evaluation{}, errors.NewInternalError(err)
	}

	depth := opts.Depth
	if depth <= 0 {
		depth = s.config.StockfishDepth
	}
	eval, err := s.engine.Analyze(ctx, fen, depth)
	if err != nil {
		log.Error("engine analysis failed: %v", err)
		return models.Evaluation{}, errors.NewInternalError(err)
	}
	return eval, nil
}

// AnalyzeGame evaluates every position of the game sequentially. Each
// ply's "after" evaluation is reused as the next ply's "before", so a
// game of n plies costs n+1 evaluations.
func (s *analysisService) AnalyzeGame(ctx context.Context, gameID int64, fens []string, moves []string, playerColor models.Color, opts AnalyzeOptions) (*models.GameAnalysis, error) {
	log := logger.FromContext(ctx).WithField("game_id", gameID)

	if len(fens) != len(moves)+1 || len(moves) == 0 {
		return nil, errors.NewValidationError("fens", "must contain one more position than moves")
	}

	log.Info("starting full analysis: %d plies", len(moves))
	start := time.Now()

	prev, err := s.AnalyzePosition(ctx, fens[0], opts)
	if err != nil {
		return nil, err
	}

	result := &models.GameAnalysis{GameID: gameID}
	var losses []float64

	for i := 0; i < len(moves); i++ {
		if ctx.Err() != nil {
			log.Warn("analysis cancelled: %v", ctx.Err())
			return nil, ctx.Err()
		}

		evalAfter, err := s.AnalyzePosition(ctx, fens[i+1], opts)
		if err != nil {
			return nil, err
		}

		ma := models.MoveAnalysis{
			Ply:            i,
			FENBefore:      fens[i],
			Move:           moves[i],
			EvalBefore:     prev,
			EvalAfter:      evalAfter,
			BestMove:       prev.BestMove,
			Classification: analysis.ClassGood,
		}

		if isSubjectPly(i, playerColor) {
			ma.CPLoss = analysis.CPLoss(prev.CP, evalAfter.CP, playerColor)
			ma.Classification = analysis.ClassifyLoss(ma.CPLoss)
			losses = append(losses, ma.CPLoss)
			tally(result, ma.Classification)
		}

		result.Moves = append(result.Moves, ma)
		prev = evalAfter
		opts.report(float64(i+1)/float64(len(moves))*100, fmt.Sprintf("analyzing move %d of %d", i+1, len(moves)))
	}

	result.ACPL = mean(losses)
	result.Accuracy = analysis.AccuracyFromACPL(result.ACPL)
	result.AnalyzedAt = time.Now().UTC()

	log.Info("analysis completed in %v: acpl=%.1f, accuracy=%.1f, %d blunders, %d mistakes, %d inaccuracies",
		time.Since(start), result.ACPL, result.Accuracy, result.Blunders, result.Mistakes, result.Inaccuracies)
	return result, nil
}

// QuickAnalysis samples every 5th ply and extrapolates the subject's
// counts to the full game. The result is marked Estimated: the counts
// are projections, not tallies.
func (s *analysisService) QuickAnalysis(ctx context.Context, gameID int64, fens []string, moves []string, playerColor models.Color, opts AnalyzeOptions) (*models.GameAnalysis, error) {
	log := logger.FromContext(ctx).WithField("game_id", gameID)

	if len(fens) != len(moves)+1 || len(moves) == 0 {
		return nil, errors.NewValidationError("fens", "must contain one more position than moves")
	}

	totalPlayerMoves := 0
	var sampled []int
	for i := 0; i < len(moves); i++ {
		if isSubjectPly(i, playerColor) {
			totalPlayerMoves++
			if i%quickSampleStride == 0 {
				sampled = append(sampled, i)
			}
		}
	}
	if len(sampled) == 0 {
		// Degenerate short game: nothing falls on the sampling grid.
		sampled = firstSubjectPly(moves, playerColor)
	}

	log.Info("starting quick analysis: %d of %d player moves sampled", len(sampled), totalPlayerMoves)
	start := time.Now()

	result := &models.GameAnalysis{GameID: gameID, Estimated: true}
	var losses []float64

	for n, i := range sampled {
		if ctx.Err() != nil {
			log.Warn("analysis cancelled: %v", ctx.Err())
			return nil, ctx.Err()
		}

		evalBefore, err := s.AnalyzePosition(ctx, fens[i], opts)
		if err != nil {
			return nil, err
		}
		evalAfter, err := s.AnalyzePosition(ctx, fens[i+1], opts)
		if err != nil {
			return nil, err
		}

		loss := analysis.CPLoss(evalBefore.CP, evalAfter.CP, playerColor)
		class := analysis.ClassifyLoss(loss)
		losses = append(losses, loss)
		tally(result, class)

		result.Moves = append(result.Moves, models.MoveAnalysis{
			Ply:            i,
			FENBefore:      fens[i],
			Move:           moves[i],
			EvalBefore:     evalBefore,
			EvalAfter:      evalAfter,
			CPLoss:         loss,
			BestMove:       evalBefore.BestMove,
			Classification: class,
		})
		opts.report(float64(n+1)/float64(len(sampled))*100, fmt.Sprintf("sampling move %d", i+1))
	}

	extrapolateCounts(result, len(sampled), totalPlayerMoves)
	result.ACPL = mean(losses)
	result.Accuracy = analysis.AccuracyFromACPL(result.ACPL)
	result.AnalyzedAt = time.Now().UTC()

	log.Info("quick analysis completed in %v: acpl=%.1f, accuracy=%.1f (estimated)",
		time.Since(start), result.ACPL, result.Accuracy)
	return result, nil
}

// AnalyzeStoredGame loads a stored game, replays its PGN into the
// position sequence, runs full or quick analysis per opts, and writes
// the aggregate back through the store.
func (s *analysisService) AnalyzeStoredGame(ctx context.Context, gameID int64, opts AnalyzeOptions) (*models.GameAnalysis, error) {
	log := logger.FromContext(ctx).WithField("game_id", gameID)

	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, errors.NewNotFoundError("game", gameID)
	}
	if game.PGN == "" {
		return nil, errors.NewValidationError("pgn", "game has no move record")
	}

	pgnOpt, err := chess.PGN(strings.NewReader(game.PGN))
	if err != nil {
		log.Error("failed to parse PGN: %v", err)
		return nil, errors.NewValidationError("pgn", "unparseable move record")
	}
	chessGame := chess.NewGame(pgnOpt)

	if game.OpeningName == "" || game.OpeningName == models.OpeningUnknown {
		s.fillOpening(ctx, game, chessGame)
	}

	positions := chessGame.Positions()
	gameMoves := chessGame.Moves()
	if len(positions) != len(gameMoves)+1 {
		log.Warn("unexpected positions length: got %d positions for %d moves", len(positions), len(gameMoves))
	}

	fens := make([]string, len(positions))
	for i, p := range positions {
		fens[i] = p.String()
	}
	uciMoves := make([]string, len(gameMoves))
	for i := range gameMoves {
		uciMoves[i] = analysis.MoveToUCI(gameMoves[i])
	}

	var result *models.GameAnalysis
	if opts.Quick {
		result, err = s.QuickAnalysis(ctx, gameID, fens, uciMoves, game.PlayedAs, opts)
	} else {
		result, err = s.AnalyzeGame(ctx, gameID, fens, uciMoves, game.PlayedAs, opts)
	}
	if err != nil {
		return nil, err
	}

	if err := s.gameRepo.UpdateAnalysis(ctx, gameID, result.Data()); err != nil {
		log.Error("failed to store analysis: %v", err)
		return nil, err
	}
	return result, nil
}

// fillOpening backfills ECO data from the book when the platform
// supplied none. Best-effort; never fails the analysis.
func (s *analysisService) fillOpening(ctx context.Context, game *models.Game, chessGame *chess.Game) {
	log := logger.FromContext(ctx).WithField("game_id", game.ID)

	book := opening.NewBookECO()
	found := book.Find(chessGame.Moves())
	if found == nil {
		return
	}
	game.ECOCode = found.Code()
	game.OpeningName = found.Title()

	if _, err := s.gameRepo.SaveMany(ctx, []models.Game{*game}); err != nil {
		log.Warn("failed to persist opening: %v", err)
	} else {
		log.Debug("backfilled opening: %s (%s)", game.OpeningName, game.ECOCode)
	}
}

func isSubjectPly(i int, playerColor models.Color) bool {
	isWhiteMove := i%2 == 0
	return isWhiteMove == (playerColor == models.White)
}

func firstSubjectPly(moves []string, playerColor models.Color) []int {
	for i := range moves {
		if isSubjectPly(i, playerColor) {
			return []int{i}
		}
	}
	return nil
}

func tally(r *models.GameAnalysis, class string) {
	switch class {
	case analysis.ClassBlunder:
		r.Blunders++
	case analysis.ClassMistake:
		r.Mistakes++
	case analysis.ClassInaccuracy:
		r.Inaccuracies++
	}
}

// extrapolateCounts scales sampled counts up to the full game, then
// bounds them: no single category may exceed the subject's move count,
// and the categories together may not either. The sum bound trims
// lower-severity categories first so a projected blunder count is
// never sacrificed to keep an inaccuracy estimate.
func extrapolateCounts(r *models.GameAnalysis, sampledMoves, totalPlayerMoves int) {
	if sampledMoves == 0 || totalPlayerMoves == 0 {
		return
	}
	ratio := float64(totalPlayerMoves) / float64(sampledMoves)

	scale := func(n int) int {
		v := int(math.Round(float64(n) * ratio))
		if v > totalPlayerMoves {
			v = totalPlayerMoves
		}
		return v
	}
	r.Blunders = scale(r.Blunders)
	r.Mistakes = scale(r.Mistakes)
	r.Inaccuracies = scale(r.Inaccuracies)

	if over := r.Blunders + r.Mistakes + r.Inaccuracies - totalPlayerMoves; over > 0 {
		trim := min(over, r.Inaccuracies)
		r.Inaccuracies -= trim
		over -= trim
		trim = min(over, r.Mistakes)
		r.Mistakes -= trim
		over -= trim
		r.Blunders -= min(over, r.Blunders)
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
