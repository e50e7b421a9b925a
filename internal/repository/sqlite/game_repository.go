package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	apperrors "github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/repository"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

const gameColumns = `id, profile_id, game_uid, source, pgn, time_class, result, played_as, opponent,
       player_rating, opponent_rating, rating_delta, rated, played_at, eco_code, opening_name,
       termination, ply_count, url, clock_initial, clock_increment, clock_final, move_times,
       avg_move_time, accuracy, blunders, mistakes, inaccuracies, acpl, analysis_estimated,
       analyzed_at, created_at`

type gameRepository struct {
	db *sql.DB
}

// NewGameRepository creates the sqlite-backed reconciliation store.
func NewGameRepository(db *sql.DB) repository.GameRepository {
	return &gameRepository{db: db}
}

// saveManyQuery is the asymmetric merge. Static fields keep the stored
// value and only let the incoming row fill gaps; analysis fields prefer
// the incoming row so a re-analysis supersedes the old numbers. A plain
// last-write-wins upsert here would erase clock data on resync or
// freeze stale analysis.
const saveManyQuery = `
INSERT INTO games (
    profile_id, game_uid, source, pgn, time_class, result, played_as, opponent,
    player_rating, opponent_rating, rating_delta, rated, played_at, eco_code, opening_name,
    termination, ply_count, url, clock_initial, clock_increment, clock_final, move_times,
    avg_move_time, accuracy, blunders, mistakes, inaccuracies, acpl, analysis_estimated, analyzed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(profile_id, game_uid) DO UPDATE SET
    pgn             = COALESCE(NULLIF(games.pgn, ''), excluded.pgn),
    time_class      = COALESCE(games.time_class, excluded.time_class),
    result          = COALESCE(games.result, excluded.result),
    played_as       = COALESCE(games.played_as, excluded.played_as),
    opponent        = COALESCE(games.opponent, excluded.opponent),
    player_rating   = COALESCE(games.player_rating, excluded.player_rating),
    opponent_rating = COALESCE(games.opponent_rating, excluded.opponent_rating),
    rating_delta    = COALESCE(games.rating_delta, excluded.rating_delta),
    played_at       = COALESCE(games.played_at, excluded.played_at),
    eco_code        = COALESCE(games.eco_code, excluded.eco_code),
    opening_name    = COALESCE(NULLIF(games.opening_name, 'Unknown'), excluded.opening_name),
    termination     = COALESCE(games.termination, excluded.termination),
    ply_count       = COALESCE(games.ply_count, excluded.ply_count),
    url             = COALESCE(games.url, excluded.url),
    clock_initial   = COALESCE(games.clock_initial, excluded.clock_initial),
    clock_increment = COALESCE(games.clock_increment, excluded.clock_increment),
    clock_final     = COALESCE(games.clock_final, excluded.clock_final),
    move_times      = COALESCE(games.move_times, excluded.move_times),
    avg_move_time   = COALESCE(games.avg_move_time, excluded.avg_move_time),
    accuracy           = COALESCE(excluded.accuracy, games.accuracy),
    blunders           = COALESCE(excluded.blunders, games.blunders),
    mistakes           = COALESCE(excluded.mistakes, games.mistakes),
    inaccuracies       = COALESCE(excluded.inaccuracies, games.inaccuracies),
    acpl               = COALESCE(excluded.acpl, games.acpl),
    analysis_estimated = COALESCE(excluded.analysis_estimated, games.analysis_estimated),
    analyzed_at        = COALESCE(excluded.analyzed_at, games.analyzed_at)
`

func (r *gameRepository) SaveMany(ctx context.Context, games []models.Game) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("game_repo")
	log.Debug("saving %d games", len(games))

	if len(games) == 0 {
		return 0, nil
	}

	var newCount int
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		before, err := countByProfileTx(ctx, tx, games[0].ProfileID)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, saveManyQuery)
		if err != nil {
			log.Error("failed to prepare upsert: %v", err)
			return err
		}
		defer stmt.Close()

		for _, g := range games {
			if _, err := stmt.ExecContext(ctx, upsertArgs(g)...); err != nil {
				log.Error("failed to upsert game %s: %v", g.GameUID, err)
				return err
			}
		}

		after, err := countByProfileTx(ctx, tx, games[0].ProfileID)
		if err != nil {
			return err
		}
		// Row-count delta, not batch length: re-fetched games merge
		// into existing rows and must not count as new.
		newCount = after - before
		return nil
	})
	if err != nil {
		return 0, apperrors.NewDatabaseError(err)
	}

	log.Debug("save completed, %d new games", newCount)
	return newCount, nil
}

func upsertArgs(g models.Game) []any {
	args := []any{
		g.ProfileID, g.GameUID, string(g.Source), nullStr(g.PGN), string(g.TimeClass),
		string(g.Result), string(g.PlayedAs), nullStr(g.Opponent),
		nullInt(g.PlayerRating), nullInt(g.OpponentRating), nullIntPtr(g.RatingDelta), boolInt(g.Rated),
		g.PlayedAt.UTC(), nullStr(g.ECOCode), nullStr(g.OpeningName), nullStr(string(g.Termination)),
		nullInt(g.PlyCount), nullStr(g.URL),
	}
	if c := g.Clock; c != nil {
		args = append(args, nullInt(c.InitialSeconds), nullInt(c.IncrementSeconds),
			nullFloatPtr(c.FinalSeconds), encodeMoveTimes(c.MoveTimes), nullFloat(c.AvgMoveTime))
	} else {
		args = append(args, nil, nil, nil, nil, nil)
	}
	if a := g.Analysis; a != nil {
		// Fields the source did not measure go in as NULL so the merge
		// keeps the stored values. An accuracy-only payload must not
		// zero out counts from an earlier full analysis, and its
		// estimated flag says nothing about the stored counts either.
		estimated := any(boolInt(a.Estimated))
		if a.Blunders == nil && a.Mistakes == nil && a.Inaccuracies == nil && a.ACPL == nil {
			estimated = nil
		}
		args = append(args, a.Accuracy, nullIntPtr(a.Blunders), nullIntPtr(a.Mistakes),
			nullIntPtr(a.Inaccuracies), nullFloatPtr(a.ACPL), estimated, a.AnalyzedAt.UTC())
	} else {
		args = append(args, nil, nil, nil, nil, nil, nil, nil)
	}
	return args
}

func (r *gameRepository) FindByID(ctx context.Context, id int64) (*models.Game, error) {
	log := logger.FromContext(ctx).WithPrefix("game_repo")

	row := r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	g, err := scanGame(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("game not found: id=%d", id)
			return nil, nil
		}
		log.Error("failed to get game: %v", err)
		return nil, apperrors.NewDatabaseError(err)
	}
	return g, nil
}

func (r *gameRepository) ExistsByUID(ctx context.Context, profileID int64, gameUID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM games WHERE profile_id = ? AND game_uid = ?`, profileID, gameUID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewDatabaseError(err)
	}
	return true, nil
}

func (r *gameRepository) List(ctx context.Context, filter models.GameFilter) ([]models.Game, error) {
	log := logger.FromContext(ctx).WithPrefix("game_repo")
	log.Debug("listing games: profile_id=%d, source=%s, time_class=%s, result=%s, opponent=%s",
		filter.ProfileID, filter.Source, filter.TimeClass, filter.Result, filter.Opponent)

	query := sqlBuilder.Select(
		"id", "profile_id", "game_uid", "source", "pgn", "time_class", "result", "played_as",
		"opponent", "player_rating", "opponent_rating", "rating_delta", "rated", "played_at",
		"eco_code", "opening_name", "termination", "ply_count", "url", "clock_initial",
		"clock_increment", "clock_final", "move_times", "avg_move_time", "accuracy", "blunders",
		"mistakes", "inaccuracies", "acpl", "analysis_estimated", "analyzed_at", "created_at",
	).From("games")

	if filter.ProfileID != 0 {
		query = query.Where(squirrel.Eq{"profile_id": filter.ProfileID})
	}
	if filter.Source != "" {
		query = query.Where(squirrel.Eq{"source": filter.Source})
	}
	if filter.TimeClass != "" {
		query = query.Where(squirrel.Eq{"time_class": filter.TimeClass})
	}
	if filter.Result != "" {
		query = query.Where(squirrel.Eq{"result": filter.Result})
	}
	if filter.Opponent != "" {
		query = query.Where(squirrel.Eq{"opponent": filter.Opponent})
	}

	query = query.OrderBy("played_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query = query.Limit(uint64(limit)).Offset(uint64(offset))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to list games: %v", err)
		return nil, apperrors.NewDatabaseError(err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			log.Error("failed to scan game row: %v", err)
			return nil, apperrors.NewDatabaseError(err)
		}
		games = append(games, *g)
	}
	log.Debug("found %d games", len(games))
	return games, rows.Err()
}

func (r *gameRepository) CountByProfile(ctx context.Context, profileID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM games WHERE profile_id = ?`, profileID).Scan(&count)
	if err != nil {
		return 0, apperrors.NewDatabaseError(err)
	}
	return count, nil
}

func (r *gameRepository) LatestGameDate(ctx context.Context, profileID int64, source models.Source) (*time.Time, error) {
	log := logger.FromContext(ctx).WithPrefix("game_repo")

	var latest sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(played_at) FROM games WHERE profile_id = ? AND source = ?`,
		profileID, string(source)).Scan(&latest)
	if err != nil {
		log.Error("failed to get latest game date: %v", err)
		return nil, apperrors.NewDatabaseError(err)
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time.UTC()
	return &t, nil
}

func (r *gameRepository) DeleteByProfile(ctx context.Context, profileID int64) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("game_repo")
	log.Debug("deleting all games for profile_id=%d", profileID)

	res, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE profile_id = ?`, profileID)
	if err != nil {
		log.Error("failed to delete games: %v", err)
		return 0, apperrors.NewDatabaseError(err)
	}
	n, _ := res.RowsAffected()
	log.Info("deleted %d games for profile_id=%d", n, profileID)
	return int(n), nil
}

func (r *gameRepository) UpdateAnalysis(ctx context.Context, gameID int64, a models.AnalysisData) error {
	log := logger.FromContext(ctx).WithPrefix("game_repo")
	log.Debug("updating analysis: game_id=%d, accuracy=%.1f", gameID, a.Accuracy)

	res, err := r.db.ExecContext(ctx, `
UPDATE games
SET accuracy = ?, blunders = ?, mistakes = ?, inaccuracies = ?, acpl = ?,
    analysis_estimated = ?, analyzed_at = ?
WHERE id = ?
`, a.Accuracy, nullIntPtr(a.Blunders), nullIntPtr(a.Mistakes), nullIntPtr(a.Inaccuracies),
		nullFloatPtr(a.ACPL), boolInt(a.Estimated), a.AnalyzedAt.UTC(), gameID)
	if err != nil {
		log.Error("failed to update analysis: %v", err)
		return apperrors.NewDatabaseError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("game", gameID)
	}
	return nil
}

func countByProfileTx(ctx context.Context, tx *sql.Tx, profileID int64) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM games WHERE profile_id = ?`, profileID).Scan(&count)
	return count, err
}
