package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
)

// Helper functions shared across repository implementations

func tx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	log := logger.FromContext(ctx).WithPrefix("repo")
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction: %v", err)
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		log.Debug("transaction rolled back due to error: %v", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction: %v", err)
		return err
	}
	return nil
}

// Bind helpers: absent values go in as NULL so the merge policy's
// COALESCE chains can tell "missing" from "zero".

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i int) any {
	if i == 0 {
		return nil
	}
	return i
}

func nullIntPtr(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

func nullFloatPtr(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeMoveTimes(times []float64) any {
	if len(times) == 0 {
		return nil
	}
	b, err := json.Marshal(times)
	if err != nil {
		return nil
	}
	return string(b)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*models.Game, error) {
	var (
		g              models.Game
		pgnText        sql.NullString
		timeClass      sql.NullString
		result         sql.NullString
		playedAs       sql.NullString
		opponent       sql.NullString
		playerRating   sql.NullInt64
		opponentRating sql.NullInt64
		ratingDelta    sql.NullInt64
		rated          sql.NullInt64
		ecoCode        sql.NullString
		openingName    sql.NullString
		termination    sql.NullString
		plyCount       sql.NullInt64
		url            sql.NullString
		clockInitial   sql.NullInt64
		clockIncrement sql.NullInt64
		clockFinal     sql.NullFloat64
		moveTimes      sql.NullString
		avgMoveTime    sql.NullFloat64
		accuracy       sql.NullFloat64
		blunders       sql.NullInt64
		mistakes       sql.NullInt64
		inaccuracies   sql.NullInt64
		acpl           sql.NullFloat64
		estimated      sql.NullInt64
		analyzedAt     sql.NullTime
	)

	err := row.Scan(
		&g.ID, &g.ProfileID, &g.GameUID, &g.Source, &pgnText, &timeClass, &result, &playedAs,
		&opponent, &playerRating, &opponentRating, &ratingDelta, &rated, &g.PlayedAt,
		&ecoCode, &openingName, &termination, &plyCount, &url, &clockInitial, &clockIncrement,
		&clockFinal, &moveTimes, &avgMoveTime, &accuracy, &blunders, &mistakes, &inaccuracies,
		&acpl, &estimated, &analyzedAt, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.PGN = pgnText.String
	g.TimeClass = models.TimeClass(timeClass.String)
	g.Result = models.Result(result.String)
	g.PlayedAs = models.Color(playedAs.String)
	g.Opponent = opponent.String
	g.PlayerRating = int(playerRating.Int64)
	g.OpponentRating = int(opponentRating.Int64)
	if ratingDelta.Valid {
		v := int(ratingDelta.Int64)
		g.RatingDelta = &v
	}
	g.Rated = rated.Int64 != 0
	g.ECOCode = ecoCode.String
	g.OpeningName = openingName.String
	if g.OpeningName == "" {
		g.OpeningName = models.OpeningUnknown
	}
	g.Termination = models.Termination(termination.String)
	g.PlyCount = int(plyCount.Int64)
	g.URL = url.String
	g.PlayedAt = g.PlayedAt.UTC()
	g.CreatedAt = g.CreatedAt.UTC()

	if clockInitial.Valid || clockIncrement.Valid || moveTimes.Valid {
		cd := &models.ClockData{
			InitialSeconds:   int(clockInitial.Int64),
			IncrementSeconds: int(clockIncrement.Int64),
			AvgMoveTime:      avgMoveTime.Float64,
		}
		if clockFinal.Valid {
			v := clockFinal.Float64
			cd.FinalSeconds = &v
		}
		if moveTimes.Valid {
			_ = json.Unmarshal([]byte(moveTimes.String), &cd.MoveTimes)
		}
		g.Clock = cd
	}

	if analyzedAt.Valid {
		ad := &models.AnalysisData{
			Accuracy:   accuracy.Float64,
			Estimated:  estimated.Int64 != 0,
			AnalyzedAt: analyzedAt.Time.UTC(),
		}
		if blunders.Valid {
			v := int(blunders.Int64)
			ad.Blunders = &v
		}
		if mistakes.Valid {
			v := int(mistakes.Int64)
			ad.Mistakes = &v
		}
		if inaccuracies.Valid {
			v := int(inaccuracies.Int64)
			ad.Inaccuracies = &v
		}
		if acpl.Valid {
			v := acpl.Float64
			ad.ACPL = &v
		}
		g.Analysis = ad
	}
	return &g, nil
}
