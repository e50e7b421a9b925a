package repository

import (
	"context"
	"time"

	"github.com/vytor/chessync/internal/models"
)

// GameRepository is the reconciliation store for canonical game
// records. SaveMany and UpdateAnalysis are safe to call concurrently
// for different games; conflicting writes to the same game resolve via
// the asymmetric merge policy, not last-write-wins.
type GameRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Game, error)
	ExistsByUID(ctx context.Context, profileID int64, gameUID string) (bool, error)
	List(ctx context.Context, filter models.GameFilter) ([]models.Game, error)
	CountByProfile(ctx context.Context, profileID int64) (int, error)
	// SaveMany upserts the batch and returns how many rows are new,
	// measured as the store's row-count delta inside the transaction.
	SaveMany(ctx context.Context, games []models.Game) (int, error)
	LatestGameDate(ctx context.Context, profileID int64, source models.Source) (*time.Time, error)
	DeleteByProfile(ctx context.Context, profileID int64) (int, error)
	UpdateAnalysis(ctx context.Context, gameID int64, a models.AnalysisData) error
}

// ProfileRepository handles user configuration records.
type ProfileRepository interface {
	Get(ctx context.Context, id int64) (*models.Profile, error)
	List(ctx context.Context) ([]models.Profile, error)
	Create(ctx context.Context, chessComUsername, lichessUsername string) (*models.Profile, error)
	UpdateSync(ctx context.Context, id int64, t time.Time) error
	Delete(ctx context.Context, id int64) error
}
