package worker

import (
	"context"

	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/services"
)

// SyncJob runs one sync pass for a profile in the background.
type SyncJob struct {
	SyncService services.SyncService
	ProfileID   int64
	FullSync    bool
}

func (j *SyncJob) Name() string { return "sync_games" }

func (j *SyncJob) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).WithField("profile_id", j.ProfileID)

	result, err := j.SyncService.SyncGames(ctx, j.ProfileID, services.SyncOptions{FullSync: j.FullSync})
	if err != nil {
		return err
	}
	if !result.Success {
		for _, sr := range result.Sources {
			if sr.Error != "" {
				log.Warn("source %s failed: %s", sr.Source, sr.Error)
			}
		}
	}
	return nil
}

// AnalyzeGameJob analyzes one stored game in the background.
type AnalyzeGameJob struct {
	AnalysisService services.AnalysisService
	GameID          int64
	Depth           int
	Quick           bool
}

func (j *AnalyzeGameJob) Name() string { return "analyze_game" }

func (j *AnalyzeGameJob) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).WithField("game_id", j.GameID)

	opts := services.AnalyzeOptions{
		Depth:    j.Depth,
		UseCloud: true,
		Quick:    j.Quick,
		Progress: func(percent float64, message string) {
			log.Debug("progress %.0f%%: %s", percent, message)
		},
	}
	_, err := j.AnalysisService.AnalyzeStoredGame(ctx, j.GameID, opts)
	return err
}
