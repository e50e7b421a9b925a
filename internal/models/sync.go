package models

import "time"

// SyncSourceResult is the per-platform outcome of one sync run.
// Failures stay per-source so one platform being down never hides the
// other platform's games.
type SyncSourceResult struct {
	Source   Source `json:"source"`
	NewGames int    `json:"new_games"`
	Error    string `json:"error,omitempty"`
}

// SyncResult aggregates one sync invocation.
type SyncResult struct {
	RunID           string             `json:"run_id"`
	Success         bool               `json:"success"`
	NewGamesCount   int                `json:"new_games_count"`
	TotalGamesCount int                `json:"total_games_count"`
	Sources         []SyncSourceResult `json:"sources"`
	SyncedAt        time.Time          `json:"synced_at"`
}
