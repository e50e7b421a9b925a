package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vytor/chessync/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "stockfish", cfg.StockfishPath)
	assert.Equal(t, 16, cfg.StockfishDepth)
	assert.True(t, cfg.CloudEvalEnabled)
	assert.Equal(t, 2, cfg.SyncWorkerCount)
	assert.Equal(t, 500, cfg.MaxGamesPerSync)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("STOCKFISH_DEPTH", "20")
	t.Setenv("CLOUD_EVAL_ENABLED", "false")
	t.Setenv("MAX_GAMES_PER_SYNC", "50")

	cfg := config.Load()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 20, cfg.StockfishDepth)
	assert.False(t, cfg.CloudEvalEnabled)
	assert.Equal(t, 50, cfg.MaxGamesPerSync)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("STOCKFISH_DEPTH", "not-a-number")
	t.Setenv("CLOUD_EVAL_ENABLED", "maybe")

	cfg := config.Load()

	assert.Equal(t, 16, cfg.StockfishDepth)
	assert.True(t, cfg.CloudEvalEnabled)
}
