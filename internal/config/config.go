package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                string
	DBPath              string
	StockfishPath       string
	StockfishDepth      int
	LogLevel            string
	CloudEvalEnabled    bool
	SyncWorkerCount     int
	SyncQueueSize       int
	AnalysisWorkerCount int
	AnalysisQueueSize   int
	MaxGamesPerSync     int
	PageDelayMs         int
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:                envOr("ADDR", ":8080"),
		DBPath:              envOr("DB_PATH", "file:chessync.db"),
		StockfishPath:       envOr("STOCKFISH_PATH", "stockfish"),
		StockfishDepth:      envIntOr("STOCKFISH_DEPTH", 16),
		LogLevel:            envOr("LOG_LEVEL", "INFO"),
		CloudEvalEnabled:    envBoolOr("CLOUD_EVAL_ENABLED", true),
		SyncWorkerCount:     envIntOr("SYNC_WORKER_COUNT", 2),
		SyncQueueSize:       envIntOr("SYNC_QUEUE_SIZE", 32),
		AnalysisWorkerCount: envIntOr("ANALYSIS_WORKER_COUNT", 2),
		AnalysisQueueSize:   envIntOr("ANALYSIS_QUEUE_SIZE", 64),
		MaxGamesPerSync:     envIntOr("MAX_GAMES_PER_SYNC", 500),
		PageDelayMs:         envIntOr("PAGE_DELAY_MS", 300),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("invalid value for %s=%q, using default %t", key, v, def)
	}
	return def
}
