package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/chessync/internal/analysis"
	"github.com/vytor/chessync/internal/api"
	"github.com/vytor/chessync/internal/config"
	"github.com/vytor/chessync/internal/db"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/platform"
	"github.com/vytor/chessync/internal/platform/chesscom"
	"github.com/vytor/chessync/internal/platform/lichess"
	"github.com/vytor/chessync/internal/repository/sqlite"
	"github.com/vytor/chessync/internal/services"
	"github.com/vytor/chessync/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("Chessync Server Starting")
	log.Info("===========================================")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("stockfish_path=%s", cfg.StockfishPath)
	log.Debug("stockfish_depth=%d", cfg.StockfishDepth)
	log.Debug("cloud_eval_enabled=%v", cfg.CloudEvalEnabled)
	log.Debug("sync_workers=%d queue=%d", cfg.SyncWorkerCount, cfg.SyncQueueSize)
	log.Debug("analysis_workers=%d queue=%d", cfg.AnalysisWorkerCount, cfg.AnalysisQueueSize)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	gameRepo := sqlite.NewGameRepository(database.DB)
	profileRepo := sqlite.NewProfileRepository(database.DB)

	pageDelay := time.Duration(cfg.PageDelayMs) * time.Millisecond
	adapters := []platform.SourceAdapter{
		chesscom.New(chesscom.WithPageDelay(pageDelay)),
		lichess.New(),
	}

	engine := analysis.NewEngine(cfg.StockfishPath)
	var cloud services.CloudEvaluator
	if cfg.CloudEvalEnabled {
		cloud = analysis.NewCloudClient()
	}

	syncService := services.NewSyncService(profileRepo, gameRepo, adapters, cfg.MaxGamesPerSync)
	profileService := services.NewProfileService(profileRepo, adapters)
	gameService := services.NewGameService(gameRepo)
	analysisService := services.NewAnalysisService(gameRepo, cloud, engine, services.AnalysisConfig{
		StockfishPath:  cfg.StockfishPath,
		StockfishDepth: cfg.StockfishDepth,
		CloudEnabled:   cfg.CloudEvalEnabled,
	})

	syncPool := worker.NewPool("sync", cfg.SyncWorkerCount, cfg.SyncQueueSize)
	analysisPool := worker.NewPool("analysis", cfg.AnalysisWorkerCount, cfg.AnalysisQueueSize)

	srv := api.NewServer(
		profileService, gameService, syncService, analysisService,
		syncPool, analysisPool,
		database.DB, cfg.StockfishDepth,
	)

	ctx, cancel := context.WithCancel(context.Background())
	syncPool.Start(ctx)
	analysisPool.Start(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("stopping worker pools")
	cancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	syncPool.Stop()
	analysisPool.Stop()

	log.Debug("releasing engine")
	if err := engine.Destroy(); err != nil {
		log.Warn("engine teardown: %v", err)
	}

	log.Info("===========================================")
	log.Info("Chessync Server Stopped")
	log.Info("===========================================")
}
