package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vytor/chessync/internal/services"
	"github.com/vytor/chessync/internal/worker"
)

// Server holds the HTTP surface's dependencies. It is a thin layer:
// all domain behavior lives in the services.
type Server struct {
	ProfileService  services.ProfileService
	GameService     services.GameService
	SyncService     services.SyncService
	AnalysisService services.AnalysisService
	SyncPool        *worker.Pool
	AnalysisPool    *worker.Pool
	DB              *sql.DB
	StockfishDepth  int

	validate *validator.Validate
}

func NewServer(
	profileService services.ProfileService,
	gameService services.GameService,
	syncService services.SyncService,
	analysisService services.AnalysisService,
	syncPool, analysisPool *worker.Pool,
	db *sql.DB,
	stockfishDepth int,
) *Server {
	return &Server{
		ProfileService:  profileService,
		GameService:     gameService,
		SyncService:     syncService,
		AnalysisService: analysisService,
		SyncPool:        syncPool,
		AnalysisPool:    analysisPool,
		DB:              db,
		StockfishDepth:  stockfishDepth,
		validate:        validator.New(),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/profiles", s.handleListProfiles)
		r.Post("/profiles", s.handleCreateProfile)
		r.Get("/profiles/{id}", s.handleGetProfile)
		r.Delete("/profiles/{id}", s.handleDeleteProfile)
		r.Post("/profiles/{id}/sync", s.handleSync)
		r.Post("/profiles/{id}/resync", s.handleResync)
		r.Get("/profiles/{id}/games", s.handleListGames)
		r.Get("/profiles/{id}/games/{gameID}", s.handleGetGame)
		r.Post("/profiles/{id}/games/{gameID}/analyze", s.handleAnalyzeGame)
		r.Get("/evaluate", s.handleEvaluatePosition)
	})

	return r
}
