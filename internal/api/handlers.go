package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/services"
	"github.com/vytor/chessync/internal/worker"
)

func urlID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errors.NewValidationError(name, "must be an integer")
	}
	return id, nil
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.ProfileService.ListProfiles(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"profiles": profiles})
}

type createProfileRequest struct {
	ChessComUsername string `json:"chesscom_username" validate:"omitempty,min=2,max=50"`
	LichessUsername  string `json:"lichess_username" validate:"omitempty,min=2,max=30"`
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, r, errors.NewValidationError("body", "invalid JSON"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		handleError(w, r, errors.NewValidationError("body", err.Error()))
		return
	}

	profile, err := s.ProfileService.CreateProfile(r.Context(), req.ChessComUsername, req.LichessUsername)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, profile)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	profile, err := s.ProfileService.GetProfile(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.ProfileService.DeleteProfile(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSync runs a sync inline when ?wait=true, otherwise queues it.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	full := r.URL.Query().Get("full") == "true"

	if r.URL.Query().Get("wait") == "true" {
		result, err := s.SyncService.SyncGames(r.Context(), id, services.SyncOptions{FullSync: full})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, result)
		return
	}

	job := &worker.SyncJob{SyncService: s.SyncService, ProfileID: id, FullSync: full}
	if err := s.SyncPool.Submit(job); err != nil {
		handleError(w, r, errors.NewInternalError(err))
		return
	}
	log.Info("sync job queued: profile_id=%d, full=%v", id, full)
	writeJSON(w, r, http.StatusAccepted, map[string]any{"queued": true})
}

func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	result, err := s.SyncService.FullResync(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := models.GameFilter{
		ProfileID: id,
		Source:    models.Source(q.Get("source")),
		TimeClass: models.TimeClass(q.Get("time_class")),
		Result:    models.Result(q.Get("result")),
		Opponent:  q.Get("opponent"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	games, total, err := s.GameService.ListGames(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"games": games,
		"total": total,
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	profileID, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	gameID, err := urlID(r, "gameID")
	if err != nil {
		handleError(w, r, err)
		return
	}

	game, err := s.GameService.GetGame(r.Context(), gameID, profileID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, game)
}

// handleAnalyzeGame queues a background analysis for one game.
func (s *Server) handleAnalyzeGame(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	profileID, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	gameID, err := urlID(r, "gameID")
	if err != nil {
		handleError(w, r, err)
		return
	}

	// Ownership check before queueing; the job itself has no profile scope.
	if _, err := s.GameService.GetGame(r.Context(), gameID, profileID); err != nil {
		handleError(w, r, err)
		return
	}

	quick := r.URL.Query().Get("quick") == "true"
	depth := 0
	if d, err := strconv.Atoi(r.URL.Query().Get("depth")); err == nil && d > 0 {
		depth = d
	}

	job := &worker.AnalyzeGameJob{
		AnalysisService: s.AnalysisService,
		GameID:          gameID,
		Depth:           depth,
		Quick:           quick,
	}
	if err := s.AnalysisPool.Submit(job); err != nil {
		handleError(w, r, errors.NewInternalError(err))
		return
	}
	log.Info("analysis job queued: game_id=%d, quick=%v", gameID, quick)
	writeJSON(w, r, http.StatusAccepted, map[string]any{"queued": true})
}

// handleEvaluatePosition evaluates a single position on demand.
func (s *Server) handleEvaluatePosition(w http.ResponseWriter, r *http.Request) {
	fen := r.URL.Query().Get("fen")
	if fen == "" {
		handleError(w, r, errors.NewValidationError("fen", "cannot be empty"))
		return
	}

	// Lighter depth for interactive evaluation.
	depth := 15
	if s.StockfishDepth > 0 && s.StockfishDepth < 15 {
		depth = s.StockfishDepth
	}

	eval, err := s.AnalysisService.AnalyzePosition(r.Context(), fen, services.AnalyzeOptions{
		Depth:    depth,
		UseCloud: true,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, eval)
}
