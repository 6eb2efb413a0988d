package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brensch/snekd/policy"
)

type Server struct {
	cache           *DBCache
	engine          *policy.Engine
	redecideTimeout time.Duration
}

func NewServer(cache *DBCache, engine *policy.Engine, redecideTimeout time.Duration) *Server {
	return &Server{cache: cache, engine: engine, redecideTimeout: redecideTimeout}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(withCORS)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/refresh", s.handleRefresh)
		r.Get("/games", s.handleGames)
		r.Get("/games/{gameID}/decisions", s.handleDecisions)
		r.Get("/games/{gameID}/decisions/{turn}", s.handleDecision)
		r.Get("/games/{gameID}/turns", s.handleTurns)
		r.Get("/games/{gameID}/turns/{turn}", s.handleTurn)
		r.Get("/stats", s.handleStats)
		r.Post("/redecide", s.handleRedecide)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	writeJSON(w, status, APIError{
		Type:      errType,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Refresh(); err != nil {
		slog.Error("refresh failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind != "" && kind != "decision" && kind != "turn" {
		writeError(w, r, http.StatusBadRequest, errTypeValidation, "kind must be decision or turn")
		return
	}
	limit := parseIntQuery(r, "limit", 100)
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := parseIntQuery(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	db, err := s.cache.Get()
	if err != nil {
		slog.Error("open archive failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "archive unavailable")
		return
	}

	games, total, err := queryGames(r.Context(), db, kind, limit, offset)
	if err != nil {
		slog.Error("list games failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, GamesResponse{Total: total, Games: games})
}

func parseTurnParam(r *http.Request) (int32, bool) {
	raw := chi.URLParam(r, "turn")
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v < 0 {
		return 0, false
	}
	return int32(v), true
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	db, err := s.cache.Get()
	if err != nil {
		slog.Error("open archive failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "archive unavailable")
		return
	}

	decisions, err := queryDecisions(r.Context(), db, gameID, false)
	if err != nil {
		slog.Error("list decisions failed", "game_id", gameID, "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "query failed")
		return
	}
	if len(decisions) == 0 {
		writeError(w, r, http.StatusNotFound, errTypeNotFound, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	turn, ok := parseTurnParam(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, errTypeValidation, "turn must be a non-negative integer")
		return
	}

	db, err := s.cache.Get()
	if err != nil {
		slog.Error("open archive failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "archive unavailable")
		return
	}

	decision, found, err := queryDecision(r.Context(), db, gameID, turn)
	if err != nil {
		slog.Error("load decision failed", "game_id", gameID, "turn", turn, "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "query failed")
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, errTypeNotFound, "decision not found")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	db, err := s.cache.Get()
	if err != nil {
		slog.Error("open archive failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "archive unavailable")
		return
	}

	turns, err := queryTurns(r.Context(), db, gameID)
	if err != nil {
		slog.Error("list turns failed", "game_id", gameID, "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "query failed")
		return
	}
	if len(turns) == 0 {
		writeError(w, r, http.StatusNotFound, errTypeNotFound, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	turn, ok := parseTurnParam(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, errTypeValidation, "turn must be a non-negative integer")
		return
	}

	db, err := s.cache.Get()
	if err != nil {
		slog.Error("open archive failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "archive unavailable")
		return
	}

	view, found, err := queryTurn(r.Context(), db, gameID, turn)
	if err != nil {
		slog.Error("load turn failed", "game_id", gameID, "turn", turn, "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "query failed")
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, errTypeNotFound, "turn not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	db, err := s.cache.Get()
	if err != nil {
		slog.Error("open archive failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "archive unavailable")
		return
	}

	decisions, err := queryDecisionStats(r.Context(), db)
	if err != nil {
		slog.Error("decision stats failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "query failed")
		return
	}
	turns, err := queryTurnStats(r.Context(), db)
	if err != nil {
		slog.Error("turn stats failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "query failed")
		return
	}

	if decisions == nil {
		decisions = []SourceStats{}
	}
	if turns == nil {
		turns = []TurnSourceStats{}
	}
	writeJSON(w, http.StatusOK, StatsResponse{Decisions: decisions, Turns: turns})
}

// handleRedecide replays an archived board snapshot through the current
// policy and reports whether it still picks the archived move. Weights get
// tuned after games were recorded, this shows what the tuning changed.
func (s *Server) handleRedecide(w http.ResponseWriter, r *http.Request) {
	var req RedecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, errTypeValidation, "invalid request body")
		return
	}
	if req.GameID == "" {
		writeError(w, r, http.StatusBadRequest, errTypeValidation, "game_id is required")
		return
	}

	db, err := s.cache.Get()
	if err != nil {
		slog.Error("open archive failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "archive unavailable")
		return
	}

	decision, found, err := queryDecision(r.Context(), db, req.GameID, req.Turn)
	if err != nil {
		slog.Error("load decision failed", "game_id", req.GameID, "turn", req.Turn, "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "query failed")
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, errTypeNotFound, "decision not found")
		return
	}
	if decision.State == nil {
		writeError(w, r, http.StatusUnprocessableEntity, errTypeValidation, "archived decision has no state snapshot")
		return
	}

	state := stateFromRaw(decision.State)

	ctx, cancel := context.WithTimeout(r.Context(), s.redecideTimeout)
	defer cancel()

	start := time.Now()
	move, evals, err := s.engine.Decide(ctx, state)
	elapsed := time.Since(start)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		slog.Error("redecide failed", "game_id", req.GameID, "turn", req.Turn, "error", err)
		writeError(w, r, http.StatusInternalServerError, errTypeInternal, "archived state did not evaluate")
		return
	}

	writeJSON(w, http.StatusOK, RedecideResponse{
		GameID:           req.GameID,
		Turn:             req.Turn,
		ArchivedMove:     decision.Move,
		ArchivedMoveName: decision.MoveName,
		Move:             int32(move),
		MoveName:         move.String(),
		Agrees:           int32(move) == decision.Move,
		ElapsedUS:        elapsed.Microseconds(),
		Evals:            evalViews(evals),
	})
}

func evalViews(evals []policy.Evaluation) []EvalView {
	out := make([]EvalView, 0, len(evals))
	for _, ev := range evals {
		out = append(out, EvalView{
			Move:     int32(ev.Move),
			MoveName: ev.Move.String(),
			Head:     Point{X: ev.Head.X, Y: ev.Head.Y},
			Legal:    ev.Legal,
			Eats:     ev.Eats,
			Space:    int32(ev.Space),
			FoodCost: ev.FoodCost,
			Threat:   int32(ev.Threat),
			Score:    ev.Score,
		})
	}
	return out
}
