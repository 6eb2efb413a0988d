package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brensch/snekd/api"
	"github.com/brensch/snekd/policy"
	"github.com/brensch/snekd/rules"
)

// responseReserve is shaved off the engine's advertised timeout so the
// response is on the wire before the deadline, not merely computed.
const responseReserve = 200 * time.Millisecond

// minComputeTime keeps the engine useful even when the advertised
// timeout is shorter than the reserve.
const minComputeTime = 50 * time.Millisecond

// Server answers the four Battlesnake endpoints plus a health probe.
type Server struct {
	engine      *policy.Engine
	sessions    *sessionStore
	archive     *archiver // nil disables decision archiving
	info        api.InfoResponse
	moveTimeout time.Duration
	started     time.Time
}

func NewServer(engine *policy.Engine, info api.InfoResponse, moveTimeout time.Duration, archive *archiver) *Server {
	return &Server{
		engine:      engine,
		sessions:    newSessionStore(),
		archive:     archive,
		info:        info,
		moveTimeout: moveTimeout,
		started:     time.Now(),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)

	r.Get("/", s.handleIndex)
	r.Post("/start", s.handleStart)
	r.Post("/move", s.handleMove)
	r.Post("/end", s.handleEnd)
	r.Get("/health", s.handleHealth)

	return r
}

// recoverPanics stands in for the stock recoverer. A panicking /move still
// owes the engine a direction, and a 500 forfeits the turn exactly like a
// bad move would, so that route answers the default move instead.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			slog.Error("handler panicked",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprintf("%v", rvr),
				"stack", string(debug.Stack()),
				"request_id", middleware.GetReqID(r.Context()),
			)
			if r.Method == http.MethodPost && r.URL.Path == "/move" {
				s.writeJSON(w, http.StatusOK, api.MoveResponse{Move: rules.MoveUp.String()})
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// logRequests emits one debug line per request. The move handler logs its
// own info line with game context, so this stays at debug to keep info
// output readable during a tournament.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.info)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req api.GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "failed to decode request", http.StatusBadRequest)
		return
	}

	s.sessions.start(req.Game.ID)
	slog.Info("game started",
		"game_id", req.Game.ID,
		"ruleset", req.Game.Ruleset.Name,
		"board", fmt.Sprintf("%dx%d", req.Board.Width, req.Board.Height),
		"snakes", len(req.Board.Snakes),
		"timeout_ms", req.Game.Timeout,
	)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req api.GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// The engine eliminates snakes that answer with an error, so a
		// bad payload still gets a syntactically valid move back.
		slog.Warn("undecodable move request", "err", err)
		s.writeJSON(w, http.StatusOK, api.MoveResponse{Move: rules.MoveUp.String()})
		return
	}

	timeout := s.moveTimeout
	if req.Game.Timeout > 0 {
		timeout = time.Duration(req.Game.Timeout) * time.Millisecond
	}
	computeTime := timeout - responseReserve
	if computeTime < minComputeTime {
		computeTime = minComputeTime
	}
	ctx, cancel := context.WithTimeout(r.Context(), computeTime)
	defer cancel()

	state := req.GameState()
	move, evals, err := s.engine.Decide(ctx, state)
	archivable := true
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		slog.Warn("move deadline hit, answering best candidate so far",
			"game_id", req.Game.ID,
			"turn", req.Turn,
			"evaluated", len(evals),
		)
	default:
		slog.Warn("move request failed validation, answering default move",
			"game_id", req.Game.ID,
			"turn", req.Turn,
			"err", err,
		)
		archivable = false
	}

	if s.sessions.noteTurn(req.Game.ID, int32(req.Turn)) {
		slog.Warn("duplicate or out-of-order turn",
			"game_id", req.Game.ID,
			"turn", req.Turn,
		)
	}

	elapsed := time.Since(start)
	if s.archive != nil && archivable {
		s.archive.record(decisionRow(state, req.Game.ID, sourceLive, move, evals, elapsed))
	}

	slog.Info("move decided",
		"game_id", req.Game.ID,
		"turn", req.Turn,
		"move", move.String(),
		"health", req.You.Health,
		"elapsed", elapsed,
	)
	s.writeJSON(w, http.StatusOK, api.MoveResponse{Move: move.String(), Shout: shoutFor(move, evals)})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req api.GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "failed to decode request", http.StatusBadRequest)
		return
	}

	s.sessions.end(req.Game.ID)

	result := "lost"
	for _, snake := range req.Board.Snakes {
		if snake.ID == req.You.ID {
			result = "won"
			break
		}
	}
	if len(req.Board.Snakes) == 0 {
		result = "draw"
	}
	slog.Info("game ended",
		"game_id", req.Game.ID,
		"turn", req.Turn,
		"result", result,
	)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
		"sessions":   s.sessions.count(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

// shoutFor surfaces the chosen move's remaining space in the shout field,
// which shows up in the game replay UI.
func shoutFor(move rules.Move, evals []policy.Evaluation) string {
	for _, ev := range evals {
		if ev.Move == move {
			return fmt.Sprintf("space %d", ev.Space)
		}
	}
	return ""
}
