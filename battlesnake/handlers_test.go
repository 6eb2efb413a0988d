package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brensch/snekd/api"
	"github.com/brensch/snekd/policy"
	"github.com/brensch/snekd/scraper/store"
)

func newTestServer(arch *archiver) *Server {
	info := api.InfoResponse{
		APIVersion: "1",
		Author:     "snekd",
		Color:      "#0f9177",
		Head:       "beluga",
		Tail:       "curled",
		Version:    "test",
	}
	return NewServer(policy.NewEngine(policy.DefaultConfig()), info, 500*time.Millisecond, arch)
}

func buildRequest(turn int, body []api.Coord, food []api.Coord) api.GameRequest {
	you := api.Battlesnake{
		ID:     "you",
		Name:   "snekd",
		Health: 90,
		Body:   body,
		Head:   body[0],
		Length: len(body),
	}
	return api.GameRequest{
		Game: api.Game{
			ID:      "game-1",
			Ruleset: api.Ruleset{Name: "standard", Version: "v1.2.3"},
			Timeout: 500,
		},
		Turn: turn,
		Board: api.Board{
			Width:  7,
			Height: 7,
			Food:   food,
			Snakes: []api.Battlesnake{you},
		},
		You: you,
	}
}

func postJSON(t *testing.T, h http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMove(t *testing.T, rec *httptest.ResponseRecorder) api.MoveResponse {
	t.Helper()
	var resp api.MoveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestIndexServesInfo(t *testing.T) {
	s := newTestServer(nil)
	h := s.Routes()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var info api.InfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, "1", info.APIVersion)
	require.Equal(t, "snekd", info.Author)
	require.NotEmpty(t, info.Color)
}

func TestStartRegistersSession(t *testing.T) {
	s := newTestServer(nil)
	h := s.Routes()

	body := []api.Coord{{X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 1}}
	rec := postJSON(t, h, "/start", buildRequest(0, body, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, s.sessions.count())
}

func TestMoveAnswersLegalMove(t *testing.T) {
	s := newTestServer(nil)
	h := s.Routes()

	body := []api.Coord{{X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 1}}
	rec := postJSON(t, h, "/move", buildRequest(0, body, []api.Coord{{X: 5, Y: 5}}))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMove(t, rec)
	require.Contains(t, []string{"up", "down", "left", "right"}, resp.Move)
	require.Equal(t, 1, s.sessions.count())
}

func TestMoveCorneredPicksTheOpenSide(t *testing.T) {
	s := newTestServer(nil)
	h := s.Routes()

	// Head in the corner with the body running along the bottom wall.
	// Up is the only square that is neither a wall nor the snake itself.
	body := []api.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
	rec := postJSON(t, h, "/move", buildRequest(12, body, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "up", decodeMove(t, rec).Move)
}

func TestMoveGarbageBodyDefaultsUp(t *testing.T) {
	s := newTestServer(nil)
	h := s.Routes()

	req := httptest.NewRequest(http.MethodPost, "/move", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeMove(t, rec)
	require.Equal(t, "up", resp.Move)
	require.Empty(t, resp.Shout)
}

func TestMoveDuplicateTurnStillAnswers(t *testing.T) {
	s := newTestServer(nil)
	h := s.Routes()

	body := []api.Coord{{X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 1}}
	payload := buildRequest(4, body, nil)

	first := postJSON(t, h, "/move", payload)
	second := postJSON(t, h, "/move", payload)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	require.Contains(t, []string{"up", "down", "left", "right"}, decodeMove(t, second).Move)
}

func TestEndRemovesSession(t *testing.T) {
	s := newTestServer(nil)
	h := s.Routes()

	body := []api.Coord{{X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 1}}
	postJSON(t, h, "/start", buildRequest(0, body, nil))
	require.Equal(t, 1, s.sessions.count())

	rec := postJSON(t, h, "/end", buildRequest(30, body, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, s.sessions.count())
}

func TestHealthReportsSessions(t *testing.T) {
	s := newTestServer(nil)
	h := s.Routes()

	body := []api.Coord{{X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 1}}
	postJSON(t, h, "/start", buildRequest(0, body, nil))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health["status"])
	require.Equal(t, float64(1), health["sessions"])
}

func TestRecoverPanicsAnswersMoveOnMoveRoute(t *testing.T) {
	s := newTestServer(nil)
	wrapped := s.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodPost, "/move", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "up", decodeMove(t, rec).Move)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMoveArchivesDecisionRows(t *testing.T) {
	dir := t.TempDir()
	arch := newArchiver(dir, 8)
	go arch.run()

	s := newTestServer(arch)
	h := s.Routes()

	body := []api.Coord{{X: 3, Y: 3}, {X: 3, Y: 2}, {X: 3, Y: 1}}
	rec := postJSON(t, h, "/move", buildRequest(3, body, []api.Coord{{X: 5, Y: 5}}))
	require.Equal(t, http.StatusOK, rec.Code)

	arch.close()

	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	rows, err := store.ReadParquet[store.DecisionRow](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, "game-1", row.GameID)
	require.Equal(t, int32(3), row.Turn)
	require.Equal(t, sourceLive, row.Source)
	require.False(t, row.Fallback)
	require.Len(t, row.Evals, 4)

	state, err := store.DecodeStateJSON(row.State)
	require.NoError(t, err)
	require.Equal(t, int32(7), state.Width)
	require.Equal(t, int32(7), state.Height)
}
