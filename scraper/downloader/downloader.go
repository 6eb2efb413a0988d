// Package downloader streams finished games off the public engine's
// websocket event feed and files them into the SQLite index.
package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brensch/snekd/scraper/db"
)

type Config struct {
	NumWorkers     int
	EngineURL      string // template with one %s for the game id
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		NumWorkers:     4,
		EngineURL:      "wss://engine.battlesnake.com/games/%s/events",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
	}
}

// Stats is a snapshot of worker counters.
type Stats struct {
	Downloaded int64
	Skipped    int64
	Failed     int64
	Frames     int64
}

// Worker fans game IDs out to a pool of download goroutines.
type Worker struct {
	config Config
	db     *db.DB

	downloaded atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
	frames     atomic.Int64
}

func NewWorker(config Config, database *db.DB) *Worker {
	if config.NumWorkers <= 0 {
		config.NumWorkers = DefaultConfig().NumWorkers
	}
	return &Worker{config: config, db: database}
}

// Run consumes game IDs until the channel closes or the context is
// cancelled. It blocks until all workers have drained.
func (w *Worker) Run(ctx context.Context, gameIDs <-chan string) {
	var wg sync.WaitGroup
	for i := 0; i < w.config.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, gameIDs)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, gameIDs <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case gameID, ok := <-gameIDs:
			if !ok {
				return
			}
			w.fetch(gameID)
		}
	}
}

func (w *Worker) fetch(gameID string) {
	exists, err := w.db.GameExists(gameID)
	if err != nil {
		slog.Error("failed to check game index", "game_id", gameID, "err", err)
		return
	}
	if exists {
		w.skipped.Add(1)
		return
	}

	game, frames, err := Download(gameID, w.config)
	if err != nil {
		w.failed.Add(1)
		slog.Warn("download failed", "game_id", gameID, "err", err)
		return
	}
	if len(frames) < 2 {
		// A game with a single frame carries no move to reconstruct.
		w.failed.Add(1)
		return
	}

	if err := w.db.InsertGame(game, frames); err != nil {
		w.failed.Add(1)
		slog.Error("failed to store game", "game_id", gameID, "err", err)
		return
	}

	w.downloaded.Add(1)
	w.frames.Add(int64(len(frames)))
	slog.Info("game stored",
		"game_id", gameID,
		"turns", len(frames),
		"winner", game.Winner,
		"ruleset", game.Ruleset,
	)
}

func (w *Worker) Stats() Stats {
	return Stats{
		Downloaded: w.downloaded.Load(),
		Skipped:    w.skipped.Load(),
		Failed:     w.failed.Load(),
		Frames:     w.frames.Load(),
	}
}

// Event is the envelope every websocket message arrives in.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// GameInfo is the payload of the game_info event.
type GameInfo struct {
	Game    GameDetails `json:"game"`
	Ruleset RulesetInfo `json:"ruleset"`
}

type GameDetails struct {
	ID      string `json:"id"`
	Timeout int    `json:"timeout"`
}

type RulesetInfo struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings json.RawMessage `json:"settings"`
}

// FrameData is the payload of a frame event. Hazards show up either at
// the top level or under board depending on the feed version, so both
// fields exist and consumers merge them.
type FrameData struct {
	Turn    int         `json:"turn"`
	Snakes  []SnakeData `json:"snakes"`
	Food    []Coord     `json:"food"`
	Hazards []Coord     `json:"hazards,omitempty"`
	Board   BoardData   `json:"board,omitempty"`
}

type SnakeData struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Health int     `json:"health"`
	Body   []Coord `json:"body"`
	Author string  `json:"author,omitempty"`
	Death  *Death  `json:"death,omitempty"`
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type BoardData struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Hazards []Coord `json:"hazards,omitempty"`
}

type Death struct {
	Cause string `json:"cause"`
	Turn  int    `json:"turn"`
}

// Download connects to the game's event feed and reads frames until the
// game_end event or the connection closes.
func Download(gameID string, cfg Config) (db.Game, []db.Frame, error) {
	url := fmt.Sprintf(cfg.EngineURL, gameID)

	dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return db.Game{}, nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	var frames []db.Frame
	var info GameInfo
	var lastFrame *FrameData

read:
	for {
		conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			if len(frames) > 0 {
				// Partial games are still worth keeping.
				break
			}
			return db.Game{}, nil, fmt.Errorf("read: %w", err)
		}

		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			slog.Debug("unparseable event", "game_id", gameID, "err", err)
			continue
		}

		switch event.Type {
		case "game_info":
			if err := json.Unmarshal(event.Data, &info); err != nil {
				slog.Debug("unparseable game_info", "game_id", gameID, "err", err)
			}

		case "frame":
			var frame FrameData
			if err := json.Unmarshal(event.Data, &frame); err != nil {
				slog.Debug("unparseable frame", "game_id", gameID, "err", err)
				continue
			}
			frames = append(frames, db.Frame{
				GameID:  gameID,
				Turn:    frame.Turn,
				RawJSON: string(event.Data),
			})
			lastFrame = &frame

		case "game_end":
			break read
		}
	}

	game := db.Game{
		ID:      gameID,
		Winner:  determineWinner(lastFrame),
		Ruleset: info.Ruleset.Name,
	}
	return game, frames, nil
}

// determineWinner names the sole survivor of the final frame, or draw.
func determineWinner(frame *FrameData) string {
	if frame == nil {
		return "unknown"
	}

	var alive []SnakeData
	for _, snake := range frame.Snakes {
		if snake.Death == nil && snake.Health > 0 {
			alive = append(alive, snake)
		}
	}

	if len(alive) == 1 {
		return alive[0].Name
	}
	return "draw"
}
