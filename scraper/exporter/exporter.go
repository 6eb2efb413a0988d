// Package exporter rewrites raw scraped frames into columnar turn rows
// so archived public games land in the same parquet shape the arena and
// the live server produce.
package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/brensch/snekd/rules"
	"github.com/brensch/snekd/scraper/db"
	"github.com/brensch/snekd/scraper/downloader"
	"github.com/brensch/snekd/scraper/store"
)

// SourceScraped tags rows that came off the public engine feed.
const SourceScraped = "scraped"

// defaultBoardSize covers feeds that omit board dimensions.
const defaultBoardSize = 11

type Exporter struct {
	db      *db.DB
	written *store.WrittenLog
	outDir  string
}

func New(database *db.DB, written *store.WrittenLog, outDir string) *Exporter {
	return &Exporter{db: database, written: written, outDir: outDir}
}

// ExportBatch converts up to maxGames unexported games into one parquet
// batch. It returns the batch path and the number of games it holds; an
// empty path means nothing was pending.
func (e *Exporter) ExportBatch(maxGames int) (string, int, error) {
	games, err := e.db.UnexportedGames(maxGames)
	if err != nil {
		return "", 0, fmt.Errorf("list unexported games: %w", err)
	}
	if len(games) == 0 {
		return "", 0, nil
	}

	writer, err := store.NewBatchWriter[store.TurnRow](e.outDir, store.SchemaGameTurn)
	if err != nil {
		return "", 0, err
	}

	var exported []string
	for _, game := range games {
		if e.written.Has(game.ID) {
			// Already in a parquet batch from an earlier run; just fix
			// up the index flag.
			if err := e.db.MarkExported(game.ID); err != nil {
				slog.Warn("failed to mark exported", "game_id", game.ID, "err", err)
			}
			continue
		}

		rows, err := e.convertGame(game.ID)
		if err != nil {
			slog.Warn("game conversion failed", "game_id", game.ID, "err", err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		if err := writer.WriteRows(rows); err != nil {
			return "", 0, fmt.Errorf("write rows for %s: %w", game.ID, err)
		}
		writer.NoteGameWritten()
		exported = append(exported, game.ID)
	}

	path, rowCount, gameCount, err := writer.Finalize()
	if err != nil {
		return "", 0, err
	}
	if path == "" {
		return "", 0, nil
	}

	if err := e.written.AddMany(exported); err != nil {
		slog.Warn("failed to append written log", "err", err)
	}
	for _, id := range exported {
		if err := e.db.MarkExported(id); err != nil {
			slog.Warn("failed to mark exported", "game_id", id, "err", err)
		}
	}

	slog.Info("batch exported", "path", path, "games", gameCount, "rows", rowCount)
	return path, gameCount, nil
}

// convertGame parses every stored frame and pairs consecutive frames to
// recover the move each snake actually made.
func (e *Exporter) convertGame(gameID string) ([]store.TurnRow, error) {
	frames, err := e.db.GameFrames(gameID)
	if err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames stored")
	}

	parsed := make([]downloader.FrameData, 0, len(frames))
	for _, frame := range frames {
		var data downloader.FrameData
		if err := json.Unmarshal([]byte(frame.RawJSON), &data); err != nil {
			slog.Debug("unparseable stored frame", "game_id", gameID, "turn", frame.Turn, "err", err)
			continue
		}
		parsed = append(parsed, data)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("no parseable frames")
	}

	rows := make([]store.TurnRow, 0, len(parsed))
	for i := range parsed {
		var next *downloader.FrameData
		if i+1 < len(parsed) {
			next = &parsed[i+1]
		}
		rows = append(rows, turnRow(gameID, &parsed[i], next))
	}
	return rows, nil
}

func turnRow(gameID string, frame, next *downloader.FrameData) store.TurnRow {
	row := store.TurnRow{
		GameID: gameID,
		Turn:   int32(frame.Turn),
		Width:  defaultBoardSize,
		Height: defaultBoardSize,
		Source: SourceScraped,
	}
	if frame.Board.Width > 0 {
		row.Width = int32(frame.Board.Width)
	}
	if frame.Board.Height > 0 {
		row.Height = int32(frame.Board.Height)
	}

	for _, f := range frame.Food {
		row.FoodX = append(row.FoodX, int32(f.X))
		row.FoodY = append(row.FoodY, int32(f.Y))
	}
	for _, h := range frame.Hazards {
		row.HazardX = append(row.HazardX, int32(h.X))
		row.HazardY = append(row.HazardY, int32(h.Y))
	}
	for _, h := range frame.Board.Hazards {
		row.HazardX = append(row.HazardX, int32(h.X))
		row.HazardY = append(row.HazardY, int32(h.Y))
	}

	nextHeads := make(map[string]downloader.Coord)
	if next != nil {
		for _, s := range next.Snakes {
			if len(s.Body) > 0 {
				nextHeads[s.ID] = s.Body[0]
			}
		}
	}

	snakes := make([]downloader.SnakeData, len(frame.Snakes))
	copy(snakes, frame.Snakes)
	sort.Slice(snakes, func(i, j int) bool { return snakes[i].ID < snakes[j].ID })

	for _, s := range snakes {
		snake := store.TurnSnake{
			ID:     s.ID,
			Name:   s.Name,
			Alive:  s.Death == nil && s.Health > 0,
			Health: int32(s.Health),
			Move:   store.MoveUnknown,
		}
		for _, p := range s.Body {
			snake.BodyX = append(snake.BodyX, int32(p.X))
			snake.BodyY = append(snake.BodyY, int32(p.Y))
		}
		if snake.Alive && len(s.Body) > 0 {
			if nextHead, ok := nextHeads[s.ID]; ok {
				snake.Move = moveBetween(s.Body[0], nextHead)
			}
		}
		row.Snakes = append(row.Snakes, snake)
	}

	return row
}

// moveBetween recovers the direction from one head position to the next.
// Anything other than a single orthogonal step means the snake died or
// the feed skipped a frame.
func moveBetween(from, to downloader.Coord) int32 {
	dx := to.X - from.X
	dy := to.Y - from.Y
	switch {
	case dx == 0 && dy == 1:
		return int32(rules.MoveUp)
	case dx == 0 && dy == -1:
		return int32(rules.MoveDown)
	case dx == -1 && dy == 0:
		return int32(rules.MoveLeft)
	case dx == 1 && dy == 0:
		return int32(rules.MoveRight)
	}
	return store.MoveUnknown
}
