package main

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/brensch/snekd/game"
	"github.com/brensch/snekd/policy"
	"github.com/brensch/snekd/rules"
	"github.com/brensch/snekd/scraper/store"
)

// sourceLive tags rows produced by the serving path, as opposed to rows
// replayed by the viewer or generated by the arena.
const sourceLive = "live"

// archiver drains decision rows off the request path and batches them into
// parquet files. record never blocks: when the buffer is full the row is
// dropped and counted, a slow disk must not cost a turn.
type archiver struct {
	dir       string
	flushRows int

	rows    chan store.DecisionRow
	done    chan struct{}
	dropped atomic.Int64
}

func newArchiver(dir string, flushRows int) *archiver {
	return &archiver{
		dir:       dir,
		flushRows: flushRows,
		rows:      make(chan store.DecisionRow, 256),
		done:      make(chan struct{}),
	}
}

func (a *archiver) record(row store.DecisionRow) {
	select {
	case a.rows <- row:
	default:
		slog.Warn("archive buffer full, dropping decision row",
			"game_id", row.GameID, "turn", row.Turn, "dropped_total", a.dropped.Add(1))
	}
}

// run consumes rows until close. Each flush publishes an independent
// parquet file, so a crash loses at most one unflushed batch.
func (a *archiver) run() {
	defer close(a.done)

	buf := make([]store.DecisionRow, 0, a.flushRows)
	for row := range a.rows {
		buf = append(buf, row)
		if len(buf) >= a.flushRows {
			a.flush(buf)
			buf = buf[:0]
		}
	}
	a.flush(buf)
}

func (a *archiver) flush(rows []store.DecisionRow) {
	if len(rows) == 0 {
		return
	}
	path, err := store.WriteParquetAtomic(a.dir, store.SchemaDecision, rows,
		parquet.SkipPageBounds("state"))
	if err != nil {
		slog.Error("archive flush failed", "rows", len(rows), "err", err)
		return
	}
	slog.Info("archived decisions", "rows", len(rows), "path", path)
}

// close stops intake and waits for the final flush.
func (a *archiver) close() {
	close(a.rows)
	<-a.done
}

// decisionRow flattens one decision into its archive form.
func decisionRow(state *game.GameState, gameID, source string, move rules.Move, evals []policy.Evaluation, elapsed time.Duration) store.DecisionRow {
	raw := store.RawState{
		Width:   state.Width,
		Height:  state.Height,
		Turn:    state.Turn,
		YouID:   state.YouId,
		Food:    rawPoints(state.Food),
		Hazards: rawPoints(state.Hazards),
		Snakes:  make([]store.RawSnake, len(state.Snakes)),
	}
	for i, s := range state.Snakes {
		raw.Snakes[i] = store.RawSnake{ID: s.Id, Health: s.Health, Body: rawPoints(s.Body)}
	}
	encoded, err := store.EncodeStateJSON(raw)
	if err != nil {
		slog.Warn("state snapshot not encodable", "game_id", gameID, "turn", state.Turn, "err", err)
	}

	row := store.DecisionRow{
		GameID:    gameID,
		Turn:      state.Turn,
		YouID:     state.YouId,
		Width:     state.Width,
		Height:    state.Height,
		Move:      int32(move),
		Fallback:  true,
		ElapsedUS: elapsed.Microseconds(),
		Source:    source,
		State:     encoded,
		Evals:     make([]store.DirectionEval, len(evals)),
	}
	if you, ok := state.You(); ok {
		row.Health = you.Health
		row.Length = int32(you.Length())
	}
	for i, ev := range evals {
		if ev.Legal {
			row.Fallback = false
		}
		foodCost := store.FoodUnreachable
		if ev.FoodFound {
			foodCost = ev.FoodCost
		}
		row.Evals[i] = store.DirectionEval{
			Move:     int32(ev.Move),
			HeadX:    ev.Head.X,
			HeadY:    ev.Head.Y,
			Legal:    ev.Legal,
			Eats:     ev.Eats,
			Space:    int32(ev.Space),
			FoodCost: foodCost,
			Threat:   int32(ev.Threat),
			Score:    ev.Score,
		}
	}
	return row
}

func rawPoints(pts []game.Point) []store.RawPoint {
	out := make([]store.RawPoint, len(pts))
	for i, p := range pts {
		out[i] = store.RawPoint{X: p.X, Y: p.Y}
	}
	return out
}
