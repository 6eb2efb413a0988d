package main

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/brensch/snekd/game"
	"github.com/brensch/snekd/policy"
	"github.com/brensch/snekd/rules"
	"github.com/brensch/snekd/scraper/store"
)

const sourceArena = "arena"

type GameConfig struct {
	BoardSize  int32
	SnakeCount int
	// MaxTurns stops runaway games, counting as a draw. 0 means the
	// default of 500.
	MaxTurns int32
	Food     rules.FoodSettings
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		BoardSize:  11,
		SnakeCount: 2,
		MaxTurns:   500,
		Food:       rules.DefaultFoodSettings,
	}
}

// GameResult carries everything one finished game produced: a turn row per
// turn for replay plus a decision row per snake per turn for policy review.
type GameResult struct {
	GameID    string
	WinnerID  string
	Turns     int32
	TurnRows  []store.TurnRow
	Decisions []store.DecisionRow
}

// spawnPoints are the corner cells snakes start on, in seat order.
func spawnPoints(width, height int32) [4]game.Point {
	return [4]game.Point{
		{X: 1, Y: 1},
		{X: width - 2, Y: height - 2},
		{X: 1, Y: height - 2},
		{X: width - 2, Y: 1},
	}
}

func initialState(rng *rand.Rand, cfg GameConfig) *game.GameState {
	spawns := spawnPoints(cfg.BoardSize, cfg.BoardSize)
	count := cfg.SnakeCount
	if count < 1 {
		count = 1
	}
	if count > len(spawns) {
		count = len(spawns)
	}

	state := &game.GameState{
		Width:  cfg.BoardSize,
		Height: cfg.BoardSize,
		YouId:  "snake1",
		Turn:   0,
	}
	for i := 0; i < count; i++ {
		// Stacked spawn: the body unfolds over the first moves, the way
		// the engine starts snakes.
		state.Snakes = append(state.Snakes, game.Snake{
			Id:     fmt.Sprintf("snake%d", i+1),
			Health: game.MaxHealth,
			Body:   []game.Point{spawns[i], spawns[i], spawns[i]},
		})
	}

	// Only enforce the minimum at spawn, no random extras on turn zero.
	rules.ApplyFoodSettings(state, rng, rules.FoodSettings{
		MinimumFood:     cfg.Food.MinimumFood,
		FoodSpawnChance: 0,
	})
	return state
}

// playGame runs one full self-play game, every seat driven by engine. The
// error is non-nil only when ctx ended mid-game, in which case the partial
// result is discarded by the caller.
func playGame(ctx context.Context, workerID int, engine *policy.Engine, cfg GameConfig, onDecision func()) (GameResult, error) {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 500
	}

	rngSeed := time.Now().UnixNano() + int64(workerID)*1000003
	rng := rand.New(rand.NewSource(rngSeed))

	state := initialState(rng, cfg)
	gameID := fmt.Sprintf("arena_%d_%d", time.Now().UnixNano(), workerID)

	result := GameResult{GameID: gameID}

	for {
		select {
		case <-ctx.Done():
			return GameResult{}, ctx.Err()
		default:
		}

		if rules.IsGameOver(state) || state.Turn >= cfg.MaxTurns {
			break
		}

		moves := make(map[string]rules.Move, len(state.Snakes))
		for i := range state.Snakes {
			id := state.Snakes[i].Id

			local := state.Clone()
			local.YouId = id

			start := time.Now()
			move, evals, err := engine.Decide(ctx, local)
			if err != nil {
				if ctx.Err() != nil {
					return GameResult{}, ctx.Err()
				}
				return GameResult{}, fmt.Errorf("decide for %s on turn %d: %w", id, state.Turn, err)
			}
			moves[id] = move

			result.Decisions = append(result.Decisions, decisionRow(local, gameID, move, evals, time.Since(start)))
			if onDecision != nil {
				onDecision()
			}
		}

		result.TurnRows = append(result.TurnRows, turnRow(state, gameID, moves))

		state = rules.NextStateSimultaneousWithFoodSettings(state, moves, rng, cfg.Food)
	}

	result.Turns = state.Turn
	if winner, ok := rules.Winner(state); ok {
		result.WinnerID = winner
	}
	return result, nil
}

func turnRow(state *game.GameState, gameID string, moves map[string]rules.Move) store.TurnRow {
	row := store.TurnRow{
		GameID: gameID,
		Turn:   state.Turn,
		Width:  state.Width,
		Height: state.Height,
		Source: sourceArena,
	}
	for _, p := range state.Food {
		row.FoodX = append(row.FoodX, p.X)
		row.FoodY = append(row.FoodY, p.Y)
	}
	for _, p := range state.Hazards {
		row.HazardX = append(row.HazardX, p.X)
		row.HazardY = append(row.HazardY, p.Y)
	}

	sorted := make([]game.Snake, len(state.Snakes))
	copy(sorted, state.Snakes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Id < sorted[j].Id })

	row.Snakes = make([]store.TurnSnake, 0, len(sorted))
	for _, s := range sorted {
		snake := store.TurnSnake{
			ID:     s.Id,
			Alive:  true,
			Health: s.Health,
			Move:   store.MoveUnknown,
		}
		if move, ok := moves[s.Id]; ok {
			snake.Move = int32(move)
		}
		for _, p := range s.Body {
			snake.BodyX = append(snake.BodyX, p.X)
			snake.BodyY = append(snake.BodyY, p.Y)
		}
		row.Snakes = append(row.Snakes, snake)
	}
	return row
}

func decisionRow(state *game.GameState, gameID string, move rules.Move, evals []policy.Evaluation, elapsed time.Duration) store.DecisionRow {
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
	encoded, _ := store.EncodeStateJSON(raw)

	row := store.DecisionRow{
		GameID:    gameID,
		Turn:      state.Turn,
		YouID:     state.YouId,
		Width:     state.Width,
		Height:    state.Height,
		Move:      int32(move),
		Fallback:  true,
		ElapsedUS: elapsed.Microseconds(),
		Source:    sourceArena,
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
	if len(pts) == 0 {
		return nil
	}
	out := make([]store.RawPoint, len(pts))
	for i, p := range pts {
		out[i] = store.RawPoint{X: p.X, Y: p.Y}
	}
	return out
}
