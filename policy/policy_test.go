package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/snekd/game"
	"github.com/brensch/snekd/rules"
)

func findEval(t *testing.T, evals []Evaluation, m rules.Move) Evaluation {
	t.Helper()
	for _, ev := range evals {
		if ev.Move == m {
			return ev
		}
	}
	t.Fatalf("no evaluation recorded for %s", m)
	return Evaluation{}
}

func TestDecideSymmetricBoardTieBreaksUp(t *testing.T) {
	state := &game.GameState{
		Width:  11,
		Height: 11,
		YouId:  "me",
		Snakes: []game.Snake{{Id: "me", Health: 100, Body: []game.Point{{X: 1, Y: 1}}}},
		Food:   []game.Point{{X: 5, Y: 5}},
	}

	move, evals, err := NewEngine(DefaultConfig()).Decide(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, rules.MoveUp, move)

	// A single-segment snake frees its whole footprint when it moves, so
	// every direction sees the entire empty board.
	require.Len(t, evals, 4)
	for i, m := range rules.AllMoves {
		require.Equal(t, m, evals[i].Move)
		require.True(t, evals[i].Legal)
		require.Equal(t, 121, evals[i].Space)
	}
}

func TestDecideLowHealthSteersTowardFood(t *testing.T) {
	state := &game.GameState{
		Width:  11,
		Height: 11,
		YouId:  "me",
		Snakes: []game.Snake{{Id: "me", Health: 100, Body: []game.Point{{X: 1, Y: 1}}}},
		Food:   []game.Point{{X: 5, Y: 1}},
	}
	engine := NewEngine(DefaultConfig())

	// Healthy: every direction ties on space and the food signal is off,
	// so the fixed priority order decides.
	move, _, err := engine.Decide(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, rules.MoveUp, move)

	// Hungry: right has the food 3 steps away versus 5 for the rest.
	state.Snakes[0].Health = 20
	move, evals, err := engine.Decide(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, rules.MoveRight, move)

	right := findEval(t, evals, rules.MoveRight)
	up := findEval(t, evals, rules.MoveUp)
	require.True(t, right.FoodFound)
	require.Equal(t, int32(3), right.FoodCost)
	require.Equal(t, int32(5), up.FoodCost)
}

func TestDecideOpenBoardBeatsPocket(t *testing.T) {
	// Down enters a 4-cell pocket behind the body, up opens onto the rest
	// of the board.
	state := &game.GameState{
		Width:  5,
		Height: 5,
		YouId:  "me",
		Snakes: []game.Snake{{
			Id:     "me",
			Health: 100,
			Body: []game.Point{
				{X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 1}, {X: 2, Y: 0}, {X: 3, Y: 0},
			},
		}},
	}

	move, evals, err := NewEngine(DefaultConfig()).Decide(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, rules.MoveUp, move)

	up := findEval(t, evals, rules.MoveUp)
	down := findEval(t, evals, rules.MoveDown)
	require.Greater(t, up.Space, down.Space)
}

func TestDecideLosingHeadToHeadRanksLast(t *testing.T) {
	// Right steps next to a longer rival's head. It must score below both
	// clean alternatives even though its reachable space is just as large.
	state := &game.GameState{
		Width:  7,
		Height: 7,
		YouId:  "me",
		Snakes: []game.Snake{
			{Id: "me", Health: 100, Body: []game.Point{{X: 1, Y: 1}, {X: 1, Y: 0}}},
			{Id: "rival", Health: 100, Body: []game.Point{{X: 3, Y: 1}, {X: 4, Y: 1}, {X: 5, Y: 1}, {X: 5, Y: 2}}},
		},
	}

	move, evals, err := NewEngine(DefaultConfig()).Decide(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, rules.MoveUp, move)

	right := findEval(t, evals, rules.MoveRight)
	require.Equal(t, rules.ThreatLonger, right.Threat)
	require.Less(t, right.Score, findEval(t, evals, rules.MoveUp).Score)
	require.Less(t, right.Score, findEval(t, evals, rules.MoveLeft).Score)
}

func TestDecideBoxedInStillAnswers(t *testing.T) {
	// The snake fills the entire 2x2 board. Nothing is legal, yet a move
	// must come back, ranked on raw space: up chases the vacating tail.
	state := &game.GameState{
		Width:  2,
		Height: 2,
		YouId:  "me",
		Snakes: []game.Snake{{
			Id:     "me",
			Health: 100,
			Body:   []game.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		}},
	}

	move, evals, err := NewEngine(DefaultConfig()).Decide(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, rules.MoveUp, move)
	for _, ev := range evals {
		require.False(t, ev.Legal)
	}
}

func TestDecideDeterministic(t *testing.T) {
	state := &game.GameState{
		Width:  7,
		Height: 7,
		YouId:  "me",
		Snakes: []game.Snake{
			{Id: "me", Health: 25, Body: []game.Point{{X: 1, Y: 1}, {X: 1, Y: 0}}},
			{Id: "rival", Health: 80, Body: []game.Point{{X: 3, Y: 1}, {X: 4, Y: 1}, {X: 5, Y: 1}, {X: 5, Y: 2}}},
		},
		Food: []game.Point{{X: 1, Y: 5}, {X: 6, Y: 6}},
	}
	engine := NewEngine(DefaultConfig())

	first, firstEvals, err := engine.Decide(context.Background(), state)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		move, evals, err := engine.Decide(context.Background(), state)
		require.NoError(t, err)
		require.Equal(t, first, move)
		require.Equal(t, firstEvals, evals)
	}
}

func TestDecideCancelledContextReturnsFallback(t *testing.T) {
	state := &game.GameState{
		Width:  11,
		Height: 11,
		YouId:  "me",
		Snakes: []game.Snake{{Id: "me", Health: 100, Body: []game.Point{{X: 1, Y: 1}}}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	move, evals, err := NewEngine(DefaultConfig()).Decide(ctx, state)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, rules.MoveUp, move, "first legal move stands in for the unfinished ranking")
	require.Empty(t, evals)
}

func TestDecideMalformedStateStillMovesUp(t *testing.T) {
	state := &game.GameState{Width: 11, Height: 11, YouId: "ghost"}

	move, _, err := NewEngine(DefaultConfig()).Decide(context.Background(), state)
	require.ErrorIs(t, err, game.ErrMalformedState)
	require.Equal(t, rules.MoveUp, move)
}
