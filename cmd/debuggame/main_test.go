package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/snekd/game"
	"github.com/brensch/snekd/policy"
	"github.com/brensch/snekd/rules"
)

func TestRenderBoardMarksCells(t *testing.T) {
	state := &game.GameState{
		Width:   4,
		Height:  3,
		YouId:   "me",
		Food:    []game.Point{{X: 2, Y: 1}},
		Hazards: []game.Point{{X: 0, Y: 2}},
		Snakes: []game.Snake{
			{Id: "me", Health: 90, Body: []game.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}},
			{Id: "rival", Health: 80, Body: []game.Point{{X: 3, Y: 2}}},
		},
	}

	want := "x . . S\n" +
		". . F .\n" +
		"O o . .\n"
	require.Equal(t, want, renderBoard(state))
}

func TestRenderEvalsMarksChosen(t *testing.T) {
	evals := []policy.Evaluation{
		{Move: rules.MoveUp, Legal: true, Space: 12, FoodFound: true, FoodCost: 3, Score: 12.5},
		{Move: rules.MoveDown, Legal: false, Space: 0, Score: 0},
	}

	out := renderEvals(evals, rules.MoveUp)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	require.Contains(t, lines[1], "up")
	require.Contains(t, lines[1], "yes")
	require.Contains(t, lines[1], "3")
	require.True(t, strings.HasSuffix(lines[1], "*"), "chosen move is starred")

	require.Contains(t, lines[2], "down")
	require.Contains(t, lines[2], "-")
	require.False(t, strings.HasSuffix(lines[2], "*"))
}
