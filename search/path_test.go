package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/snekd/game"
)

func TestNearestFoodManhattanOnEmptyBoard(t *testing.T) {
	state := &game.GameState{
		Width:  11,
		Height: 11,
		YouId:  "me",
		Snakes: []game.Snake{{Id: "me", Health: 100, Body: []game.Point{{X: 1, Y: 1}}}},
		Food:   []game.Point{{X: 5, Y: 5}},
	}
	grid := buildGrid(t, state)

	dist, ok := NearestFood(state, grid, game.Point{X: 1, Y: 1}, false)
	require.True(t, ok)
	require.Equal(t, 8, dist, "unobstructed BFS distance equals Manhattan distance")
}

func TestNearestFoodZeroWhenStandingOnFood(t *testing.T) {
	state := &game.GameState{
		Width:  5,
		Height: 5,
		YouId:  "me",
		Snakes: []game.Snake{{Id: "me", Health: 100, Body: []game.Point{{X: 2, Y: 2}}}},
		Food:   []game.Point{{X: 2, Y: 3}},
	}
	grid := buildGrid(t, state)

	dist, ok := NearestFood(state, grid, game.Point{X: 2, Y: 3}, true)
	require.True(t, ok)
	require.Zero(t, dist)
}

func TestNearestFoodPicksClosest(t *testing.T) {
	state := &game.GameState{
		Width:  9,
		Height: 9,
		YouId:  "me",
		Snakes: []game.Snake{{Id: "me", Health: 100, Body: []game.Point{{X: 4, Y: 4}}}},
		Food:   []game.Point{{X: 0, Y: 0}, {X: 4, Y: 6}, {X: 8, Y: 8}},
	}
	grid := buildGrid(t, state)

	dist, ok := NearestFood(state, grid, game.Point{X: 4, Y: 5}, false)
	require.True(t, ok)
	require.Equal(t, 1, dist)
}

func TestNearestFoodDetoursAroundBodies(t *testing.T) {
	// A rival wall between head and food forces a detour: Manhattan says 2,
	// the open path costs 4.
	state := &game.GameState{
		Width:  7,
		Height: 7,
		YouId:  "me",
		Snakes: []game.Snake{
			{Id: "me", Health: 100, Body: []game.Point{{X: 1, Y: 3}}},
			{Id: "rival", Health: 100, Body: []game.Point{{X: 2, Y: 2}, {X: 2, Y: 3}, {X: 2, Y: 4}}},
		},
		Food: []game.Point{{X: 3, Y: 2}},
	}
	grid := buildGrid(t, state)

	dist, ok := NearestFood(state, grid, game.Point{X: 1, Y: 2}, false)
	require.True(t, ok)
	require.Equal(t, 4, dist)
}

func TestNearestFoodUnreachable(t *testing.T) {
	// Food sealed in a corner behind a rival body.
	state := &game.GameState{
		Width:  5,
		Height: 5,
		YouId:  "me",
		Snakes: []game.Snake{
			{Id: "me", Health: 100, Body: []game.Point{{X: 3, Y: 3}}},
			{Id: "rival", Health: 100, Body: []game.Point{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}}},
		},
		Food: []game.Point{{X: 0, Y: 0}},
	}
	grid := buildGrid(t, state)

	_, ok := NearestFood(state, grid, game.Point{X: 3, Y: 2}, false)
	require.False(t, ok)
}

func TestFoodWithinBudgetChargesHazardSteps(t *testing.T) {
	// A full-height hazard wall stands between head and food, so every
	// path pays one hazard step: cheapest cost is 16+1.
	state := &game.GameState{
		Width:  5,
		Height: 5,
		YouId:  "me",
		Snakes: []game.Snake{{Id: "me", Health: 100, Body: []game.Point{{X: 0, Y: 2}}}},
		Food:   []game.Point{{X: 2, Y: 2}},
		Hazards: []game.Point{
			{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 1, Y: 2}, {X: 1, Y: 3}, {X: 1, Y: 4},
		},
	}
	grid := buildGrid(t, state)
	head := game.Point{X: 0, Y: 2}
	wallCost := game.HazardDamage + 1 + 1 // one hazard step, one normal step

	cost, ok := FoodWithinBudget(state, grid, head, false, wallCost+1)
	require.True(t, ok)
	require.Equal(t, wallCost, cost)

	// Exactly at budget the food is not affordable: cost must be
	// strictly below the budget.
	_, ok = FoodWithinBudget(state, grid, head, false, wallCost)
	require.False(t, ok)

	_, ok = FoodWithinBudget(state, grid, head, false, 0)
	require.False(t, ok)
}

func TestFoodWithinBudgetPrefersHazardFreePath(t *testing.T) {
	// Hazard sits on the straight line but a clean detour exists; the
	// search must route around and report the cheap cost.
	state := &game.GameState{
		Width:   5,
		Height:  5,
		YouId:   "me",
		Snakes:  []game.Snake{{Id: "me", Health: 100, Body: []game.Point{{X: 0, Y: 2}}}},
		Food:    []game.Point{{X: 2, Y: 2}},
		Hazards: []game.Point{{X: 1, Y: 2}},
	}
	grid := buildGrid(t, state)

	cost, ok := FoodWithinBudget(state, grid, game.Point{X: 0, Y: 2}, false, 100)
	require.True(t, ok)
	require.Equal(t, int32(4), cost, "detour through clean cells beats the hazard shortcut")
}
