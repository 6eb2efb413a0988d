package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/snekd/game"
)

const moveRequestJSON = `{
  "game": {
    "id": "game-00fe20da",
    "ruleset": {
      "name": "standard",
      "version": "v1.2.3",
      "settings": {"foodSpawnChance": 15, "minimumFood": 1, "hazardDamagePerTurn": 14}
    },
    "map": "standard",
    "timeout": 500,
    "source": "league"
  },
  "turn": 14,
  "board": {
    "height": 11,
    "width": 11,
    "food": [{"x": 5, "y": 5}, {"x": 9, "y": 0}],
    "hazards": [{"x": 0, "y": 0}],
    "snakes": [
      {
        "id": "snake-508e96ac",
        "name": "My Snake",
        "health": 54,
        "body": [{"x": 0, "y": 0}, {"x": 1, "y": 0}, {"x": 2, "y": 0}],
        "latency": "111",
        "head": {"x": 0, "y": 0},
        "length": 3,
        "shout": "why are we shouting??",
        "squad": ""
      },
      {
        "id": "snake-b67f4906",
        "name": "Another Snake",
        "health": 16,
        "body": [{"x": 5, "y": 4}, {"x": 5, "y": 3}, {"x": 6, "y": 3}, {"x": 6, "y": 2}],
        "latency": "222",
        "head": {"x": 5, "y": 4},
        "length": 4,
        "shout": "I'm not really sure...",
        "squad": ""
      }
    ]
  },
  "you": {
    "id": "snake-508e96ac",
    "name": "My Snake",
    "health": 54,
    "body": [{"x": 0, "y": 0}, {"x": 1, "y": 0}, {"x": 2, "y": 0}],
    "latency": "111",
    "head": {"x": 0, "y": 0},
    "length": 3,
    "shout": "why are we shouting??",
    "squad": ""
  }
}`

func TestGameRequestToGameState(t *testing.T) {
	var req GameRequest
	require.NoError(t, json.Unmarshal([]byte(moveRequestJSON), &req))

	require.Equal(t, "game-00fe20da", req.Game.ID)
	require.Equal(t, 500, req.Game.Timeout)
	require.Equal(t, 14, req.Game.Ruleset.Settings.HazardDamagePerTurn)

	state := req.GameState()
	require.Equal(t, int32(11), state.Width)
	require.Equal(t, int32(11), state.Height)
	require.Equal(t, int32(14), state.Turn)
	require.Equal(t, "snake-508e96ac", state.YouId)
	require.Equal(t, []game.Point{{X: 5, Y: 5}, {X: 9, Y: 0}}, state.Food)
	require.Equal(t, []game.Point{{X: 0, Y: 0}}, state.Hazards)

	require.Len(t, state.Snakes, 2)
	require.NoError(t, state.Validate())

	you, ok := state.You()
	require.True(t, ok)
	require.Equal(t, int32(54), you.Health)
	require.Equal(t, game.Point{X: 0, Y: 0}, you.Head())
	require.Equal(t, 3, you.Length())
}

func TestGameStateHandlesEmptyBoardSlices(t *testing.T) {
	req := GameRequest{Turn: 0}
	req.Board.Width = 7
	req.Board.Height = 7

	state := req.GameState()
	require.NotNil(t, state.Food)
	require.NotNil(t, state.Hazards)
	require.Empty(t, state.Snakes)
}

func TestMoveResponseShoutOmitted(t *testing.T) {
	b, err := json.Marshal(MoveResponse{Move: "up"})
	require.NoError(t, err)
	require.JSONEq(t, `{"move":"up"}`, string(b))

	b, err = json.Marshal(MoveResponse{Move: "left", Shout: "mine"})
	require.NoError(t, err)
	require.JSONEq(t, `{"move":"left","shout":"mine"}`, string(b))
}
