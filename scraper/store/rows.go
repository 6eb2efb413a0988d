package store

import (
	"encoding/json"
	"fmt"
)

// Parquet schema names, written as KeyValueMetadata so readers can detect
// incompatible files instead of misparsing them.
const (
	SchemaDecision = "decision_row_v1"
	SchemaGameTurn = "game_turn_v1"
)

// Move labels shared by every row type: 0=Up, 1=Down, 2=Left, 3=Right,
// -1 when the move is unknown or not applicable.
const MoveUnknown int32 = -1

// FoodUnreachable marks a DirectionEval whose search found no affordable food.
const FoodUnreachable int32 = -1

// DecisionRow is one archived move decision: which direction the agent
// picked for a turn and what every candidate scored. State carries the full
// board snapshot (RawState JSON) so a decision can be replayed against a
// newer policy without the original request.
type DecisionRow struct {
	GameID    string `parquet:"game_id,dict"`
	Turn      int32  `parquet:"turn"`
	YouID     string `parquet:"you_id,dict"`
	Width     int32  `parquet:"width"`
	Height    int32  `parquet:"height"`
	Health    int32  `parquet:"health"`
	Length    int32  `parquet:"length"`
	Move      int32  `parquet:"move"`
	Fallback  bool   `parquet:"fallback"`
	ElapsedUS int64  `parquet:"elapsed_us"`
	Source    string `parquet:"source,dict"`
	State     []byte `parquet:"state"`

	Evals []DirectionEval `parquet:"evals"`
}

// DirectionEval is the per-candidate breakdown inside a DecisionRow.
// FoodCost is -1 when no food was reachable within the health budget.
type DirectionEval struct {
	Move     int32   `parquet:"move"`
	HeadX    int32   `parquet:"head_x"`
	HeadY    int32   `parquet:"head_y"`
	Legal    bool    `parquet:"legal"`
	Eats     bool    `parquet:"eats"`
	Space    int32   `parquet:"space"`
	FoodCost int32   `parquet:"food_cost"`
	Threat   int32   `parquet:"threat"`
	Score    float64 `parquet:"score"`
}

// TurnRow is one (game, turn) snapshot of a scraped public game. One row
// per turn keeps food and hazards unduplicated across snakes and compresses
// well under zstd with the dict-encoded id columns.
type TurnRow struct {
	GameID string `parquet:"game_id,dict"`
	Turn   int32  `parquet:"turn"`
	Width  int32  `parquet:"width"`
	Height int32  `parquet:"height"`

	FoodX []int32 `parquet:"food_x"`
	FoodY []int32 `parquet:"food_y"`

	HazardX []int32 `parquet:"hazard_x"`
	HazardY []int32 `parquet:"hazard_y"`

	Snakes []TurnSnake `parquet:"snakes"`

	Source string `parquet:"source,dict"`
}

// TurnSnake is the nested per-snake record of a TurnRow. Move is the
// direction the engine reported for this snake on this turn.
type TurnSnake struct {
	ID     string `parquet:"id,dict"`
	Name   string `parquet:"name,dict,optional"`
	Alive  bool   `parquet:"alive"`
	Health int32  `parquet:"health"`

	BodyX []int32 `parquet:"body_x"`
	BodyY []int32 `parquet:"body_y"`

	Move int32 `parquet:"move"`
}

// RawState is the self-contained snapshot embedded in DecisionRow.State.
// It is deliberately decoupled from the engine packages so archived files
// stay readable across refactors. (0,0) is the bottom-left cell.
type RawState struct {
	Width   int32      `json:"width"`
	Height  int32      `json:"height"`
	Turn    int32      `json:"turn"`
	YouID   string     `json:"you_id"`
	Food    []RawPoint `json:"food"`
	Hazards []RawPoint `json:"hazards,omitempty"`
	Snakes  []RawSnake `json:"snakes"`
}

type RawPoint struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type RawSnake struct {
	ID     string     `json:"id"`
	Health int32      `json:"health"`
	Body   []RawPoint `json:"body"`
}

func EncodeStateJSON(state RawState) ([]byte, error) {
	if state.Width <= 0 || state.Height <= 0 {
		return nil, fmt.Errorf("invalid state dimensions: %dx%d", state.Width, state.Height)
	}
	return json.Marshal(state)
}

func DecodeStateJSON(b []byte) (RawState, error) {
	var state RawState
	if err := json.Unmarshal(b, &state); err != nil {
		return RawState{}, fmt.Errorf("decode state: %w", err)
	}
	if state.Width <= 0 || state.Height <= 0 {
		return RawState{}, fmt.Errorf("invalid state dimensions: %dx%d", state.Width, state.Height)
	}
	return state, nil
}
