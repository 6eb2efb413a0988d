package main

import (
	"github.com/brensch/snekd/scraper/store"
)

// GameSummary is one row of the games listing. Decision games carry
// fallback and latency aggregates; turn games carry a snake count.
type GameSummary struct {
	GameID string `json:"game_id"`
	Kind   string `json:"kind"` // "decision" or "turn"
	// StartedNs is recovered from the batch filename, so it is the flush
	// time rather than the true game start. Nil when the file does not
	// follow the schema_nano.parquet convention.
	StartedNs    *int64  `json:"started_ns"`
	FirstTurn    int32   `json:"first_turn"`
	LastTurn     int32   `json:"last_turn"`
	Rows         int32   `json:"rows"`
	Width        int32   `json:"width"`
	Height       int32   `json:"height"`
	Source       string  `json:"source"`
	SourceFile   string  `json:"file"`
	Fallbacks    int64   `json:"fallbacks,omitempty"`
	AvgElapsedUS float64 `json:"avg_elapsed_us,omitempty"`
	Snakes       int32   `json:"snakes,omitempty"`
}

type GamesResponse struct {
	Total int64         `json:"total"`
	Games []GameSummary `json:"games"`
}

// Error type tags, stable strings a frontend can switch on.
const (
	errTypeValidation = "validation_error"
	errTypeNotFound   = "not_found"
	errTypeInternal   = "internal_error"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// EvalView is one direction's archived evaluation.
type EvalView struct {
	Move     int32   `json:"move"`
	MoveName string  `json:"move_name"`
	Head     Point   `json:"head"`
	Legal    bool    `json:"legal"`
	Eats     bool    `json:"eats"`
	Space    int32   `json:"space"`
	FoodCost int32   `json:"food_cost"`
	Threat   int32   `json:"threat"`
	Score    float64 `json:"score"`
}

// DecisionView is one archived move decision with its full context.
type DecisionView struct {
	GameID    string          `json:"game_id"`
	Turn      int32           `json:"turn"`
	YouID     string          `json:"you_id"`
	Width     int32           `json:"width"`
	Height    int32           `json:"height"`
	Health    int32           `json:"health"`
	Length    int32           `json:"length"`
	Move      int32           `json:"move"`
	MoveName  string          `json:"move_name"`
	Fallback  bool            `json:"fallback"`
	ElapsedUS int64           `json:"elapsed_us"`
	Source    string          `json:"source"`
	Evals     []EvalView      `json:"evals"`
	State     *store.RawState `json:"state,omitempty"`
}

type SnakeView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Alive    bool    `json:"alive"`
	Health   int32   `json:"health"`
	Body     []Point `json:"body"`
	Move     int32   `json:"move"`
	MoveName string  `json:"move_name,omitempty"`
}

// TurnView is one archived board snapshot from a scraped or arena game.
type TurnView struct {
	GameID  string      `json:"game_id"`
	Turn    int32       `json:"turn"`
	Width   int32       `json:"width"`
	Height  int32       `json:"height"`
	Food    []Point     `json:"food"`
	Hazards []Point     `json:"hazards"`
	Snakes  []SnakeView `json:"snakes"`
	Source  string      `json:"source"`
}

// SourceStats aggregates the decision archive per source tag.
type SourceStats struct {
	Source       string  `json:"source"`
	Games        int64   `json:"games"`
	Decisions    int64   `json:"decisions"`
	Fallbacks    int64   `json:"fallbacks"`
	AvgElapsedUS float64 `json:"avg_elapsed_us"`
	MovesUp      int64   `json:"moves_up"`
	MovesDown    int64   `json:"moves_down"`
	MovesLeft    int64   `json:"moves_left"`
	MovesRight   int64   `json:"moves_right"`
}

// TurnSourceStats aggregates the turn archive per source tag.
type TurnSourceStats struct {
	Source string `json:"source"`
	Games  int64  `json:"games"`
	Turns  int64  `json:"turns"`
}

type StatsResponse struct {
	Decisions []SourceStats     `json:"decisions"`
	Turns     []TurnSourceStats `json:"turns"`
}

type RedecideRequest struct {
	GameID string `json:"game_id"`
	Turn   int32  `json:"turn"`
}

// RedecideResponse compares the archived decision against what the
// current policy build chooses for the same state.
type RedecideResponse struct {
	GameID           string     `json:"game_id"`
	Turn             int32      `json:"turn"`
	ArchivedMove     int32      `json:"archived_move"`
	ArchivedMoveName string     `json:"archived_move_name"`
	Move             int32      `json:"move"`
	MoveName         string     `json:"move_name"`
	Agrees           bool       `json:"agrees"`
	ElapsedUS        int64      `json:"elapsed_us"`
	Evals            []EvalView `json:"evals"`
}
