// Package game defines the board snapshot types the decision pipeline
// operates on.
//
// A GameState is an immutable per-turn snapshot: the handler builds one from
// the inbound payload, validates it, and every derived structure (occupancy
// grid, search scratch space) hangs off it for that turn only. Nothing here
// is shared across turns.
package game

import (
	"errors"
	"fmt"
)

// ErrMalformedState marks a payload that fails snapshot validation.
// Callers match it with errors.Is and must still answer the turn.
var ErrMalformedState = errors.New("malformed state")

// Standard ruleset constants.
const (
	MaxHealth    int32 = 100
	HazardDamage int32 = 15 // extra health lost entering a hazard, on top of the per-turn 1
)

// Point is a board coordinate.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left, up is y+1.
type Point struct {
	X int32
	Y int32
}

type Snake struct {
	Id     string
	Health int32
	Body   []Point
}

// Head returns the snake's head segment. Body must be non-empty, which
// Validate guarantees for snapshots that reached the pipeline.
func (s *Snake) Head() Point {
	return s.Body[0]
}

// Tail returns the snake's last segment.
func (s *Snake) Tail() Point {
	return s.Body[len(s.Body)-1]
}

func (s *Snake) Length() int {
	return len(s.Body)
}

// GameState is the complete per-turn snapshot.
// YouId selects the snake this agent controls.
type GameState struct {
	Width   int32
	Height  int32
	Snakes  []Snake
	Food    []Point
	Hazards []Point
	YouId   string
	Turn    int32
}

// InBounds reports whether p lies on the board.
func (s *GameState) InBounds(p Point) bool {
	return p.X >= 0 && p.X < s.Width && p.Y >= 0 && p.Y < s.Height
}

// You returns the snake identified by YouId.
func (s *GameState) You() (*Snake, bool) {
	for i := range s.Snakes {
		if s.Snakes[i].Id == s.YouId {
			return &s.Snakes[i], true
		}
	}
	return nil, false
}

// SnakeAt returns the id of the snake occupying p, scanning every body.
// The occupancy Grid answers the same question in O(1); this linear form
// exists for validation and tests that have no grid yet.
func (s *GameState) SnakeAt(p Point) (string, bool) {
	for i := range s.Snakes {
		for _, bp := range s.Snakes[i].Body {
			if bp == p {
				return s.Snakes[i].Id, true
			}
		}
	}
	return "", false
}

func (s *GameState) HasFood(p Point) bool {
	for _, f := range s.Food {
		if f == p {
			return true
		}
	}
	return false
}

func (s *GameState) HasHazard(p Point) bool {
	for _, h := range s.Hazards {
		if h == p {
			return true
		}
	}
	return false
}

// Validate checks the snapshot against the invariants the pipeline relies
// on. Errors wrap ErrMalformedState.
func (s *GameState) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: board dimensions %dx%d", ErrMalformedState, s.Width, s.Height)
	}
	if _, ok := s.You(); !ok {
		return fmt.Errorf("%w: own snake %q not on board", ErrMalformedState, s.YouId)
	}
	for i := range s.Snakes {
		sn := &s.Snakes[i]
		if len(sn.Body) == 0 {
			return fmt.Errorf("%w: snake %q has no body", ErrMalformedState, sn.Id)
		}
		for _, p := range sn.Body {
			if !s.InBounds(p) {
				return fmt.Errorf("%w: snake %q segment (%d,%d) out of bounds", ErrMalformedState, sn.Id, p.X, p.Y)
			}
		}
	}
	return nil
}

// Clone performs a deep copy of the game state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}

	out := &GameState{
		Width:  s.Width,
		Height: s.Height,
		YouId:  s.YouId,
		Turn:   s.Turn,
	}

	if len(s.Food) > 0 {
		out.Food = make([]Point, len(s.Food))
		copy(out.Food, s.Food)
	}

	if len(s.Hazards) > 0 {
		out.Hazards = make([]Point, len(s.Hazards))
		copy(out.Hazards, s.Hazards)
	}

	if len(s.Snakes) > 0 {
		out.Snakes = make([]Snake, len(s.Snakes))
		for i := range s.Snakes {
			out.Snakes[i] = Snake{Id: s.Snakes[i].Id, Health: s.Snakes[i].Health}
			if len(s.Snakes[i].Body) > 0 {
				out.Snakes[i].Body = make([]Point, len(s.Snakes[i].Body))
				copy(out.Snakes[i].Body, s.Snakes[i].Body)
			}
		}
	}

	return out
}
