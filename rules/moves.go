// Package rules implements move legality and the forward simulation of the
// standard ruleset: movement, eating, hazard damage, eliminations.
package rules

import (
	"github.com/brensch/snekd/game"
)

// Move is one of the four cardinal directions.
type Move int

const (
	MoveUp Move = iota
	MoveDown
	MoveLeft
	MoveRight
)

// AllMoves lists the directions in the fixed priority order used everywhere
// a tie has to resolve deterministically.
var AllMoves = [4]Move{MoveUp, MoveDown, MoveLeft, MoveRight}

func (m Move) String() string {
	switch m {
	case MoveDown:
		return "down"
	case MoveLeft:
		return "left"
	case MoveRight:
		return "right"
	default:
		return "up"
	}
}

// Apply returns the coordinate one step from p in direction m.
func (m Move) Apply(p game.Point) game.Point {
	switch m {
	case MoveUp:
		p.Y++
	case MoveDown:
		p.Y--
	case MoveLeft:
		p.X--
	case MoveRight:
		p.X++
	}
	return p
}

// ParseMove maps a wire direction back to a Move.
func ParseMove(s string) (Move, bool) {
	switch s {
	case "up":
		return MoveUp, true
	case "down":
		return MoveDown, true
	case "left":
		return MoveLeft, true
	case "right":
		return MoveRight, true
	}
	return MoveUp, false
}

// LegalMoves returns the subset of directions whose destination survives
// entry this turn: in bounds, free of live body segments (tails included,
// since whether a tail vacates is unknowable pre-move), and not a hazard
// the snake lacks the health to enter.
func LegalMoves(state *game.GameState, grid *game.Grid) []Move {
	you, ok := state.You()
	if !ok || you.Health <= 0 || len(you.Body) == 0 {
		return nil
	}

	head := you.Body[0]
	moves := make([]Move, 0, 4)
	for _, m := range AllMoves {
		p := m.Apply(head)
		if grid.Blocked(p) {
			continue
		}
		if grid.HasHazard(p) && you.Health <= game.HazardDamage+1 {
			continue
		}
		moves = append(moves, m)
	}
	return moves
}

// HeadThreat classifies the head-to-head danger of a destination cell.
type HeadThreat int

const (
	ThreatNone   HeadThreat = iota
	ThreatEqual             // an equal-length opponent head could enter the same cell: both die
	ThreatLonger            // a strictly longer head could: we die, they survive
)

// HeadThreatAt reports the worst head-to-head outcome possible at p next
// turn, by scanning the cells an opponent head would strike from.
func HeadThreatAt(state *game.GameState, grid *game.Grid, p game.Point, ownLength int) HeadThreat {
	threat := ThreatNone
	for _, m := range AllMoves {
		q := m.Apply(p)
		if !grid.HeadAt(q) || grid.OwnAt(q) {
			continue
		}
		i, ok := grid.SnakeIndexAt(q)
		if !ok {
			continue
		}
		opp := &state.Snakes[i]
		if opp.Health <= 0 {
			continue
		}
		if opp.Length() > ownLength {
			return ThreatLonger
		}
		if opp.Length() == ownLength {
			threat = ThreatEqual
		}
	}
	return threat
}
