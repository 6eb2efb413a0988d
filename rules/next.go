package rules

import (
	"math/rand"

	"github.com/brensch/snekd/game"
)

// advance moves one snake's body onto newHead, handling the health
// decrement, hazard damage, and growth. ate reports whether newHead held
// food. Growth follows the engine: the tail advances normally, then the new
// tail segment is duplicated in place, so the vacated cell frees up even on
// an eating turn.
func advance(state *game.GameState, s *game.Snake, newHead game.Point, ate bool) {
	newBody := make([]game.Point, 0, len(s.Body)+1)
	newBody = append(newBody, newHead)
	newBody = append(newBody, s.Body...)
	newBody = newBody[:len(newBody)-1]

	s.Health--
	if state.HasHazard(newHead) {
		s.Health -= game.HazardDamage
	}
	if ate {
		s.Health = game.MaxHealth
		newBody = append(newBody, newBody[len(newBody)-1])
	}
	s.Body = newBody
}

// NextState applies a single move for the snake identified by YouId,
// leaving every other snake in place. Useful for previewing one hypothesis;
// the arena uses NextStateSimultaneous for real turns.
func NextState(state *game.GameState, move Move) *game.GameState {
	next := state.Clone()
	next.Turn++

	you, ok := next.You()
	if !ok || you.Health <= 0 {
		return next
	}

	newHead := move.Apply(you.Body[0])

	ate := false
	for i, f := range next.Food {
		if f == newHead {
			ate = true
			next.Food = append(next.Food[:i], next.Food[i+1:]...)
			break
		}
	}

	advance(next, you, newHead, ate)
	return next
}

// NextStateSimultaneous advances the state one full turn: every live snake
// moves at once, food is consumed, and eliminations are resolved the way the
// standard ruleset does (walls, body collisions, then head-to-head by
// length, shorter or equal dies). Snakes missing from moves are eliminated.
func NextStateSimultaneous(state *game.GameState, moves map[string]Move) *game.GameState {
	next := state.Clone()
	next.Turn++

	// 1. Where does every head land.
	newHeads := make(map[string]game.Point, len(next.Snakes))
	for i := range next.Snakes {
		s := &next.Snakes[i]
		if s.Health <= 0 || len(s.Body) == 0 {
			continue
		}
		move, ok := moves[s.Id]
		if !ok {
			continue
		}
		newHeads[s.Id] = move.Apply(s.Body[0])
	}

	// 2. Resolve eating before bodies move, so simultaneous arrivals on the
	// same food all grow.
	eaten := make(map[int]bool)
	ate := make(map[string]bool)
	for id, head := range newHeads {
		for i, f := range next.Food {
			if f == head {
				eaten[i] = true
				ate[id] = true
			}
		}
	}
	if len(eaten) > 0 {
		remaining := next.Food[:0]
		for i, f := range next.Food {
			if !eaten[i] {
				remaining = append(remaining, f)
			}
		}
		next.Food = remaining
	}

	// 3. Advance bodies.
	for i := range next.Snakes {
		s := &next.Snakes[i]
		newHead, ok := newHeads[s.Id]
		if !ok {
			s.Health = 0
			continue
		}
		advance(next, s, newHead, ate[s.Id])
	}

	// 4. Eliminations.
	dead := make(map[string]bool)
	for i := range next.Snakes {
		s := &next.Snakes[i]
		if s.Health <= 0 {
			dead[s.Id] = true
			continue
		}
		head := s.Body[0]

		if !next.InBounds(head) {
			dead[s.Id] = true
			continue
		}

		for j := range next.Snakes {
			other := &next.Snakes[j]
			if other.Health <= 0 {
				continue
			}
			for bi, p := range other.Body {
				if bi == 0 {
					// Head cells resolve by length below.
					continue
				}
				if p == head {
					dead[s.Id] = true
				}
			}
		}
	}

	for i := 0; i < len(next.Snakes); i++ {
		s1 := &next.Snakes[i]
		if dead[s1.Id] || s1.Health <= 0 {
			continue
		}
		for j := i + 1; j < len(next.Snakes); j++ {
			s2 := &next.Snakes[j]
			if dead[s2.Id] || s2.Health <= 0 {
				continue
			}
			if s1.Body[0] != s2.Body[0] {
				continue
			}
			switch {
			case len(s1.Body) > len(s2.Body):
				dead[s2.Id] = true
			case len(s2.Body) > len(s1.Body):
				dead[s1.Id] = true
			default:
				dead[s1.Id] = true
				dead[s2.Id] = true
			}
		}
	}

	living := make([]game.Snake, 0, len(next.Snakes))
	for _, s := range next.Snakes {
		if dead[s.Id] {
			continue
		}
		living = append(living, s)
	}
	next.Snakes = living

	return next
}

// NextStateWithFoodSettings applies a single move and then runs food
// spawning, the combination a full engine turn performs.
func NextStateWithFoodSettings(state *game.GameState, move Move, rng *rand.Rand, settings FoodSettings) *game.GameState {
	next := NextState(state, move)
	ApplyFoodSettings(next, rng, settings)
	return next
}

// NextStateSimultaneousWithFoodSettings advances all snakes and then runs
// food spawning.
func NextStateSimultaneousWithFoodSettings(state *game.GameState, moves map[string]Move, rng *rand.Rand, settings FoodSettings) *game.GameState {
	next := NextStateSimultaneous(state, moves)
	ApplyFoodSettings(next, rng, settings)
	return next
}

// IsGameOver reports whether at most one snake remains alive.
func IsGameOver(state *game.GameState) bool {
	living := 0
	for i := range state.Snakes {
		if state.Snakes[i].Health > 0 {
			living++
		}
	}
	return living <= 1
}

// Winner returns the id of the last living snake, if exactly one remains.
func Winner(state *game.GameState) (string, bool) {
	winner := ""
	living := 0
	for i := range state.Snakes {
		if state.Snakes[i].Health > 0 {
			living++
			winner = state.Snakes[i].Id
		}
	}
	if living == 1 {
		return winner, true
	}
	return "", false
}
