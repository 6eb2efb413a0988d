// Package search implements the graph searches behind move scoring:
// reachable-space flood fill and shortest-path food finding, both running
// over the occupancy grid under a post-move hypothesis.
//
// The hypothesis is always the same: the agent's head stands on the
// candidate cell, its tail cell is freed unless the move eats (eating
// retains the tail for one more turn), and every opponent stays frozen at
// its pre-move position. Opponents' simultaneous moves are unknowable, so
// freezing them is the conservative choice.
package search

import (
	"github.com/brensch/snekd/game"
	"github.com/brensch/snekd/rules"
)

// freedTailCell returns the cell the agent's tail vacates under the
// hypothesis, if any. A stacked tail (fresh growth) keeps its cell occupied
// another turn, so nothing frees.
func freedTailCell(state *game.GameState, eats bool) (game.Point, bool) {
	if eats {
		return game.Point{}, false
	}
	you, ok := state.You()
	if !ok || len(you.Body) == 0 {
		return game.Point{}, false
	}
	tail := you.Tail()
	if len(you.Body) >= 2 && you.Body[len(you.Body)-2] == tail {
		return game.Point{}, false
	}
	return tail, true
}

// ReachableSpace counts the cells reachable from head under the post-move
// hypothesis, head cell included. A candidate landing on a body cell has no
// space at all. stopAt > 0 caps the fill early once that many cells are
// found, for callers that only need "at least this much room".
func ReachableSpace(state *game.GameState, grid *game.Grid, head game.Point, eats bool, stopAt int) int {
	if !grid.InBounds(head) {
		return 0
	}

	freedTail, tailFreed := freedTailCell(state, eats)
	enterable := func(p game.Point) bool {
		if tailFreed && p == freedTail {
			return true
		}
		return !grid.Blocked(p)
	}

	if !enterable(head) {
		return 0
	}

	w := int(grid.Width)
	visited := make([]bool, w*int(grid.Height))
	visited[int(head.Y)*w+int(head.X)] = true

	queue := []game.Point{head}
	count := 0
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		count++
		if stopAt > 0 && count >= stopAt {
			return count
		}
		for _, m := range rules.AllMoves {
			q := m.Apply(p)
			if !grid.InBounds(q) {
				continue
			}
			i := int(q.Y)*w + int(q.X)
			if visited[i] || !enterable(q) {
				continue
			}
			visited[i] = true
			queue = append(queue, q)
		}
	}
	return count
}
