package search

import (
	"container/heap"

	"github.com/brensch/snekd/game"
	"github.com/brensch/snekd/rules"
)

// NearestFood returns the shortest path length from head to any food cell
// under the post-move hypothesis (unit steps, so BFS is exact). A head
// already standing on food is distance zero. ok is false when no food is
// reachable, which callers treat as "skip the food signal", never as an
// error.
func NearestFood(state *game.GameState, grid *game.Grid, head game.Point, eats bool) (int, bool) {
	if !grid.InBounds(head) {
		return 0, false
	}

	freedTail, tailFreed := freedTailCell(state, eats)
	enterable := func(p game.Point) bool {
		if tailFreed && p == freedTail {
			return true
		}
		return !grid.Blocked(p)
	}

	if !enterable(head) {
		return 0, false
	}

	type node struct {
		p    game.Point
		dist int
	}

	w := int(grid.Width)
	visited := make([]bool, w*int(grid.Height))
	visited[int(head.Y)*w+int(head.X)] = true

	queue := []node{{p: head}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if grid.HasFood(n.p) {
			return n.dist, true
		}
		for _, m := range rules.AllMoves {
			q := m.Apply(n.p)
			if !grid.InBounds(q) {
				continue
			}
			i := int(q.Y)*w + int(q.X)
			if visited[i] || !enterable(q) {
				continue
			}
			visited[i] = true
			queue = append(queue, node{p: q, dist: n.dist + 1})
		}
	}
	return 0, false
}

// costNode is a priority-queue entry for the weighted food search.
type costNode struct {
	p    game.Point
	cost int32
}

type costQueue []costNode

func (q costQueue) Len() int            { return len(q) }
func (q costQueue) Less(i, j int) bool  { return q[i].cost < q[j].cost }
func (q costQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *costQueue) Push(x interface{}) { *q = append(*q, x.(costNode)) }
func (q *costQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// FoodWithinBudget runs the hazard-aware variant of the food search: a
// normal step costs 1 health, a step into a hazard costs 1+HazardDamage.
// Food only counts if the cheapest path to it costs strictly less than
// budget, so a snake never chases food it would starve reaching. Returns
// the health cost of the cheapest acceptable food.
func FoodWithinBudget(state *game.GameState, grid *game.Grid, head game.Point, eats bool, budget int32) (int32, bool) {
	if budget <= 0 || !grid.InBounds(head) {
		return 0, false
	}

	freedTail, tailFreed := freedTailCell(state, eats)
	enterable := func(p game.Point) bool {
		if tailFreed && p == freedTail {
			return true
		}
		return !grid.Blocked(p)
	}

	if !enterable(head) {
		return 0, false
	}

	w := int(grid.Width)
	best := make([]int32, w*int(grid.Height))
	for i := range best {
		best[i] = -1
	}
	best[int(head.Y)*w+int(head.X)] = 0

	pq := &costQueue{{p: head}}
	for pq.Len() > 0 {
		n := heap.Pop(pq).(costNode)
		i := int(n.p.Y)*w + int(n.p.X)
		if n.cost > best[i] && best[i] >= 0 {
			continue
		}
		if n.cost >= budget {
			// Everything left in the queue costs at least as much.
			return 0, false
		}
		if grid.HasFood(n.p) {
			return n.cost, true
		}
		for _, m := range rules.AllMoves {
			q := m.Apply(n.p)
			if !grid.InBounds(q) || !enterable(q) {
				continue
			}
			step := int32(1)
			if grid.HasHazard(q) {
				step += game.HazardDamage
			}
			qi := int(q.Y)*w + int(q.X)
			cost := n.cost + step
			if best[qi] >= 0 && best[qi] <= cost {
				continue
			}
			best[qi] = cost
			heap.Push(pq, costNode{p: q, cost: cost})
		}
	}
	return 0, false
}
