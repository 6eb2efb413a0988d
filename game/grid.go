package game

// CellFlags is a bitmask describing everything occupying one board cell.
type CellFlags uint8

const (
	CellFood CellFlags = 1 << iota
	CellHazard
	CellBody // any live snake segment, own included
	CellHead
	CellTail
	CellOwn // segment belongs to the snake this agent controls
)

// Grid is the per-turn occupancy index: one pass over the snapshot at build
// time, O(1) cell queries afterwards. The searches would otherwise rescan
// every body per candidate move, turning linear flood fills quadratic.
//
// owner records which snake occupies a body cell as an index into
// state.Snakes, -1 for none. Stacked growth segments keep the first writer.
type Grid struct {
	Width  int32
	Height int32
	flags  []CellFlags
	owner  []int16
}

// BuildGrid indexes a validated snapshot. Out-of-bounds segments would
// corrupt the index, so callers run GameState.Validate first.
func BuildGrid(state *GameState) *Grid {
	g := &Grid{
		Width:  state.Width,
		Height: state.Height,
		flags:  make([]CellFlags, int(state.Width)*int(state.Height)),
		owner:  make([]int16, int(state.Width)*int(state.Height)),
	}
	for i := range g.owner {
		g.owner[i] = -1
	}

	for _, f := range state.Food {
		g.flags[g.cell(f)] |= CellFood
	}
	for _, h := range state.Hazards {
		g.flags[g.cell(h)] |= CellHazard
	}

	for si := range state.Snakes {
		s := &state.Snakes[si]
		if s.Health <= 0 || len(s.Body) == 0 {
			continue
		}
		own := s.Id == state.YouId
		last := len(s.Body) - 1
		for bi, p := range s.Body {
			i := g.cell(p)
			g.flags[i] |= CellBody
			if bi == 0 {
				g.flags[i] |= CellHead
			}
			if bi == last {
				g.flags[i] |= CellTail
			}
			if own {
				g.flags[i] |= CellOwn
			}
			if g.owner[i] < 0 {
				g.owner[i] = int16(si)
			}
		}
	}

	return g
}

func (g *Grid) cell(p Point) int {
	return int(p.Y)*int(g.Width) + int(p.X)
}

func (g *Grid) InBounds(p Point) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

// Flags returns the cell bitmask, zero for off-board coordinates.
func (g *Grid) Flags(p Point) CellFlags {
	if !g.InBounds(p) {
		return 0
	}
	return g.flags[g.cell(p)]
}

// Blocked reports whether p cannot be entered this turn: off the board or
// holding a live body segment. Tail cells count as blocked; whether a tail
// vacates depends on eating, which the searches model themselves.
func (g *Grid) Blocked(p Point) bool {
	if !g.InBounds(p) {
		return true
	}
	return g.flags[g.cell(p)]&CellBody != 0
}

func (g *Grid) HasFood(p Point) bool {
	return g.Flags(p)&CellFood != 0
}

func (g *Grid) HasHazard(p Point) bool {
	return g.Flags(p)&CellHazard != 0
}

func (g *Grid) HeadAt(p Point) bool {
	return g.Flags(p)&CellHead != 0
}

func (g *Grid) TailAt(p Point) bool {
	return g.Flags(p)&CellTail != 0
}

func (g *Grid) OwnAt(p Point) bool {
	return g.Flags(p)&CellOwn != 0
}

// SnakeIndexAt returns the index into the snapshot's Snakes slice for the
// body occupying p.
func (g *Grid) SnakeIndexAt(p Point) (int, bool) {
	if !g.InBounds(p) {
		return 0, false
	}
	o := g.owner[g.cell(p)]
	if o < 0 {
		return 0, false
	}
	return int(o), true
}
