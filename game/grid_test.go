package game

import "testing"

func TestBuildGridMarksCells(t *testing.T) {
	s := &GameState{
		Width:  5,
		Height: 5,
		YouId:  "me",
		Snakes: []Snake{
			{Id: "me", Health: 100, Body: []Point{{X: 2, Y: 2}, {X: 2, Y: 1}, {X: 2, Y: 0}}},
			{Id: "rival", Health: 100, Body: []Point{{X: 4, Y: 4}, {X: 3, Y: 4}}},
		},
		Food:    []Point{{X: 0, Y: 4}, {X: 2, Y: 2}},
		Hazards: []Point{{X: 4, Y: 0}},
	}
	g := BuildGrid(s)

	if !g.HasFood(Point{X: 0, Y: 4}) {
		t.Fatal("food at (0,4) not indexed")
	}
	if !g.HasHazard(Point{X: 4, Y: 0}) {
		t.Fatal("hazard at (4,0) not indexed")
	}
	if !g.Blocked(Point{X: 2, Y: 1}) {
		t.Fatal("own body at (2,1) should block")
	}
	if !g.Blocked(Point{X: 3, Y: 4}) {
		t.Fatal("rival body at (3,4) should block")
	}
	if g.Blocked(Point{X: 0, Y: 0}) {
		t.Fatal("empty cell (0,0) should not block")
	}

	// Head, tail and ownership flags.
	if !g.HeadAt(Point{X: 2, Y: 2}) || !g.OwnAt(Point{X: 2, Y: 2}) {
		t.Fatal("own head flags missing at (2,2)")
	}
	if !g.TailAt(Point{X: 2, Y: 0}) {
		t.Fatal("tail flag missing at (2,0)")
	}
	if g.OwnAt(Point{X: 4, Y: 4}) {
		t.Fatal("rival head flagged as own")
	}

	// Food under the head coexists with the body flag.
	if !g.HasFood(Point{X: 2, Y: 2}) || !g.Blocked(Point{X: 2, Y: 2}) {
		t.Fatal("stacked food+body flags lost at (2,2)")
	}
}

func TestGridOwnerLookup(t *testing.T) {
	s := &GameState{
		Width:  3,
		Height: 3,
		YouId:  "a",
		Snakes: []Snake{
			{Id: "a", Health: 100, Body: []Point{{X: 0, Y: 0}}},
			{Id: "b", Health: 100, Body: []Point{{X: 2, Y: 2}, {X: 2, Y: 1}}},
		},
	}
	g := BuildGrid(s)

	i, ok := g.SnakeIndexAt(Point{X: 2, Y: 1})
	if !ok || s.Snakes[i].Id != "b" {
		t.Fatalf("expected snake b at (2,1), got index %d ok=%v", i, ok)
	}
	if _, ok := g.SnakeIndexAt(Point{X: 1, Y: 1}); ok {
		t.Fatal("expected no owner at (1,1)")
	}
	if _, ok := g.SnakeIndexAt(Point{X: -1, Y: 0}); ok {
		t.Fatal("expected no owner off-board")
	}
}

func TestGridSkipsDeadSnakes(t *testing.T) {
	s := &GameState{
		Width:  3,
		Height: 3,
		YouId:  "a",
		Snakes: []Snake{
			{Id: "a", Health: 100, Body: []Point{{X: 0, Y: 0}}},
			{Id: "dead", Health: 0, Body: []Point{{X: 1, Y: 1}}},
		},
	}
	g := BuildGrid(s)

	if g.Blocked(Point{X: 1, Y: 1}) {
		t.Fatal("dead snake body should not block")
	}
}

func TestGridBoundsQueries(t *testing.T) {
	g := BuildGrid(&GameState{Width: 2, Height: 2, YouId: "a",
		Snakes: []Snake{{Id: "a", Health: 100, Body: []Point{{X: 0, Y: 0}}}}})

	for _, p := range []Point{{X: -1, Y: 0}, {X: 0, Y: -1}, {X: 2, Y: 0}, {X: 0, Y: 2}} {
		if !g.Blocked(p) {
			t.Fatalf("off-board %+v should report blocked", p)
		}
		if g.HasFood(p) || g.HasHazard(p) || g.HeadAt(p) {
			t.Fatalf("off-board %+v should report empty flags", p)
		}
	}
}
