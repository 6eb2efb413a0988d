// Package policy turns one board snapshot into one move. It is a single-ply
// greedy evaluator: every candidate move is scored on the space reachable
// from its hypothetical head position, with a food bonus when health runs
// low and a penalty for stepping into a losing head-to-head. No game tree
// is searched, the multi-cell lookahead lives entirely in the BFS signals.
package policy

import (
	"context"

	"github.com/brensch/snekd/game"
	"github.com/brensch/snekd/rules"
	"github.com/brensch/snekd/search"
)

// Config holds the scoring weights.
type Config struct {
	// SpaceWeight scales the reachable cell count, the dominant term.
	SpaceWeight float64
	// FoodWeight caps the food-proximity bonus paid out below LowHealth.
	FoodWeight float64
	// LowHealth is the health below which food distance starts to matter.
	LowHealth int32
	// EqualHeadPenalty discourages cells an equal-length rival head can
	// also enter. Both snakes die in that exchange, so it is worth a few
	// cells of space to step elsewhere, but not worth cornering ourselves.
	EqualHeadPenalty float64
}

func DefaultConfig() Config {
	return Config{
		SpaceWeight:      1.0,
		FoodWeight:       8.0,
		LowHealth:        30,
		EqualHeadPenalty: 3.0,
	}
}

// Evaluation records how one candidate move scored. One is produced per
// direction per turn and discarded after the decision, the archive keeps a
// flattened copy.
type Evaluation struct {
	Move      rules.Move
	Head      game.Point
	Legal     bool
	Eats      bool
	Space     int
	FoodCost  int32
	FoodFound bool
	Threat    rules.HeadThreat
	Score     float64
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Decide evaluates all four moves against state and returns the best one.
// The error is game.ErrMalformedState for an unusable payload (the returned
// move is still safe to answer with), or the context error if the deadline
// cut the evaluation short, in which case the move is the best found so far.
func (e *Engine) Decide(ctx context.Context, state *game.GameState) (rules.Move, []Evaluation, error) {
	if err := state.Validate(); err != nil {
		return rules.MoveUp, nil, err
	}

	grid := game.BuildGrid(state)
	you, _ := state.You()

	legal := rules.LegalMoves(state, grid)
	legalSet := map[rules.Move]bool{}
	for _, m := range legal {
		legalSet[m] = true
	}

	// With nothing legal every direction is fatal, so all four compete on
	// raw reachable space to pick the one that survives longest.
	bestMove := rules.MoveUp
	if len(legal) > 0 {
		bestMove = legal[0]
	}

	evals := make([]Evaluation, 0, len(rules.AllMoves))
	haveBest := false
	bestScore := 0.0
	for _, m := range rules.AllMoves {
		select {
		case <-ctx.Done():
			return bestMove, evals, ctx.Err()
		default:
		}

		ev := e.evaluate(state, grid, you, m, legalSet[m])
		evals = append(evals, ev)

		if len(legal) > 0 && !ev.Legal {
			continue
		}
		if !haveBest || ev.Score > bestScore {
			haveBest = true
			bestScore = ev.Score
			bestMove = ev.Move
		}
	}

	return bestMove, evals, nil
}

func (e *Engine) evaluate(state *game.GameState, grid *game.Grid, you *game.Snake, m rules.Move, legal bool) Evaluation {
	head := m.Apply(you.Head())
	eats := grid.HasFood(head)

	ev := Evaluation{
		Move:  m,
		Head:  head,
		Legal: legal,
		Eats:  eats,
		Space: search.ReachableSpace(state, grid, head, eats, 0),
	}
	ev.FoodCost, ev.FoodFound = search.FoodWithinBudget(state, grid, head, eats, you.Health)
	ev.Threat = rules.HeadThreatAt(state, grid, head, you.Length())
	ev.Score = e.score(state, you, ev)
	return ev
}

// score combines the signals. Space dominates. Illegal candidates keep the
// bare space term so the boxed-in ranking stays purely space driven.
func (e *Engine) score(state *game.GameState, you *game.Snake, ev Evaluation) float64 {
	s := e.cfg.SpaceWeight * float64(ev.Space)
	if !ev.Legal {
		return s
	}

	if ev.FoodFound && you.Health < e.cfg.LowHealth {
		urgency := float64(e.cfg.LowHealth-you.Health) / float64(e.cfg.LowHealth)
		proximity := 1 - float64(ev.FoodCost)/float64(state.Width+state.Height)
		if proximity < 0 {
			proximity = 0
		}
		s += e.cfg.FoodWeight * urgency * proximity
	}

	switch ev.Threat {
	case rules.ThreatLonger:
		// Bigger than any achievable space score, so a lost head-to-head
		// ranks below every clean alternative no matter the geometry.
		s -= e.cfg.SpaceWeight*float64(state.Width*state.Height) + e.cfg.FoodWeight + 1
	case rules.ThreatEqual:
		s -= e.cfg.EqualHeadPenalty
	}
	return s
}
