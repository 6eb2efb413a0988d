package main

import (
	"github.com/brensch/snekd/game"
	"github.com/brensch/snekd/rules"
	"github.com/brensch/snekd/scraper/store"
)

// DuckDB scans nested parquet columns into any-typed lists and maps, so
// every struct column goes through these converters.

func zipPoints(xs, ys []int32) []Point {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	out := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Point{X: xs[i], Y: ys[i]})
	}
	return out
}

func asInt32Slice(v any) []int32 {
	if v == nil {
		return nil
	}
	switch vv := v.(type) {
	case []int32:
		return vv
	case []int64:
		out := make([]int32, 0, len(vv))
		for _, x := range vv {
			out = append(out, int32(x))
		}
		return out
	case []any:
		out := make([]int32, 0, len(vv))
		for _, x := range vv {
			out = append(out, int32(asInt64(x)))
		}
		return out
	default:
		return nil
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int32:
		return t != 0
	default:
		return false
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

func asBytes(v any) []byte {
	switch t := v.(type) {
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		return nil
	}
}

func asMapList(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func asEvals(v any) []EvalView {
	maps := asMapList(v)
	evals := make([]EvalView, 0, len(maps))
	for _, m := range maps {
		move := int32(asInt64(m["move"]))
		evals = append(evals, EvalView{
			Move:     move,
			MoveName: moveName(move),
			Head:     Point{X: int32(asInt64(m["head_x"])), Y: int32(asInt64(m["head_y"]))},
			Legal:    asBool(m["legal"]),
			Eats:     asBool(m["eats"]),
			Space:    int32(asInt64(m["space"])),
			FoodCost: int32(asInt64(m["food_cost"])),
			Threat:   int32(asInt64(m["threat"])),
			Score:    asFloat64(m["score"]),
		})
	}
	return evals
}

func asTurnSnakes(v any) []SnakeView {
	maps := asMapList(v)
	snakes := make([]SnakeView, 0, len(maps))
	for _, m := range maps {
		move := int32(asInt64(m["move"]))
		snakes = append(snakes, SnakeView{
			ID:       asString(m["id"]),
			Name:     asString(m["name"]),
			Alive:    asBool(m["alive"]),
			Health:   int32(asInt64(m["health"])),
			Body:     zipPoints(asInt32Slice(m["body_x"]), asInt32Slice(m["body_y"])),
			Move:     move,
			MoveName: moveName(move),
		})
	}
	return snakes
}

// moveName renders a stored move code, tolerating the unknown sentinel.
func moveName(code int32) string {
	if code < 0 || code > int32(rules.MoveRight) {
		return ""
	}
	return rules.Move(code).String()
}

// stateFromRaw rebuilds the engine state from an archived snapshot so the
// current policy can re-decide it.
func stateFromRaw(raw *store.RawState) *game.GameState {
	state := &game.GameState{
		Width:  raw.Width,
		Height: raw.Height,
		Turn:   raw.Turn,
		YouId:  raw.YouID,
	}
	state.Food = rawPointsToGame(raw.Food)
	state.Hazards = rawPointsToGame(raw.Hazards)
	state.Snakes = make([]game.Snake, len(raw.Snakes))
	for i, s := range raw.Snakes {
		state.Snakes[i] = game.Snake{
			Id:     s.ID,
			Health: s.Health,
			Body:   rawPointsToGame(s.Body),
		}
	}
	return state
}

func rawPointsToGame(points []store.RawPoint) []game.Point {
	out := make([]game.Point, len(points))
	for i, p := range points {
		out[i] = game.Point{X: p.X, Y: p.Y}
	}
	return out
}
