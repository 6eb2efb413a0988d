// Package api holds the Battlesnake engine wire format and its conversion
// into the internal game state. The server and the debug CLI both parse
// the same payloads through this package.
package api

import (
	"github.com/brensch/snekd/game"
)

type InfoResponse struct {
	APIVersion string `json:"apiversion"`
	Author     string `json:"author"`
	Color      string `json:"color"`
	Head       string `json:"head"`
	Tail       string `json:"tail"`
	Version    string `json:"version"`
}

type GameRequest struct {
	Game  Game        `json:"game"`
	Turn  int         `json:"turn"`
	Board Board       `json:"board"`
	You   Battlesnake `json:"you"`
}

type Game struct {
	ID      string  `json:"id"`
	Ruleset Ruleset `json:"ruleset"`
	Map     string  `json:"map"`
	Timeout int     `json:"timeout"`
	Source  string  `json:"source"`
}

type Ruleset struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings RulesetSettings `json:"settings"`
}

type RulesetSettings struct {
	FoodSpawnChance     int `json:"foodSpawnChance"`
	MinimumFood         int `json:"minimumFood"`
	HazardDamagePerTurn int `json:"hazardDamagePerTurn"`
}

type Board struct {
	Height  int           `json:"height"`
	Width   int           `json:"width"`
	Food    []Coord       `json:"food"`
	Hazards []Coord       `json:"hazards"`
	Snakes  []Battlesnake `json:"snakes"`
}

type Battlesnake struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Health         int     `json:"health"`
	Body           []Coord `json:"body"`
	Latency        string  `json:"latency"`
	Head           Coord   `json:"head"`
	Length         int     `json:"length"`
	Shout          string  `json:"shout"`
	Squad          string  `json:"squad"`
	Customizations struct {
		Color string `json:"color"`
		Head  string `json:"head"`
		Tail  string `json:"tail"`
	} `json:"customizations"`
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type MoveResponse struct {
	Move  string `json:"move"`
	Shout string `json:"shout,omitempty"`
}

// GameState converts the request into the internal snapshot the decision
// pipeline runs on. Hazards ride along, the legal move filter and the
// weighted food search both read them.
func (r *GameRequest) GameState() *game.GameState {
	state := &game.GameState{
		Width:  int32(r.Board.Width),
		Height: int32(r.Board.Height),
		YouId:  r.You.ID,
		Turn:   int32(r.Turn),
	}

	state.Food = make([]game.Point, len(r.Board.Food))
	for i, f := range r.Board.Food {
		state.Food[i] = game.Point{X: int32(f.X), Y: int32(f.Y)}
	}

	state.Hazards = make([]game.Point, len(r.Board.Hazards))
	for i, h := range r.Board.Hazards {
		state.Hazards[i] = game.Point{X: int32(h.X), Y: int32(h.Y)}
	}

	state.Snakes = make([]game.Snake, len(r.Board.Snakes))
	for i, s := range r.Board.Snakes {
		snake := game.Snake{
			Id:     s.ID,
			Health: int32(s.Health),
			Body:   make([]game.Point, len(s.Body)),
		}
		for j, b := range s.Body {
			snake.Body[j] = game.Point{X: int32(b.X), Y: int32(b.Y)}
		}
		state.Snakes[i] = snake
	}

	return state
}
