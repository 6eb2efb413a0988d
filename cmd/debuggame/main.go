// Command debuggame replays a single /move request through the policy and
// prints what the engine saw: the board, the per-direction evaluation
// table, and the move it would answer. Point it at a request body captured
// from the server logs or the engine's game export.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/brensch/snekd/api"
	"github.com/brensch/snekd/game"
	"github.com/brensch/snekd/policy"
	"github.com/brensch/snekd/rules"
)

func main() {
	timeout := flag.Duration("timeout", 500*time.Millisecond, "Compute budget for the decision")
	lowHealth := flag.Int("low-health", int(policy.DefaultConfig().LowHealth), "Health threshold below which the policy chases food")
	flag.Parse()

	path := flag.Arg(0)
	if path == "" {
		fmt.Fprintln(os.Stderr, "usage: debuggame [flags] <move-request.json | ->")
		os.Exit(2)
	}

	body, err := readRequest(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read request: %v\n", err)
		os.Exit(1)
	}

	var req api.GameRequest
	if err := json.Unmarshal(body, &req); err != nil {
		fmt.Fprintf(os.Stderr, "parse request: %v\n", err)
		os.Exit(1)
	}

	state := req.GameState()

	cfg := policy.DefaultConfig()
	cfg.LowHealth = int32(*lowHealth)
	engine := policy.NewEngine(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	move, evals, err := engine.Decide(ctx, state)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decide: %v (answering %s)\n", err, move.String())
	}

	header := fmt.Sprintf("game %s turn %d (you %s", req.Game.ID, state.Turn, state.YouId)
	if you, ok := state.You(); ok {
		header += fmt.Sprintf(", health %d, length %d", you.Health, len(you.Body))
	}
	fmt.Printf("%s)\n\n", header)
	fmt.Print(renderBoard(state))
	fmt.Println()
	fmt.Print(renderEvals(evals, move))
	fmt.Printf("\ndecided: %s in %s\n", move.String(), elapsed.Round(time.Microsecond))
}

func readRequest(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// renderBoard draws the state top row first: O/o is the own snake, S/s the
// rivals, F food, x hazard.
func renderBoard(state *game.GameState) string {
	cells := make([][]string, state.Height)
	for y := range cells {
		cells[y] = make([]string, state.Width)
		for x := range cells[y] {
			cells[y][x] = "."
		}
	}

	for _, p := range state.Hazards {
		if state.InBounds(p) {
			cells[p.Y][p.X] = "x"
		}
	}
	for _, p := range state.Food {
		if state.InBounds(p) {
			cells[p.Y][p.X] = "F"
		}
	}
	for _, s := range state.Snakes {
		body, head := "s", "S"
		if s.Id == state.YouId {
			body, head = "o", "O"
		}
		for i, p := range s.Body {
			if !state.InBounds(p) {
				continue
			}
			if i == 0 {
				cells[p.Y][p.X] = head
			} else {
				cells[p.Y][p.X] = body
			}
		}
	}

	var sb strings.Builder
	for y := state.Height - 1; y >= 0; y-- {
		sb.WriteString(strings.Join(cells[y], " "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderEvals(evals []policy.Evaluation, chosen rules.Move) string {
	var sb strings.Builder
	sb.WriteString("move   legal  eats  space  food  threat  score\n")
	for _, ev := range evals {
		food := "-"
		if ev.FoodFound {
			food = fmt.Sprintf("%d", ev.FoodCost)
		}
		mark := ""
		if ev.Move == chosen {
			mark = " *"
		}
		sb.WriteString(fmt.Sprintf("%-6s %-6s %-5s %5d  %4s  %-6s %7.2f%s\n",
			ev.Move.String(),
			yesNo(ev.Legal),
			yesNo(ev.Eats),
			ev.Space,
			food,
			threatLabel(ev.Threat),
			ev.Score,
			mark,
		))
	}
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func threatLabel(t rules.HeadThreat) string {
	switch t {
	case rules.ThreatEqual:
		return "equal"
	case rules.ThreatLonger:
		return "longer"
	default:
		return "none"
	}
}
