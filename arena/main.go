// Command arena plays the policy against itself in bulk. Every seat in
// every game runs the same engine, finished games land in the parquet
// archive as both turn rows and decision rows, and a terminal dashboard
// tracks throughput and win rates.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/parquet-go/parquet-go"

	"github.com/brensch/snekd/logging"
	"github.com/brensch/snekd/policy"
	"github.com/brensch/snekd/scraper/store"
)

var totalGames atomic.Int64
var totalDecisions atomic.Int64

type gameWriteRequest struct {
	decisions []store.DecisionRow
	turns     []store.TurnRow
}

func main() {
	outDir := flag.String("out-dir", "data/arena", "Output directory for parquet batches")
	workers := flag.Int("workers", 8, "Number of concurrent games")
	gamesPerFlush := flag.Int("games-per-flush", 50, "Number of games to buffer per parquet flush")
	maxGames := flag.Int64("max-games", 0, "If > 0, stop after playing this many games (across all workers)")
	boardSize := flag.Int("board-size", 11, "Board width and height")
	snakes := flag.Int("snakes", 2, "Snakes per game (2-4)")
	maxTurns := flag.Int("max-turns", 500, "Turn cap per game, reaching it counts as a draw")
	lowHealth := flag.Int("low-health", int(policy.DefaultConfig().LowHealth), "Health threshold below which the policy chases food")
	noTUI := flag.Bool("no-tui", false, "Log progress lines instead of running the dashboard")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "arena.log", "Log destination while the dashboard owns the terminal")
	flag.Parse()

	// Logs would tear up the dashboard, so they go to a file unless the
	// plain loop owns the terminal.
	if *noTUI {
		logging.Setup(os.Stderr, *logLevel, false)
	} else {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logging.Setup(f, *logLevel, false)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	policyCfg := policy.DefaultConfig()
	policyCfg.LowHealth = int32(*lowHealth)
	engine := policy.NewEngine(policyCfg)

	gameCfg := DefaultGameConfig()
	if *boardSize >= 5 {
		gameCfg.BoardSize = int32(*boardSize)
	}
	if *snakes < 2 {
		*snakes = 2
	}
	gameCfg.SnakeCount = *snakes
	gameCfg.MaxTurns = int32(*maxTurns)

	slog.Info("arena starting", "workers", *workers, "board", gameCfg.BoardSize, "snakes", gameCfg.SnakeCount, "out_dir", *outDir)

	updates := make(chan GameUpdate, *workers)
	writeReqs := make(chan gameWriteRequest, (*workers)*4)

	writerDone := make(chan struct{})
	go func() {
		parquetWriterLoop(*outDir, *gamesPerFlush, writeReqs)
		close(writerDone)
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < *workers; i++ {
		workerWG.Add(1)
		go func(workerID int) {
			defer workerWG.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				result, err := playGame(ctx, workerID, engine, gameCfg, func() { totalDecisions.Add(1) })
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					slog.Error("game aborted", "worker", workerID, "error", err)
					continue
				}

				total := totalGames.Add(1)
				if *maxGames > 0 && total >= *maxGames {
					// Cancel the whole run after the target number of games.
					cancel()
				}

				writeReqs <- gameWriteRequest{decisions: result.Decisions, turns: result.TurnRows}

				// Avoid blocking shutdown if the UI loop stops consuming.
				select {
				case updates <- GameUpdate{WorkerID: workerID, Result: result}:
				default:
				}
			}
		}(i)
	}

	if *noTUI {
		runPlainDashboard(ctx, updates)
	} else {
		p := tea.NewProgram(initialModel(updates), tea.WithAltScreen())
		go func() {
			<-ctx.Done()
			p.Quit()
		}()
		if _, err := p.Run(); err != nil {
			slog.Error("dashboard failed", "error", err)
		}
	}

	cancel()
	slog.Info("waiting for workers to finish current games")
	workerWG.Wait()
	close(writeReqs)
	<-writerDone
	slog.Info("arena stopped", "games", totalGames.Load(), "decisions", totalDecisions.Load())
}

// runPlainDashboard is the -no-tui replacement: one line per finished game
// plus a throughput line every second.
func runPlainDashboard(ctx context.Context, updates chan GameUpdate) {
	startTime := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			slog.Info("game finished",
				"worker", update.WorkerID,
				"game_id", update.Result.GameID,
				"winner", winnerLabel(update.Result.WinnerID),
				"turns", update.Result.Turns,
			)
		case <-ticker.C:
			elapsed := time.Since(startTime).Seconds()
			games := totalGames.Load()
			decisions := totalDecisions.Load()
			slog.Info("arena stats",
				"games", games,
				"decisions", decisions,
				"games_per_sec", float64(games)/elapsed,
				"decisions_per_sec", float64(decisions)/elapsed,
			)
		}
	}
}

func parquetWriterLoop(outDir string, gamesPerFlush int, in <-chan gameWriteRequest) {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 50
	}

	pendingDecisions := make([]store.DecisionRow, 0, 256*gamesPerFlush)
	pendingTurns := make([]store.TurnRow, 0, 128*gamesPerFlush)
	pendingGames := 0

	for req := range in {
		if len(req.decisions) == 0 && len(req.turns) == 0 {
			continue
		}
		pendingDecisions = append(pendingDecisions, req.decisions...)
		pendingTurns = append(pendingTurns, req.turns...)
		pendingGames++

		if pendingGames < gamesPerFlush {
			continue
		}

		flushBatches(outDir, pendingGames, pendingDecisions, pendingTurns)
		pendingDecisions = pendingDecisions[:0]
		pendingTurns = pendingTurns[:0]
		pendingGames = 0
	}

	if pendingGames > 0 {
		flushBatches(outDir, pendingGames, pendingDecisions, pendingTurns)
	}
}

func flushBatches(outDir string, games int, decisions []store.DecisionRow, turns []store.TurnRow) {
	if len(decisions) > 0 {
		path, err := store.WriteParquetAtomic(outDir, store.SchemaDecision, decisions, parquet.SkipPageBounds("state"))
		if err != nil {
			slog.Error("decision flush failed", "games", games, "rows", len(decisions), "error", err)
		} else {
			slog.Info("decision flush ok", "path", path, "games", games, "rows", len(decisions))
		}
	}
	if len(turns) > 0 {
		path, err := store.WriteParquetAtomic(outDir, store.SchemaGameTurn, turns)
		if err != nil {
			slog.Error("turn flush failed", "games", games, "rows", len(turns), "error", err)
		} else {
			slog.Info("turn flush ok", "path", path, "games", games, "rows", len(turns))
		}
	}
}
