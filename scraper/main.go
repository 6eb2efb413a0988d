// Package main runs the archive pipeline: leaderboard discovery feeds a
// websocket download pool backed by a SQLite index, then the exporter
// rewrites stored games into parquet turn batches.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/brensch/snekd/logging"
	"github.com/brensch/snekd/scraper/db"
	"github.com/brensch/snekd/scraper/discovery"
	"github.com/brensch/snekd/scraper/downloader"
	"github.com/brensch/snekd/scraper/exporter"
	"github.com/brensch/snekd/scraper/store"
)

func main() {
	dbPath := flag.String("db-path", getEnvOrDefault("SNEKD_SCRAPE_DB", "scraper-data/games.db"), "SQLite index of downloaded games")
	outDir := flag.String("out-dir", getEnvOrDefault("SNEKD_SCRAPE_OUT", "data/scraped"), "Directory for turn parquet batches")
	logPath := flag.String("written-log", getEnvOrDefault("SNEKD_WRITTEN_LOG", "scraper-data/written_games.log"), "Append-only log of game IDs already exported")
	workers := flag.Int("workers", getEnvIntOrDefault("SNEKD_WORKERS", 4), "Concurrent download workers")
	maxPlayers := flag.Int("max-players", getEnvIntOrDefault("SNEKD_MAX_PLAYERS", 50), "Players to crawl per leaderboard")
	requestDelay := flag.Duration("delay", getEnvDurationOrDefault("SNEKD_DELAY", 500*time.Millisecond), "Delay between player page fetches")
	exportGames := flag.Int("export-games", getEnvIntOrDefault("SNEKD_EXPORT_GAMES", 500), "Games per export batch")
	exportOnly := flag.Bool("export-only", getEnvBoolOrDefault("SNEKD_EXPORT_ONLY", false), "Skip crawling, only export pending games")
	logLevel := flag.String("log-level", getEnvOrDefault("SNEKD_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.Parse()

	logging.Setup(os.Stderr, *logLevel, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, dir := range []string{*outDir, filepath.Dir(*dbPath), filepath.Dir(*logPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("failed to create directory", "dir", dir, "err", err)
			os.Exit(1)
		}
	}

	database, err := db.New(*dbPath)
	if err != nil {
		slog.Error("failed to open game index", "path", *dbPath, "err", err)
		os.Exit(1)
	}
	defer database.Close()

	written, err := store.OpenWrittenLog(*logPath)
	if err != nil {
		slog.Error("failed to open written log", "path", *logPath, "err", err)
		os.Exit(1)
	}
	defer written.Close()

	slog.Info("scraper starting",
		"db", *dbPath,
		"out_dir", *outDir,
		"already_exported", written.Count(),
		"export_only", *exportOnly,
	)

	if !*exportOnly {
		crawl(ctx, database, *workers, *maxPlayers, *requestDelay)
	}

	exportAll(ctx, database, written, *outDir, *exportGames)

	if totalGames, exportedGames, totalFrames, err := database.Stats(); err == nil {
		slog.Info("scrape complete",
			"games", totalGames,
			"exported", exportedGames,
			"frames", totalFrames,
		)
	}
}

// crawl runs one discovery pass and downloads every unseen game it finds.
func crawl(ctx context.Context, database *db.DB, workers, maxPlayers int, requestDelay time.Duration) {
	known, err := database.AllGameIDs()
	if err != nil {
		slog.Error("failed to snapshot game index", "err", err)
		os.Exit(1)
	}
	slog.Info("index loaded", "known_games", len(known))

	discCfg := discovery.DefaultConfig()
	discCfg.MaxPlayers = maxPlayers
	discCfg.RequestDelay = requestDelay

	gameIDs := make(chan string, 1000)
	go func() {
		defer close(gameIDs)
		if err := discovery.NewWorker(discCfg, known).Discover(ctx, gameIDs); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("discovery stopped", "err", err)
		}
	}()

	dlCfg := downloader.DefaultConfig()
	dlCfg.NumWorkers = workers
	pool := downloader.NewWorker(dlCfg, database)
	pool.Run(ctx, gameIDs)

	stats := pool.Stats()
	slog.Info("download phase complete",
		"downloaded", stats.Downloaded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"frames", stats.Frames,
	)
}

// exportAll drains pending games in batches until nothing is left or the
// context ends. Games that repeatedly fail to convert stay pending and
// are retried on the next run.
func exportAll(ctx context.Context, database *db.DB, written *store.WrittenLog, outDir string, batchGames int) {
	exp := exporter.New(database, written, outDir)
	for ctx.Err() == nil {
		path, games, err := exp.ExportBatch(batchGames)
		if err != nil {
			slog.Error("export batch failed", "err", err)
			return
		}
		if path == "" && games == 0 {
			return
		}
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
