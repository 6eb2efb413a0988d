// Command viewer serves the parquet archives over HTTP: game listings,
// per-turn decision breakdowns, scraped game replays, and a redecide
// endpoint that runs the current policy against archived board states.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/snekd/logging"
	"github.com/brensch/snekd/policy"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", getEnvOrDefault("SNEKD_VIEWER_LISTEN", "127.0.0.1:8090"), "HTTP listen address")
	dataDirs := fs.String("data-dirs", getEnvOrDefault("SNEKD_VIEWER_DATA", "data/live,data/scraped,data/arena"), "Comma-separated directories containing parquet batches")
	refresh := fs.Duration("refresh", getEnvDurationOrDefault("SNEKD_VIEWER_REFRESH", 30*time.Second), "How long to serve from the current view of the archives before rescanning")
	redecideTimeout := fs.Duration("redecide-timeout", 500*time.Millisecond, "Compute budget for the redecide endpoint")
	lowHealth := fs.Int("low-health", getEnvIntOrDefault("SNEKD_LOW_HEALTH", int(policy.DefaultConfig().LowHealth)), "Health threshold below which redecide chases food")
	logLevel := fs.String("log-level", getEnvOrDefault("SNEKD_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logSource := fs.Bool("log-source", false, "Include source positions in log lines")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logging.Setup(os.Stderr, *logLevel, *logSource)

	roots := parseDataRoots(*dataDirs)
	if len(roots) == 0 {
		slog.Error("no data directories configured")
		os.Exit(1)
	}
	slog.Info("viewer starting", "listen", *listen, "roots", strings.Join(roots, ","))

	cache := NewDBCache(roots, *refresh)
	defer cache.Close()
	if err := cache.Refresh(); err != nil {
		// Roots may not exist until the first batch flushes. Serve anyway
		// and let Get retry on demand.
		slog.Warn("initial archive scan failed", "error", err)
	}

	cfg := policy.DefaultConfig()
	cfg.LowHealth = int32(*lowHealth)
	engine := policy.NewEngine(cfg)

	server := NewServer(cache, engine, *redecideTimeout)
	srv := &http.Server{
		Addr:              *listen,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("shutdown signal received")
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

func parseDataRoots(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
