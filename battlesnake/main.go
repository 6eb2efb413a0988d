// Package main serves the Battlesnake HTTP API backed by the flood fill
// policy engine. Every inbound state is evaluated within the engine's
// advertised timeout and the decision, along with its per-direction
// evaluations, can be archived to parquet for later inspection.
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
	"syscall"
	"time"

	"github.com/brensch/snekd/api"
	"github.com/brensch/snekd/logging"
	"github.com/brensch/snekd/policy"
)

const version = "1.2.0"

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	listen := fs.String("listen", getEnvOrDefault("SNEKD_LISTEN", ":8080"), "HTTP listen address")
	moveTimeout := fs.Duration("move-timeout", getEnvDurationOrDefault("SNEKD_MOVE_TIMEOUT", 500*time.Millisecond), "Fallback per-move timeout when the request does not advertise one")
	lowHealth := fs.Int("low-health", getEnvIntOrDefault("SNEKD_LOW_HEALTH", int(policy.DefaultConfig().LowHealth)), "Health threshold below which food seeking activates")
	archiveDir := fs.String("archive-dir", getEnvOrDefault("SNEKD_ARCHIVE_DIR", ""), "Directory for decision parquet batches (empty disables archiving)")
	archiveFlushRows := fs.Int("archive-flush-rows", getEnvIntOrDefault("SNEKD_ARCHIVE_FLUSH_ROWS", 512), "Decision rows to buffer per parquet flush")
	logLevel := fs.String("log-level", getEnvOrDefault("SNEKD_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	logSource := fs.Bool("log-source", getEnvBoolOrDefault("SNEKD_LOG_SOURCE", false), "Include source locations in log output")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logging.Setup(os.Stderr, *logLevel, *logSource)

	cfg := policy.DefaultConfig()
	cfg.LowHealth = int32(*lowHealth)
	engine := policy.NewEngine(cfg)

	var arch *archiver
	if *archiveDir != "" {
		if err := os.MkdirAll(*archiveDir, 0o755); err != nil {
			slog.Error("failed to create archive directory", "dir", *archiveDir, "err", err)
			os.Exit(1)
		}
		arch = newArchiver(*archiveDir, *archiveFlushRows)
		go arch.run()
	}

	info := api.InfoResponse{
		APIVersion: "1",
		Author:     "snekd",
		Color:      "#0f9177",
		Head:       "beluga",
		Tail:       "curled",
		Version:    version,
	}
	server := NewServer(engine, info, *moveTimeout, arch)

	srv := &http.Server{
		Addr:              *listen,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("battlesnake server listening",
			"addr", *listen,
			"move_timeout", moveTimeout.String(),
			"low_health", *lowHealth,
			"archiving", *archiveDir != "",
		)
		errChan <- srv.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "err", err)
	}
	if arch != nil {
		arch.close()
	}
	slog.Info("server stopped")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
