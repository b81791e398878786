// Harrier - AML detection engine for retail transaction populations.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opensource-finance/harrier/internal/analysis"
	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/behavior"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/model"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Behavioral Engine
	engine, err := behavior.NewEngine(cfg.Scoring.MaxWorkers)
	if err != nil {
		slog.Error("failed to initialize behavioral engine", "error", err)
		os.Exit(1)
	}
	if err := loadRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load behavioral rules", "error", err)
		os.Exit(1)
	}
	slog.Info("behavioral engine initialized", "rules_count", engine.RulesCount())

	// Initialize model Scorer. The bus scorer talks to an external
	// model service; without one the engine degrades to partial scores.
	var scorer domain.Scorer
	switch mode := os.Getenv("HARRIER_MODEL"); mode {
	case "bus":
		scorer = model.NewBusScorer(busImpl)
		slog.Info("model scorer initialized", "mode", mode)
	case "heuristic":
		scorer = &model.HeuristicScorer{LargeAmount: cfg.Scoring.LargeAmountThreshold}
		slog.Info("model scorer initialized", "mode", mode)
	default:
		scorer = nil
		slog.Info("no model scorer configured, running rule-based only")
	}

	// Initialize analysis Pipeline
	pipeline := analysis.NewPipeline(cfg, engine, scorer, repo)
	slog.Info("analysis pipeline initialized")

	// Initialize async Worker
	asyncWorker := worker.NewWorker(busImpl, repo, pipeline)
	if err := asyncWorker.Start(); err != nil {
		slog.Error("failed to start analysis worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, pipeline, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the worker first so in-flight passes finish
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop analysis worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

// loadConfig builds the configuration from defaults plus environment
// overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()

	if v := os.Getenv("HARRIER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HARRIER_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("HARRIER_DB_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("HARRIER_PG_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("HARRIER_CACHE"); v != "" {
		cfg.Cache.Type = v
	}
	if v := os.Getenv("HARRIER_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("HARRIER_BUS"); v != "" {
		cfg.EventBus.Type = v
	}
	if v := os.Getenv("HARRIER_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("HARRIER_TIMEZONE"); v != "" {
		cfg.Structuring.BoundaryTimezone = v
	}

	return cfg
}

// loadRules seeds the engine with the builtin rule set, then layers
// database-configured rules on top.
func loadRules(ctx context.Context, repo domain.Repository, engine *behavior.Engine) error {
	if err := engine.LoadRules(behavior.BuiltinRules()); err != nil {
		return err
	}

	dbRules, err := repo.ListBehaviorRules(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               HARRIER                     ║")
	fmt.Println("  ║        AML Detection Engine               ║")
	fmt.Println("  ║     Low flight over every ledger.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /analysis/run            - Run an analysis pass")
	fmt.Println("    POST /customers               - Ingest a customer")
	fmt.Println("    POST /accounts                - Ingest an account")
	fmt.Println("    POST /transactions            - Ingest a transaction")
	fmt.Println("    GET  /customers/{id}/score    - Latest risk score")
	fmt.Println("    GET  /clusters?window=        - Detected clusters")
	fmt.Println("    GET  /alerts?window=          - Open alerts")
	fmt.Println("    POST /alerts/{id}/assign      - Assign an alert")
	fmt.Println("    POST /alerts/{id}/resolve     - Close an alert")
	fmt.Println("    GET  /rules                   - List behavioral rules")
	fmt.Println("    POST /rules                   - Create a behavioral rule")
	fmt.Println("    POST /rules/reload            - Hot-reload rules")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println()
}
