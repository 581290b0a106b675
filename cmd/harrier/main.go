// Harrier - Credit risk scoring and fraud assessment for lenders.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/config"
	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/fraud"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/provider"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "harrier: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"simulated_providers", cfg.Providers.Simulated,
	)

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("harrier stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *domain.Config, logger *slog.Logger) error {
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	m := metrics.NewManager()

	ruleEngine, err := rules.NewEngine(logger, 100)
	if err != nil {
		return fmt.Errorf("initialize rule engine: %w", err)
	}
	defer ruleEngine.Close()
	if err := loadRules(ctx, repo, ruleEngine); err != nil {
		return err
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	scoringEngine := scoring.NewEngine(cfg.Scoring,
		scoring.WithCache(cacheImpl),
		scoring.WithRecommender(ruleEngine),
		scoring.WithMetrics(m),
		scoring.WithLogger(logger),
	)

	fraudEngine := fraud.NewEngine(repo, cfg.Fraud,
		fraud.WithBus(busImpl),
		fraud.WithMetrics(m),
		fraud.WithLogger(logger),
	)

	var aggregator *provider.Aggregator
	if cfg.Providers.Simulated {
		aggregator = provider.NewAggregator(cfg.Providers,
			provider.WithBureau(provider.NewSimulatedBureau()),
			provider.WithAlternative(provider.NewSimulatedTelecom()),
			provider.WithMetrics(m),
			provider.WithLogger(logger),
		)
		slog.Warn("simulated providers enabled; bureau data is synthetic")
	}

	responseWorker := worker.NewWorker(busImpl, repo,
		worker.WithMetrics(m),
		worker.WithLogger(logger),
	)
	if err := responseWorker.Start(); err != nil {
		return fmt.Errorf("start fraud response worker: %w", err)
	}

	srv := api.NewServer(cfg.Server, api.Dependencies{
		Repo:      repo,
		Cache:     cacheImpl,
		Bus:       busImpl,
		Rules:     ruleEngine,
		Scoring:   scoringEngine,
		Fraud:     fraudEngine,
		Processor: decision.NewProcessor(m),
		Providers: aggregator,
		Metrics:   m,
		Logger:    logger,
		Version:   Version,
	})

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-serveErr:
		if err != nil {
			responseWorker.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Let in-flight fraud responses reach the bus before the worker goes away.
	fraudEngine.Wait()
	if err := responseWorker.Stop(); err != nil {
		slog.Error("failed to stop fraud response worker", "error", err)
	}

	slog.Info("harrier shutdown complete")
	return nil
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if os.Getenv("HARRIER_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadRules loads the built-in recommendation rules plus any stored via POST /v1/rules.
func loadRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	stored, err := repo.ListRecommendationRules(ctx)
	if err != nil {
		slog.Warn("failed to list stored rules; using built-in rules only", "error", err)
		stored = nil
	}
	if err := engine.ReloadRules(rules.WithDefaults(stored)); err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  HARRIER  credit risk and fraud assessment")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /v1/assessments            - Score and fraud-check an application")
	fmt.Println("    GET  /v1/fraud-assessments/{id} - Get a fraud assessment")
	fmt.Println("    GET  /v1/entities/{id}/cases    - List investigation cases")
	fmt.Println("    GET  /v1/rules                  - List recommendation rules")
	fmt.Println("    POST /v1/rules                  - Create a recommendation rule")
	fmt.Println("    POST /v1/rules/reload           - Hot-reload rules from the database")
	fmt.Println("    GET  /health /ready /metrics")
	fmt.Println()
}
