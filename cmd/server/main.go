// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/basketwise/internal/api"
	"github.com/tomtom215/basketwise/internal/config"
	"github.com/tomtom215/basketwise/internal/database"
	"github.com/tomtom215/basketwise/internal/events"
	"github.com/tomtom215/basketwise/internal/logging"
	"github.com/tomtom215/basketwise/internal/runstate"
	"github.com/tomtom215/basketwise/internal/supervisor"
	"github.com/tomtom215/basketwise/internal/supervisor/services"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "basketwise",
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("runstate_path", cfg.RunState.Path).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Basketwise with supervisor tree")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	if cfg.Database.SeedDemoData {
		logging.Info().Msg("Demo data seeding enabled (SEED_DEMO_DATA=true)")
		if err := db.SeedDemoData(context.Background()); err != nil {
			// Close database before fatal exit to ensure defer runs
			if closeErr := db.Close(); closeErr != nil {
				logging.Error().Err(closeErr).Msg("Error closing database")
			}
			logging.Fatal().Err(err).Msg("Failed to seed demo data")
		}
	}

	ledger, err := runstate.Open(runstate.Config{
		Path:     cfg.RunState.Path,
		InMemory: cfg.RunState.InMemory,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open run ledger")
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing run ledger")
		}
	}()

	// Create structured logger for supervisor and watermill using our slog adapter
	slogLogger := logging.NewSlogLogger()

	bus, err := events.NewBus(events.DefaultConfig(), slogLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()
	db.SetRulesPublisher(bus)

	engine, err := initEngine(cfg, db, logging.WithComponent("engine"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create prediction engine")
	}
	bus.OnRulesReplaced("rule-cache-invalidation", invalidateOnReplace(engine))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddMessagingService(services.NewEventBusService(bus))

	var generation *services.RuleGenerationService
	if cfg.Recommend.Generation.Enabled {
		generation = services.NewRuleGenerationService(engine, db, ledger,
			buildGenerationConfig(cfg), logging.WithComponent("generation"))
		tree.AddDataService(generation)
		logging.Info().
			Int("interval_hours", cfg.Recommend.Generation.IntervalHours).
			Int("startup_delay_minutes", cfg.Recommend.Generation.StartupDelayMinutes).
			Msg("Rule generation service added to supervisor tree")
	} else {
		logging.Info().Msg("Scheduled rule generation disabled (APRIORI_GENERATION_ENABLED=false)")
	}

	deps := api.HandlerDeps{
		Engine:         engine,
		Lists:          db,
		Runs:           ledger,
		Generator:      engine,
		DB:             db,
		RequestTimeout: cfg.Server.Timeout,

		GenerationTimeout: cfg.Recommend.RegenerationTimeout,
	}
	// A nil *RuleGenerationService must not become a non-nil interface.
	if generation != nil {
		deps.Runner = generation
	}
	handler := api.NewHandler(deps)

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Security.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Security.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Security.RateLimitDisabled
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, api.NewChiMiddleware(mwCfg)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout + cfg.Recommend.Generation.RunTimeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout,
		logging.WithComponent("http")))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
