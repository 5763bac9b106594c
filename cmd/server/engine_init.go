// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketwise/internal/config"
	"github.com/tomtom215/basketwise/internal/database"
	"github.com/tomtom215/basketwise/internal/events"
	"github.com/tomtom215/basketwise/internal/recommend"
	"github.com/tomtom215/basketwise/internal/recommend/algorithms"
	"github.com/tomtom215/basketwise/internal/supervisor/services"
)

const day = 24 * time.Hour

// buildEngineConfig maps application configuration onto the engine.
func buildEngineConfig(cfg *config.Config) *recommend.Config {
	rc := cfg.Recommend
	return &recommend.Config{
		Mining: recommend.MiningConfig{
			MinSupport:     rc.MinSupport,
			MinConfidence:  rc.MinConfidence,
			MinLift:        rc.MinLift,
			MaxItemsetSize: rc.MaxItemsetSize,
			MaxCandidates:  rc.MaxCandidates,
		},
		Lookbacks: recommend.LookbackConfig{
			Transactions:     time.Duration(rc.TransactionLookbackDays) * day,
			Frequency:        time.Duration(rc.FrequencyLookbackDays) * day,
			ActiveHouseholds: time.Duration(rc.TransactionLookbackDays) * day,
		},
		Rules: recommend.RulesConfig{
			FreshnessWindow: time.Duration(rc.RuleFreshnessDays) * day,
			MinConfidence:   rc.RuleMinConfidence,
			FetchLimit:      rc.RuleFetchLimit,
		},
		Limits: recommend.LimitsConfig{
			DefaultLimit: rc.DefaultLimit,
			MaxLimit:     rc.MaxLimit,
		},
		Fallback: recommend.FallbackConfig{
			BaseConfidence: rc.FallbackBaseConfidence,
			StepConfidence: rc.FallbackStepConfidence,
			MaxConfidence:  rc.FallbackMaxConfidence,
		},
		Generation: recommend.GenerationConfig{
			RegenerationTimeout: rc.RegenerationTimeout,
			MiningWorkers:       rc.MiningWorkers,
			HouseholdsPerSecond: rc.Generation.RatePerSecond,
		},
		Enrichment: recommend.EnrichmentConfig{
			Concurrency: rc.PriceLookupConcurrency,
		},
		Cache: recommend.CacheConfig{
			Enabled:    rc.RuleCacheTTL > 0,
			TTL:        rc.RuleCacheTTL,
			MaxEntries: rc.RuleCacheCapacity,
		},
	}
}

// buildGenerationConfig maps the scheduled job configuration.
func buildGenerationConfig(cfg *config.Config) services.RuleGenerationConfig {
	gen := cfg.Recommend.Generation
	return services.RuleGenerationConfig{
		StartupDelay:    gen.StartupDelay(),
		Interval:        gen.Interval(),
		ErrorRetry:      gen.ErrorRetry(),
		RunTimeout:      gen.RunTimeout,
		FreshnessWindow: time.Duration(cfg.Recommend.RuleFreshnessDays) * day,
	}
}

// initEngine builds the prediction engine on top of the database. Price
// lookups go through a circuit breaker so a slow catalog degrades to
// unpriced predictions.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func initEngine(cfg *config.Config, db *database.DB, logger zerolog.Logger) (*recommend.Engine, error) {
	engineCfg := buildEngineConfig(cfg)
	prices := recommend.NewBreakerPriceRepository(db, recommend.DefaultBreakerSettings(), logger)

	return recommend.NewEngine(engineCfg, recommend.Dependencies{
		History:    db,
		Catalog:    db,
		Prices:     prices,
		Households: db,
		Lists:      db,
		Rules:      db,
		Miner:      algorithms.NewApriori(engineCfg.Mining),
	}, logger)
}

// ruleInvalidator drops cached rules for a scope.
type ruleInvalidator interface {
	InvalidateRules(scope recommend.Scope) int
}

// invalidateOnReplace returns the bus handler that keeps the engine's rule
// cache in step with committed replacements.
func invalidateOnReplace(engine ruleInvalidator) func(ctx context.Context, evt events.RulesReplaced) error {
	return func(_ context.Context, evt events.RulesReplaced) error {
		scope := recommend.GlobalScope
		if !evt.IsGlobal() {
			scope = recommend.HouseholdScope(*evt.HouseholdID)
		}
		engine.InvalidateRules(scope)
		return nil
	}
}
