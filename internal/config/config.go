// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

// Package config loads Basketwise configuration with Koanf v2.
//
// Loading order (later layers win):
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/basketwise/config.yaml)
//  3. Environment variables mapped through envMappings
//
// The resulting Config is validated once and treated as immutable afterwards.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
	Recommend RecommendConfig `koanf:"recommend"`
	RunState  RunStateConfig  `koanf:"runstate"`
}

// DatabaseConfig configures the DuckDB store holding shopping history,
// the price catalog and mined association rules.
//
// Environment Variables:
//   - DUCKDB_PATH: database file (default: /data/basketwise.duckdb)
//   - DUCKDB_MAX_MEMORY: DuckDB memory limit (default: 1GB)
//   - DUCKDB_THREADS: worker threads, 0 = NumCPU
//   - SEED_DEMO_DATA: insert a demo household on startup (default: false)
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
	SeedDemoData           bool   `koanf:"seed_demo_data"`
	SkipIndexes            bool   `koanf:"skip_indexes"` // Fast test setup
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// SecurityConfig holds the HTTP edge protections. Authentication is handled
// by the surrounding application.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// RecommendConfig configures association rule mining and prediction assembly.
//
// Mining thresholds apply to every scope (household and global). Lookbacks are
// expressed in days to match how households think about shopping history.
//
// Environment Variables:
//   - APRIORI_MIN_SUPPORT (default: 0.01)
//   - APRIORI_MIN_CONFIDENCE (default: 0.30)
//   - APRIORI_MIN_LIFT (default: 1.0)
//   - APRIORI_MAX_ITEMSET_SIZE (default: 3)
//   - RECOMMEND_TRANSACTION_LOOKBACK_DAYS (default: 90)
//   - RECOMMEND_FREQUENCY_LOOKBACK_DAYS (default: 30)
//   - RECOMMEND_RULE_FRESHNESS_DAYS (default: 7)
//   - RECOMMEND_DEFAULT_LIMIT (default: 10), RECOMMEND_MAX_LIMIT (default: 20)
//   - RECOMMEND_REGENERATION_TIMEOUT (default: 30s)
//   - RECOMMEND_MINING_WORKERS (default: 0 = NumCPU)
//   - RECOMMEND_PRICE_LOOKUP_CONCURRENCY (default: 8)
type RecommendConfig struct {
	MinSupport     float64 `koanf:"min_support"`
	MinConfidence  float64 `koanf:"min_confidence"`
	MinLift        float64 `koanf:"min_lift"`
	MaxItemsetSize int     `koanf:"max_itemset_size"`
	MaxCandidates  int     `koanf:"max_candidates"`

	TransactionLookbackDays int `koanf:"transaction_lookback_days"`
	FrequencyLookbackDays   int `koanf:"frequency_lookback_days"`
	RuleFreshnessDays       int `koanf:"rule_freshness_days"`

	RuleFetchLimit    int     `koanf:"rule_fetch_limit"`
	RuleMinConfidence float64 `koanf:"rule_min_confidence"`

	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`

	FallbackBaseConfidence float64 `koanf:"fallback_base_confidence"`
	FallbackStepConfidence float64 `koanf:"fallback_step_confidence"`
	FallbackMaxConfidence  float64 `koanf:"fallback_max_confidence"`

	RegenerationTimeout    time.Duration `koanf:"regeneration_timeout"`
	MiningWorkers          int           `koanf:"mining_workers"`
	PriceLookupConcurrency int           `koanf:"price_lookup_concurrency"`

	RuleCacheTTL      time.Duration `koanf:"rule_cache_ttl"`
	RuleCacheCapacity int           `koanf:"rule_cache_capacity"`

	Generation GenerationConfig `koanf:"generation"`
}

// GenerationConfig schedules the background rule regeneration job.
//
// Environment Variables:
//   - APRIORI_GENERATION_ENABLED (default: true)
//   - APRIORI_GENERATION_INTERVAL_HOURS (default: 24)
//   - APRIORI_STARTUP_DELAY_MINUTES (default: 5)
//   - APRIORI_ERROR_RETRY_MINUTES (default: 60)
//   - APRIORI_RUN_TIMEOUT (default: 30m)
//   - APRIORI_HOUSEHOLDS_PER_SECOND (default: 0 = unlimited)
type GenerationConfig struct {
	Enabled             bool          `koanf:"enabled"`
	IntervalHours       int           `koanf:"interval_hours"`
	StartupDelayMinutes int           `koanf:"startup_delay_minutes"`
	ErrorRetryMinutes   int           `koanf:"error_retry_minutes"`
	RunTimeout          time.Duration `koanf:"run_timeout"`
	RatePerSecond       float64       `koanf:"rate_per_second"`
}

// Interval returns the time between successful runs.
func (g GenerationConfig) Interval() time.Duration {
	return time.Duration(g.IntervalHours) * time.Hour
}

// StartupDelay returns the wait before the first run.
func (g GenerationConfig) StartupDelay() time.Duration {
	return time.Duration(g.StartupDelayMinutes) * time.Minute
}

// ErrorRetry returns the wait after a failed run.
func (g GenerationConfig) ErrorRetry() time.Duration {
	return time.Duration(g.ErrorRetryMinutes) * time.Minute
}

// RunStateConfig configures the BadgerDB ledger of generation runs.
//
// Environment Variables:
//   - RUNSTATE_PATH: badger directory (default: /data/runstate)
//   - RUNSTATE_IN_MEMORY: keep the ledger in memory only (default: false)
type RunStateConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// Load reads configuration from defaults, an optional config file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
