// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/basketwise/config.yaml",
	"/etc/basketwise/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:                   "/data/basketwise.duckdb",
			MaxMemory:              "1GB",
			Threads:                0,
			PreserveInsertionOrder: true,
			SeedDemoData:           false,
		},
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Recommend: RecommendConfig{
			MinSupport:              0.01,
			MinConfidence:           0.30,
			MinLift:                 1.0,
			MaxItemsetSize:          3,
			MaxCandidates:           200000,
			TransactionLookbackDays: 90,
			FrequencyLookbackDays:   30,
			RuleFreshnessDays:       7,
			RuleFetchLimit:          100,
			RuleMinConfidence:       0.30,
			DefaultLimit:            10,
			MaxLimit:                20,
			FallbackBaseConfidence:  0.30,
			FallbackStepConfidence:  0.05,
			FallbackMaxConfidence:   0.70,
			RegenerationTimeout:     30 * time.Second,
			MiningWorkers:           0,
			PriceLookupConcurrency:  8,
			RuleCacheTTL:            5 * time.Minute,
			RuleCacheCapacity:       1024,
			Generation: GenerationConfig{
				Enabled:             true,
				IntervalHours:       24,
				StartupDelayMinutes: 5,
				ErrorRetryMinutes:   60,
				RunTimeout:          30 * time.Minute,
				RatePerSecond:       0,
			},
		},
		RunState: RunStateConfig{
			Path:     "/data/runstate",
			InMemory: false,
		},
	}
}

// LoadWithKoanf layers defaults, the config file and environment variables,
// then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, else the first existing
// default path, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as strings from env vars.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",
	"seed_demo_data":    "database.seed_demo_data",

	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Mining thresholds
	"apriori_min_support":      "recommend.min_support",
	"apriori_min_confidence":   "recommend.min_confidence",
	"apriori_min_lift":         "recommend.min_lift",
	"apriori_max_itemset_size": "recommend.max_itemset_size",
	"apriori_max_candidates":   "recommend.max_candidates",

	// Prediction assembly
	"recommend_transaction_lookback_days": "recommend.transaction_lookback_days",
	"recommend_frequency_lookback_days":   "recommend.frequency_lookback_days",
	"recommend_rule_freshness_days":       "recommend.rule_freshness_days",
	"recommend_rule_fetch_limit":          "recommend.rule_fetch_limit",
	"recommend_rule_min_confidence":       "recommend.rule_min_confidence",
	"recommend_default_limit":             "recommend.default_limit",
	"recommend_max_limit":                 "recommend.max_limit",
	"recommend_regeneration_timeout":      "recommend.regeneration_timeout",
	"recommend_mining_workers":            "recommend.mining_workers",
	"recommend_price_lookup_concurrency":  "recommend.price_lookup_concurrency",
	"recommend_rule_cache_ttl":            "recommend.rule_cache_ttl",
	"recommend_rule_cache_capacity":       "recommend.rule_cache_capacity",

	// Background generation
	"apriori_generation_enabled":        "recommend.generation.enabled",
	"apriori_generation_interval_hours": "recommend.generation.interval_hours",
	"apriori_startup_delay_minutes":     "recommend.generation.startup_delay_minutes",
	"apriori_error_retry_minutes":       "recommend.generation.error_retry_minutes",
	"apriori_run_timeout":               "recommend.generation.run_timeout",
	"apriori_households_per_second":     "recommend.generation.rate_per_second",

	// Run ledger
	"runstate_path":      "runstate.path",
	"runstate_in_memory": "runstate.in_memory",
}

// envTransformFunc maps an environment variable name to its koanf path:
//   - DUCKDB_PATH -> database.path
//   - APRIORI_STARTUP_DELAY_MINUTES -> recommend.generation.startup_delay_minutes
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
