// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package config

import (
	"fmt"
	"time"
)

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateRateLimits(); err != nil {
		return err
	}

	if err := c.validateRecommend(); err != nil {
		return err
	}

	if err := c.validateGeneration(); err != nil {
		return err
	}

	if err := c.validateRunState(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateRecommend checks mining thresholds and prediction limits.
func (c *Config) validateRecommend() error {
	r := c.Recommend

	if err := validateFraction("APRIORI_MIN_SUPPORT", r.MinSupport); err != nil {
		return err
	}
	if err := validateFraction("APRIORI_MIN_CONFIDENCE", r.MinConfidence); err != nil {
		return err
	}
	if err := validateFraction("RECOMMEND_RULE_MIN_CONFIDENCE", r.RuleMinConfidence); err != nil {
		return err
	}
	if r.MinSupport == 0 {
		return fmt.Errorf("APRIORI_MIN_SUPPORT must be greater than 0")
	}
	if r.MinLift < 0 {
		return fmt.Errorf("APRIORI_MIN_LIFT must be >= 0")
	}
	if r.MaxItemsetSize < 2 {
		return fmt.Errorf("APRIORI_MAX_ITEMSET_SIZE must be at least 2, got %d", r.MaxItemsetSize)
	}
	if r.MaxCandidates <= 0 {
		return fmt.Errorf("APRIORI_MAX_CANDIDATES must be positive")
	}

	if r.TransactionLookbackDays <= 0 || r.FrequencyLookbackDays <= 0 || r.RuleFreshnessDays <= 0 {
		return fmt.Errorf("recommend lookback and freshness windows must be positive days")
	}
	if r.RuleFetchLimit <= 0 {
		return fmt.Errorf("RECOMMEND_RULE_FETCH_LIMIT must be positive")
	}
	if r.MaxLimit <= 0 {
		return fmt.Errorf("RECOMMEND_MAX_LIMIT must be positive")
	}
	if r.DefaultLimit <= 0 || r.DefaultLimit > r.MaxLimit {
		return fmt.Errorf("RECOMMEND_DEFAULT_LIMIT must be between 1 and RECOMMEND_MAX_LIMIT (%d)", r.MaxLimit)
	}

	if err := validateFraction("recommend.fallback_base_confidence", r.FallbackBaseConfidence); err != nil {
		return err
	}
	if err := validateFraction("recommend.fallback_max_confidence", r.FallbackMaxConfidence); err != nil {
		return err
	}
	if r.FallbackStepConfidence < 0 {
		return fmt.Errorf("recommend.fallback_step_confidence must be >= 0")
	}

	if r.RegenerationTimeout <= 0 {
		return fmt.Errorf("RECOMMEND_REGENERATION_TIMEOUT must be positive")
	}
	if r.MiningWorkers < 0 {
		return fmt.Errorf("RECOMMEND_MINING_WORKERS must be >= 0")
	}
	if r.PriceLookupConcurrency <= 0 {
		return fmt.Errorf("RECOMMEND_PRICE_LOOKUP_CONCURRENCY must be positive")
	}
	if r.RuleCacheCapacity < 0 {
		return fmt.Errorf("RECOMMEND_RULE_CACHE_CAPACITY must be >= 0")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	g := c.Recommend.Generation
	if !g.Enabled {
		return nil
	}
	if g.IntervalHours <= 0 {
		return fmt.Errorf("APRIORI_GENERATION_INTERVAL_HOURS must be positive")
	}
	if g.StartupDelayMinutes < 0 {
		return fmt.Errorf("APRIORI_STARTUP_DELAY_MINUTES must be >= 0")
	}
	if g.ErrorRetryMinutes <= 0 {
		return fmt.Errorf("APRIORI_ERROR_RETRY_MINUTES must be positive")
	}
	if g.RunTimeout <= 0 {
		return fmt.Errorf("APRIORI_RUN_TIMEOUT must be positive")
	}
	if g.RatePerSecond < 0 {
		return fmt.Errorf("APRIORI_HOUSEHOLDS_PER_SECOND must be >= 0")
	}
	return nil
}

func (c *Config) validateRunState() error {
	if !c.RunState.InMemory && c.RunState.Path == "" {
		return fmt.Errorf("RUNSTATE_PATH is required unless RUNSTATE_IN_MEMORY=true")
	}
	return nil
}

func validateFraction(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
