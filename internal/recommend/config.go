// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package recommend

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

const day = 24 * time.Hour

// Config contains all configuration for the prediction engine. It is passed
// explicitly to NewEngine; the engine keeps no process-wide state.
type Config struct {
	// Mining holds the Apriori thresholds.
	Mining MiningConfig `json:"mining"`

	// Lookbacks bounds the history windows read by the engine.
	Lookbacks LookbackConfig `json:"lookbacks"`

	// Rules controls which stored rules are eligible for matching.
	Rules RulesConfig `json:"rules"`

	// Limits bounds the size of a prediction response.
	Limits LimitsConfig `json:"limits"`

	// Fallback shapes frequency-based confidence scores.
	Fallback FallbackConfig `json:"fallback"`

	// Generation controls on-demand and batch regeneration.
	Generation GenerationConfig `json:"generation"`

	// Enrichment controls price lookups.
	Enrichment EnrichmentConfig `json:"enrichment"`

	// Cache controls the eligible-rule and catalog-name caches.
	Cache CacheConfig `json:"cache"`
}

// MiningConfig holds frequent-itemset mining thresholds.
type MiningConfig struct {
	MinSupport     float64 `json:"min_support"`
	MinConfidence  float64 `json:"min_confidence"`
	MinLift        float64 `json:"min_lift"`
	MaxItemsetSize int     `json:"max_itemset_size"`

	// MaxCandidates aborts mining when one level would generate more candidates.
	MaxCandidates int `json:"max_candidates"`
}

// LookbackConfig bounds history reads.
type LookbackConfig struct {
	// Transactions is the history window mined into rules.
	Transactions time.Duration `json:"transactions"`

	// Frequency is the history window used by the frequency fallback.
	Frequency time.Duration `json:"frequency"`

	// ActiveHouseholds selects households for batch generation.
	ActiveHouseholds time.Duration `json:"active_households"`
}

// RulesConfig selects eligible rules.
type RulesConfig struct {
	FreshnessWindow time.Duration `json:"freshness_window"`
	MinConfidence   float64       `json:"min_confidence"`
	FetchLimit      int           `json:"fetch_limit"`
}

// LimitsConfig bounds response size.
type LimitsConfig struct {
	DefaultLimit int `json:"default_limit"`
	MaxLimit     int `json:"max_limit"`
}

// FallbackConfig computes min(Max, Base + Step*count) for frequency candidates.
type FallbackConfig struct {
	BaseConfidence float64 `json:"base_confidence"`
	StepConfidence float64 `json:"step_confidence"`
	MaxConfidence  float64 `json:"max_confidence"`
}

// Score returns the fallback confidence for an occurrence count.
func (f FallbackConfig) Score(count int) float64 {
	score := f.BaseConfidence + f.StepConfidence*float64(count)
	if score > f.MaxConfidence {
		return f.MaxConfidence
	}
	return score
}

// GenerationConfig controls rule regeneration.
type GenerationConfig struct {
	// RegenerationTimeout bounds synchronous regeneration inside a request.
	RegenerationTimeout time.Duration `json:"regeneration_timeout"`

	// MiningWorkers bounds concurrent mining runs. Zero means NumCPU.
	MiningWorkers int `json:"mining_workers"`

	// HouseholdsPerSecond paces batch generation. Zero disables pacing.
	HouseholdsPerSecond float64 `json:"households_per_second"`
}

// EnrichmentConfig controls price enrichment.
type EnrichmentConfig struct {
	Concurrency int `json:"concurrency"`
}

// CacheConfig controls in-process caches.
type CacheConfig struct {
	Enabled    bool          `json:"enabled"`
	TTL        time.Duration `json:"ttl"`
	MaxEntries int           `json:"max_entries"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		Mining: MiningConfig{
			MinSupport:     0.01,
			MinConfidence:  0.30,
			MinLift:        1.0,
			MaxItemsetSize: 3,
			MaxCandidates:  200000,
		},
		Lookbacks: LookbackConfig{
			Transactions:     90 * day,
			Frequency:        30 * day,
			ActiveHouseholds: 90 * day,
		},
		Rules: RulesConfig{
			FreshnessWindow: 7 * day,
			MinConfidence:   0.30,
			FetchLimit:      100,
		},
		Limits: LimitsConfig{
			DefaultLimit: 10,
			MaxLimit:     20,
		},
		Fallback: FallbackConfig{
			BaseConfidence: 0.30,
			StepConfidence: 0.05,
			MaxConfidence:  0.70,
		},
		Generation: GenerationConfig{
			RegenerationTimeout: 30 * time.Second,
			MiningWorkers:       0,
			HouseholdsPerSecond: 0,
		},
		Enrichment: EnrichmentConfig{
			Concurrency: 8,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        5 * time.Minute,
			MaxEntries: 1024,
		},
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.Mining.MinSupport <= 0 || c.Mining.MinSupport > 1 {
		return fmt.Errorf("mining.min_support must be in (0, 1], got %f", c.Mining.MinSupport)
	}
	if c.Mining.MinConfidence < 0 || c.Mining.MinConfidence > 1 {
		return fmt.Errorf("mining.min_confidence must be in [0, 1], got %f", c.Mining.MinConfidence)
	}
	if c.Mining.MinLift < 0 {
		return fmt.Errorf("mining.min_lift must be non-negative, got %f", c.Mining.MinLift)
	}
	if c.Mining.MaxItemsetSize < 2 {
		return fmt.Errorf("mining.max_itemset_size must be at least 2, got %d", c.Mining.MaxItemsetSize)
	}
	if c.Mining.MaxCandidates < 1 {
		return fmt.Errorf("mining.max_candidates must be positive, got %d", c.Mining.MaxCandidates)
	}

	if c.Lookbacks.Transactions <= 0 || c.Lookbacks.Frequency <= 0 || c.Lookbacks.ActiveHouseholds <= 0 {
		return fmt.Errorf("lookbacks must be positive, got %+v", c.Lookbacks)
	}

	if c.Rules.FreshnessWindow <= 0 {
		return fmt.Errorf("rules.freshness_window must be positive, got %v", c.Rules.FreshnessWindow)
	}
	if c.Rules.MinConfidence < 0 || c.Rules.MinConfidence > 1 {
		return fmt.Errorf("rules.min_confidence must be in [0, 1], got %f", c.Rules.MinConfidence)
	}
	if c.Rules.FetchLimit < 1 {
		return fmt.Errorf("rules.fetch_limit must be positive, got %d", c.Rules.FetchLimit)
	}

	if c.Limits.DefaultLimit < 1 {
		return fmt.Errorf("limits.default_limit must be positive, got %d", c.Limits.DefaultLimit)
	}
	if c.Limits.MaxLimit < c.Limits.DefaultLimit {
		return fmt.Errorf("limits.max_limit must be >= limits.default_limit, got %d < %d", c.Limits.MaxLimit, c.Limits.DefaultLimit)
	}

	if c.Fallback.MaxConfidence < 0 || c.Fallback.MaxConfidence > 1 {
		return fmt.Errorf("fallback.max_confidence must be in [0, 1], got %f", c.Fallback.MaxConfidence)
	}
	if c.Fallback.BaseConfidence < 0 || c.Fallback.StepConfidence < 0 {
		return fmt.Errorf("fallback confidences must be non-negative")
	}

	if c.Generation.RegenerationTimeout <= 0 {
		return fmt.Errorf("generation.regeneration_timeout must be positive, got %v", c.Generation.RegenerationTimeout)
	}
	if c.Generation.MiningWorkers < 0 {
		return fmt.Errorf("generation.mining_workers must be non-negative, got %d", c.Generation.MiningWorkers)
	}
	if c.Generation.HouseholdsPerSecond < 0 {
		return fmt.Errorf("generation.households_per_second must be non-negative, got %f", c.Generation.HouseholdsPerSecond)
	}

	if c.Enrichment.Concurrency < 1 {
		return fmt.Errorf("enrichment.concurrency must be positive, got %d", c.Enrichment.Concurrency)
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when the cache is enabled, got %v", c.Cache.TTL)
	}

	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	// All nested structs hold value types only.
	clone := *c
	return &clone
}

// MarshalJSON renders durations as strings ("168h0m0s") for the status endpoint.
func (c *Config) MarshalJSON() ([]byte, error) {
	type durations struct {
		Transactions        string `json:"transactions_lookback"`
		Frequency           string `json:"frequency_lookback"`
		ActiveHouseholds    string `json:"active_households_lookback"`
		FreshnessWindow     string `json:"freshness_window"`
		RegenerationTimeout string `json:"regeneration_timeout"`
		CacheTTL            string `json:"cache_ttl"`
	}
	return json.Marshal(&struct {
		Mining     MiningConfig     `json:"mining"`
		Limits     LimitsConfig     `json:"limits"`
		Fallback   FallbackConfig   `json:"fallback"`
		Enrichment EnrichmentConfig `json:"enrichment"`
		Durations  durations        `json:"durations"`
	}{
		Mining:     c.Mining,
		Limits:     c.Limits,
		Fallback:   c.Fallback,
		Enrichment: c.Enrichment,
		Durations: durations{
			Transactions:        c.Lookbacks.Transactions.String(),
			Frequency:           c.Lookbacks.Frequency.String(),
			ActiveHouseholds:    c.Lookbacks.ActiveHouseholds.String(),
			FreshnessWindow:     c.Rules.FreshnessWindow.String(),
			RegenerationTimeout: c.Generation.RegenerationTimeout.String(),
			CacheTTL:            c.Cache.TTL.String(),
		},
	})
}
