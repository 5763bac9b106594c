// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/basketwise/internal/metrics"
	"github.com/tomtom215/basketwise/internal/recommend"
	"github.com/tomtom215/basketwise/internal/runstate"
)

// ledgerWriteTimeout bounds recording a run after its context ended.
const ledgerWriteTimeout = 5 * time.Second

// RuleGenerator regenerates the rules of every active household.
type RuleGenerator interface {
	GenerateAllRules(ctx context.Context) (*recommend.GenerationStats, error)
}

// RulePruner deletes rules created before cutoff.
type RulePruner interface {
	PruneExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// RunLedger persists generation runs.
type RunLedger interface {
	RecordRun(ctx context.Context, run runstate.Run) error
	LastSuccessfulRun(ctx context.Context) (*runstate.Run, error)
}

// RuleGenerationConfig schedules the service.
type RuleGenerationConfig struct {
	// StartupDelay is the wait before the first run. Default: 5m
	StartupDelay time.Duration

	// Interval is the wait after a successful run. Default: 24h
	Interval time.Duration

	// ErrorRetry is the wait after a failed run. Default: 60m
	ErrorRetry time.Duration

	// RunTimeout bounds one run. Default: 30m
	RunTimeout time.Duration

	// FreshnessWindow is the rule age after which rules are pruned. Zero
	// disables pruning.
	FreshnessWindow time.Duration
}

func (c *RuleGenerationConfig) applyDefaults() {
	if c.StartupDelay < 0 {
		c.StartupDelay = 0
	}
	if c.Interval <= 0 {
		c.Interval = 24 * time.Hour
	}
	if c.ErrorRetry <= 0 {
		c.ErrorRetry = time.Hour
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 30 * time.Minute
	}
}

// RuleGenerationService periodically regenerates association rules.
type RuleGenerationService struct {
	generator RuleGenerator
	pruner    RulePruner
	ledger    RunLedger
	config    RuleGenerationConfig
	logger    zerolog.Logger
	name      string
	now       func() time.Time
}

// NewRuleGenerationService creates the service. pruner and ledger may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRuleGenerationService(generator RuleGenerator, pruner RulePruner, ledger RunLedger, cfg RuleGenerationConfig, logger zerolog.Logger) *RuleGenerationService {
	cfg.applyDefaults()
	return &RuleGenerationService{
		generator: generator,
		pruner:    pruner,
		ledger:    ledger,
		config:    cfg,
		logger:    logger.With().Str("service", "rule-generation").Logger(),
		name:      "rule-generation-service",
		now:       time.Now,
	}
}

// Serve implements suture.Service.
func (s *RuleGenerationService) Serve(ctx context.Context) error {
	delay := s.firstDelay(ctx)
	s.logger.Info().
		Dur("first_run_in", delay).
		Dur("interval", s.config.Interval).
		Msg("rule generation service starting")

	if !s.sleep(ctx, delay) {
		return ctx.Err()
	}

	for {
		_, _, err := s.RunNow(ctx, runstate.TriggerScheduled)
		if ctx.Err() != nil {
			s.logger.Info().Msg("rule generation service shutting down")
			return ctx.Err()
		}

		next := s.config.Interval
		if err != nil {
			next = s.config.ErrorRetry
			s.logger.Error().Err(err).Dur("retry_in", next).Msg("rule generation failed")
		}
		if !s.sleep(ctx, next) {
			s.logger.Info().Msg("rule generation service shutting down")
			return ctx.Err()
		}
	}
}

// firstDelay returns the startup delay, or the remainder of the interval when
// the ledger holds a successful run younger than the interval.
func (s *RuleGenerationService) firstDelay(ctx context.Context) time.Duration {
	if s.ledger == nil {
		return s.config.StartupDelay
	}
	last, err := s.ledger.LastSuccessfulRun(ctx)
	if err != nil {
		if !errors.Is(err, runstate.ErrNoRuns) {
			s.logger.Warn().Err(err).Msg("could not read run ledger, using startup delay")
		}
		return s.config.StartupDelay
	}

	age := s.now().Sub(last.FinishedAt)
	if age < 0 || age >= s.config.Interval {
		return s.config.StartupDelay
	}
	remaining := s.config.Interval - age
	s.logger.Info().
		Time("last_success", last.FinishedAt).
		Dur("remaining", remaining).
		Msg("recent successful run found, skipping startup run")
	if remaining < s.config.StartupDelay {
		return s.config.StartupDelay
	}
	return remaining
}

// RunNow runs one generation batch, prunes expired rules and records the
// run. A batch rejected with recommend.ErrGenerationInProgress is not
// recorded.
func (s *RuleGenerationService) RunNow(ctx context.Context, trigger string) (*runstate.Run, *recommend.GenerationStats, error) {
	run := runstate.Run{ID: uuid.New().String(), Trigger: trigger, StartedAt: s.now()}

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	stats, err := s.generator.GenerateAllRules(runCtx)
	if errors.Is(err, recommend.ErrGenerationInProgress) {
		return nil, nil, err
	}
	if stats != nil {
		run.HouseholdsProcessed = stats.HouseholdsProcessed
		run.RulesGenerated = stats.TotalRulesGenerated
		run.FailedHouseholds = stats.FailedHouseholds
	}

	if err != nil {
		run.Error = err.Error()
	} else {
		s.logger.Info().
			Str("trigger", trigger).
			Int("failed_households", run.FailedHouseholds).
			Msgf("Generated rules for %d households, total %d rules", run.HouseholdsProcessed, run.RulesGenerated)
		run.RulesPruned = s.prune(runCtx)
	}
	run.FinishedAt = s.now()

	s.record(ctx, &run)
	return &run, stats, err
}

func (s *RuleGenerationService) prune(ctx context.Context) int64 {
	if s.pruner == nil || s.config.FreshnessWindow <= 0 {
		return 0
	}
	pruned, err := s.pruner.PruneExpired(ctx, s.now().Add(-s.config.FreshnessWindow))
	if err != nil {
		s.logger.Warn().Err(err).Msg("pruning expired rules failed")
		return 0
	}
	metrics.RulesPruned.Add(float64(pruned))
	if pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Msg("pruned expired rules")
	}
	return int64(pruned)
}

func (s *RuleGenerationService) record(ctx context.Context, run *runstate.Run) {
	if s.ledger == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()
	if err := s.ledger.RecordRun(wctx, *run); err != nil {
		s.logger.Warn().Err(err).Msg("recording generation run failed")
	}
}

// sleep waits d or until ctx is done. It reports whether the wait completed.
func (s *RuleGenerationService) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// String implements fmt.Stringer for suture logging.
func (s *RuleGenerationService) String() string {
	return s.name
}
