// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/basketwise/internal/metrics"
)

// GenerateAllRules regenerates rules for every household with completed
// lists inside the active-household lookback, then one global rule set over
// the union of their transactions.
//
// Per-household failures are logged and counted in the returned stats. The
// context is checked between households; on cancellation the partial stats
// are returned together with ctx.Err().
func (e *Engine) GenerateAllRules(ctx context.Context) (*GenerationStats, error) {
	if !e.batchMu.TryLock() {
		return nil, ErrGenerationInProgress
	}
	defer e.batchMu.Unlock()

	start := time.Now()
	stats := &GenerationStats{}
	finish := func(err error) (*GenerationStats, error) {
		elapsed := time.Since(start)
		stats.DurationMs = elapsed.Milliseconds()
		metrics.RecordRuleGeneration(elapsed, stats.FailedHouseholds, err)
		return stats, err
	}

	householdIDs, err := e.deps.Households.HouseholdsWithRecentHistory(ctx, e.now().Add(-e.config.Lookbacks.ActiveHouseholds))
	if err != nil {
		return finish(fmt.Errorf("list active households: %w", err))
	}

	e.logger.Info().Int("households", len(householdIDs)).Msg("starting rule generation")

	for _, id := range householdIDs {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return finish(ctx.Err())
			}
		}

		n, err := e.generateScope(ctx, HouseholdScope(id), []string{id})
		if err != nil {
			if ctx.Err() != nil {
				return finish(ctx.Err())
			}
			stats.FailedHouseholds++
			e.logger.Error().Err(err).Str("household_id", id).Msg("household rule generation failed")
			continue
		}
		stats.HouseholdsProcessed++
		stats.TotalRulesGenerated += n
	}

	if len(householdIDs) > 0 {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		n, err := e.generateScope(ctx, GlobalScope, householdIDs)
		if err != nil {
			if ctx.Err() != nil {
				return finish(ctx.Err())
			}
			e.logger.Error().Err(err).Msg("global rule generation failed")
		} else {
			stats.TotalRulesGenerated += n
		}
	}

	e.logger.Info().
		Int("households_processed", stats.HouseholdsProcessed).
		Int("failed_households", stats.FailedHouseholds).
		Int("total_rules", stats.TotalRulesGenerated).
		Dur("duration", time.Since(start)).
		Msg("rule generation complete")

	return finish(nil)
}

// GenerateRules regenerates one scope. The global scope mines every
// household active inside the lookback. It returns the number of rules stored.
func (e *Engine) GenerateRules(ctx context.Context, scope Scope) (int, error) {
	if !scope.IsGlobal() {
		return e.generateScope(ctx, scope, []string{scope.HouseholdID})
	}
	householdIDs, err := e.deps.Households.HouseholdsWithRecentHistory(ctx, e.now().Add(-e.config.Lookbacks.ActiveHouseholds))
	if err != nil {
		return 0, fmt.Errorf("list active households: %w", err)
	}
	return e.generateScope(ctx, scope, householdIDs)
}

// generateScope extracts, mines and stores the rules for one scope.
//
// A mining failure other than cancellation is treated as zero rules and
// leaves the stored rules of the scope untouched until they expire.
func (e *Engine) generateScope(ctx context.Context, scope Scope, householdIDs []string) (int, error) {
	transactions, err := e.extractor.Extract(ctx, householdIDs)
	if err != nil {
		return 0, fmt.Errorf("extract transactions for %s: %w", scope, err)
	}

	rules, err := e.mine(ctx, scope, transactions)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, nil
	}

	if !scope.IsGlobal() {
		for i := range rules {
			id := scope.HouseholdID
			rules[i].HouseholdID = &id
		}
	}

	if err := e.deps.Rules.ReplaceRules(ctx, scope, rules); err != nil {
		return 0, fmt.Errorf("replace rules for %s: %w", scope, err)
	}
	e.cache.Invalidate(scope)

	label := "household"
	if scope.IsGlobal() {
		label = "global"
	}
	metrics.RulesGenerated.WithLabelValues(label).Add(float64(len(rules)))

	e.logger.Debug().
		Str("scope", scope.Key()).
		Int("transactions", len(transactions)).
		Int("rules", len(rules)).
		Msg("stored rules")
	return len(rules), nil
}

// mine runs the miner under the mining semaphore.
func (e *Engine) mine(ctx context.Context, scope Scope, transactions []Transaction) ([]AssociationRule, error) {
	select {
	case e.miningSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.miningSem }()

	start := time.Now()
	rules, err := e.deps.Miner.Mine(ctx, transactions)
	metrics.RecordMining(e.deps.Miner.Name(), len(transactions), time.Since(start), miningErrorType(err))
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("scope", scope.Key()).
			Int("transactions", len(transactions)).
			Msg("mining failed, treating as zero rules")
		return nil, err
	}
	return rules, nil
}

func miningErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCandidateLimit):
		return "candidate_limit"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
