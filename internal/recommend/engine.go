// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/basketwise/internal/logging"
	"github.com/tomtom215/basketwise/internal/metrics"
	"github.com/tomtom215/basketwise/internal/validation"
)

// Dependencies are the repositories and miner used by the engine. Prices is
// optional; without it predictions carry no price fields.
type Dependencies struct {
	History    HistoryRepository
	Catalog    CatalogRepository
	Prices     PriceRepository
	Households HouseholdRepository
	Lists      ShoppingListRepository
	Rules      RuleStore
	Miner      Miner
}

func (d *Dependencies) validate() error {
	switch {
	case d.History == nil:
		return errors.New("history repository is required")
	case d.Catalog == nil:
		return errors.New("catalog repository is required")
	case d.Households == nil:
		return errors.New("household repository is required")
	case d.Lists == nil:
		return errors.New("shopping list repository is required")
	case d.Rules == nil:
		return errors.New("rule store is required")
	case d.Miner == nil:
		return errors.New("miner is required")
	}
	return nil
}

// Engine assembles shopping list predictions from mined association rules
// and purchase frequencies. It is safe for concurrent use.
type Engine struct {
	config *Config
	logger zerolog.Logger
	deps   Dependencies

	extractor *Extractor
	enricher  *PriceEnricher
	cache     *RuleCache

	// miningSem bounds concurrent mining runs across requests and batches.
	miningSem chan struct{}

	// batchMu serializes GenerateAllRules.
	batchMu sync.Mutex
	limiter *rate.Limiter

	now func() time.Time
}

// NewEngine creates a new prediction engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, deps Dependencies, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	workers := cfg.Generation.MiningWorkers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	var limiter *rate.Limiter
	if cfg.Generation.HouseholdsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Generation.HouseholdsPerSecond), 1)
	}

	return &Engine{
		config:    cfg.Clone(),
		logger:    logger.With().Str("component", "recommend").Logger(),
		deps:      deps,
		extractor: NewExtractor(deps.History, cfg.Lookbacks.Transactions, logger),
		enricher:  NewPriceEnricher(deps.Prices, cfg.Enrichment.Concurrency, logger),
		cache:     NewRuleCache(cfg.Cache),
		miningSem: make(chan struct{}, workers),
		limiter:   limiter,
		now:       time.Now,
	}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// InvalidateRules drops cached rule sets affected by a replacement in scope.
func (e *Engine) InvalidateRules(scope Scope) int {
	return e.cache.Invalidate(scope)
}

// GetPredictions returns up to req.Limit ranked predictions.
//
// Only an invalid request fails. Missing history, rules or prices produce
// fewer predictions, and repository errors skip the affected stage.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) GetPredictions(ctx context.Context, req PredictionRequest) (*PredictionsResponse, error) {
	start := time.Now()

	limit, err := e.resolveLimit(&req)
	if err != nil {
		return nil, err
	}
	logger := e.requestLogger(ctx, &req)

	householdIDs := e.householdsForUser(ctx, req.UserID, &logger)
	basket := e.basketCodes(ctx, req.ShoppingListID, &logger)

	// exclude holds basket codes plus every code emitted so far.
	exclude := make(map[string]struct{}, len(basket)+limit)
	for code := range basket {
		exclude[code] = struct{}{}
	}

	predictions := make([]ItemPrediction, 0, limit)
	predictions = e.matchRules(ctx, householdIDs, basket, exclude, predictions, &logger)

	if len(predictions) < limit && e.rulesMissing(ctx, householdIDs, &logger) {
		if e.regenerateForRequest(ctx, householdIDs, &logger) {
			predictions = e.matchRules(ctx, householdIDs, basket, exclude, predictions, &logger)
		}
	}

	frequencies := e.itemFrequencies(ctx, householdIDs, &logger)
	applyPurchaseStats(predictions, frequencies)
	if len(predictions) < limit {
		predictions = e.appendFrequencyFallback(predictions, frequencies, exclude, limit)
	}

	if len(predictions) > limit {
		predictions = predictions[:limit]
	}
	e.enricher.Enrich(ctx, predictions)

	reasons := make([]string, len(predictions))
	for i := range predictions {
		reasons[i] = string(predictions[i].Reason)
	}
	metrics.RecordPredictions(reasons, time.Since(start))

	logger.Debug().
		Int("households", len(householdIDs)).
		Int("basket", len(basket)).
		Int("returned", len(predictions)).
		Dur("latency", time.Since(start)).
		Msg("predictions complete")

	return &PredictionsResponse{
		ShoppingListID: req.ShoppingListID,
		Predictions:    predictions,
		GeneratedAt:    e.now().UTC(),
	}, nil
}

// resolveLimit applies the default limit and rejects out-of-range values.
func (e *Engine) resolveLimit(req *PredictionRequest) (int, error) {
	if verr := validation.ValidateStruct(req); verr != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidRequest, verr.Error())
	}
	if req.Limit == 0 {
		req.Limit = e.config.Limits.DefaultLimit
	}
	if req.Limit > e.config.Limits.MaxLimit {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidRequest, e.config.Limits.MaxLimit, req.Limit)
	}
	return req.Limit, nil
}

func (e *Engine) requestLogger(ctx context.Context, req *PredictionRequest) zerolog.Logger {
	lc := e.logger.With().Str("user_id", req.UserID)
	if id := logging.RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if req.ShoppingListID != nil {
		lc = lc.Str("shopping_list_id", *req.ShoppingListID)
	}
	return lc.Logger()
}

func (e *Engine) householdsForUser(ctx context.Context, userID string, logger *zerolog.Logger) []string {
	ids, err := e.deps.Households.HouseholdsForUser(ctx, userID)
	if err != nil {
		e.stageFailed(logger, "households", err)
		return nil
	}
	return ids
}

func (e *Engine) basketCodes(ctx context.Context, listID *string, logger *zerolog.Logger) map[string]struct{} {
	basket := make(map[string]struct{})
	if listID == nil || *listID == "" {
		return basket
	}
	codes, err := e.deps.Lists.BasketCodes(ctx, *listID)
	if err != nil {
		e.stageFailed(logger, "basket", err)
		return basket
	}
	for _, code := range codes {
		if code != "" {
			basket[code] = struct{}{}
		}
	}
	return basket
}

func (e *Engine) stageFailed(logger *zerolog.Logger, stage string, err error) {
	metrics.PredictionStageErrors.WithLabelValues(stage).Inc()
	logger.Warn().Err(err).Str("stage", stage).Msg("prediction stage skipped")
}

// eligibleRules returns fresh rules for the household set, through the cache.
// Cached sets are re-checked against the freshness window, since a rule can
// expire while its set is still cached.
func (e *Engine) eligibleRules(ctx context.Context, householdIDs []string, logger *zerolog.Logger) []AssociationRule {
	key := householdKey(householdIDs)
	if rules, ok := e.cache.Rules(key); ok {
		return freshRules(rules, e.now().Add(-e.config.Rules.FreshnessWindow))
	}

	rules, err := e.deps.Rules.FetchEligibleRules(ctx, householdIDs, RuleQuery{
		FreshnessWindow: e.config.Rules.FreshnessWindow,
		MinConfidence:   e.config.Rules.MinConfidence,
		Limit:           e.config.Rules.FetchLimit,
	})
	if err != nil {
		e.stageFailed(logger, "rules", err)
		return nil
	}
	e.cache.StoreRules(key, rules)
	return rules
}

// freshRules drops rules created before cutoff. The input is not modified.
func freshRules(rules []AssociationRule, cutoff time.Time) []AssociationRule {
	for i := range rules {
		if !rules[i].CreatedAt.Before(cutoff) {
			continue
		}
		out := append(make([]AssociationRule, 0, len(rules)-1), rules[:i]...)
		for j := i + 1; j < len(rules); j++ {
			if !rules[j].CreatedAt.Before(cutoff) {
				out = append(out, rules[j])
			}
		}
		return out
	}
	return rules
}

// matchRules appends a prediction for every consequent of a rule whose
// antecedent is contained in the basket. The first rule to name a code wins.
func (e *Engine) matchRules(ctx context.Context, householdIDs []string, basket, exclude map[string]struct{}, predictions []ItemPrediction, logger *zerolog.Logger) []ItemPrediction {
	if len(basket) == 0 {
		return predictions
	}

	rules := e.eligibleRules(ctx, householdIDs, logger)
	matched := make([]*AssociationRule, 0, len(rules))
	codeSet := make(map[string]struct{})
	for i := range rules {
		rule := &rules[i]
		if !rule.AntecedentIn(basket) {
			continue
		}
		matched = append(matched, rule)
		for _, code := range rule.Antecedent {
			codeSet[code] = struct{}{}
		}
		for _, code := range rule.Consequent {
			codeSet[code] = struct{}{}
		}
	}
	if len(matched) == 0 {
		return predictions
	}

	names := e.itemNames(ctx, codeSet, logger)
	for _, rule := range matched {
		detail := ""
		for _, code := range rule.Consequent {
			if _, seen := exclude[code]; seen {
				continue
			}
			exclude[code] = struct{}{}

			if detail == "" {
				detail = "Often bought with " + joinNames(rule.Antecedent, names)
			}
			itemCode := code
			predictions = append(predictions, ItemPrediction{
				ItemCode:          &itemCode,
				ItemName:          nameOrCode(names, code),
				ConfidenceScore:   rule.Confidence,
				Reason:            ReasonFrequentAssociation,
				ReasonDetail:      detail,
				SuggestedQuantity: 1,
			})
		}
	}
	return predictions
}

// itemNames resolves catalog names, falling back to the raw code on a miss
// or lookup error.
func (e *Engine) itemNames(ctx context.Context, codeSet map[string]struct{}, logger *zerolog.Logger) map[string]string {
	codes := make([]string, 0, len(codeSet))
	for code := range codeSet {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	names, missing := e.cache.Names(codes)
	if len(missing) == 0 {
		return names
	}

	items, err := e.deps.Catalog.FindItemsByCodes(ctx, missing)
	if err != nil {
		logger.Debug().Err(err).Int("codes", len(missing)).Msg("catalog lookup failed, using item codes")
		return names
	}
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		names[item.ItemCode] = item.Name
		e.cache.StoreName(item.ItemCode, item.Name)
	}
	return names
}

func nameOrCode(names map[string]string, code string) string {
	if name, ok := names[code]; ok {
		return name
	}
	return code
}

func joinNames(codes []string, names map[string]string) string {
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = nameOrCode(names, code)
	}
	return strings.Join(parts, ", ")
}

// rulesMissing reports whether none of the households has stored rules of
// its own. Global rules do not suppress on-demand generation.
func (e *Engine) rulesMissing(ctx context.Context, householdIDs []string, logger *zerolog.Logger) bool {
	if len(householdIDs) == 0 {
		return false
	}
	count, err := e.deps.Rules.CountRules(ctx, householdIDs)
	if err != nil {
		e.stageFailed(logger, "regenerate", err)
		return false
	}
	return count == 0
}

// regenerateForRequest mines rules for each household synchronously, bounded
// by the regeneration timeout. It reports whether matching should be retried.
func (e *Engine) regenerateForRequest(ctx context.Context, householdIDs []string, logger *zerolog.Logger) bool {
	rctx, cancel := context.WithTimeout(ctx, e.config.Generation.RegenerationTimeout)
	defer cancel()

	total := 0
	for _, id := range householdIDs {
		n, err := e.generateScope(rctx, HouseholdScope(id), []string{id})
		if err != nil {
			result := "error"
			if errors.Is(err, context.DeadlineExceeded) {
				result = "timeout"
			}
			metrics.OnDemandRegenerations.WithLabelValues(result).Inc()
			e.stageFailed(logger, "regenerate", err)
			return total > 0
		}
		total += n
	}

	metrics.OnDemandRegenerations.WithLabelValues("success").Inc()
	logger.Info().Int("households", len(householdIDs)).Int("rules", total).Msg("regenerated rules on demand")
	return total > 0
}

// itemFrequencies reads the purchase aggregate for the household set. Users
// without a household get no fallback.
func (e *Engine) itemFrequencies(ctx context.Context, householdIDs []string, logger *zerolog.Logger) []ItemFrequency {
	if len(householdIDs) == 0 {
		return nil
	}
	since := e.now().Add(-e.config.Lookbacks.Frequency)
	freqs, err := e.deps.History.ItemFrequencies(ctx, householdIDs, since, 0)
	if err != nil {
		e.stageFailed(logger, "frequency", err)
		return nil
	}
	sort.SliceStable(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].ItemCode < freqs[j].ItemCode
	})
	return freqs
}

// applyPurchaseStats copies purchase statistics onto rule-based predictions.
func applyPurchaseStats(predictions []ItemPrediction, frequencies []ItemFrequency) {
	if len(frequencies) == 0 {
		return
	}
	byCode := make(map[string]*ItemFrequency, len(frequencies))
	for i := range frequencies {
		byCode[frequencies[i].ItemCode] = &frequencies[i]
	}
	for i := range predictions {
		if f, ok := byCode[predictions[i].Code()]; ok {
			setPurchaseStats(&predictions[i], f)
		}
	}
}

func setPurchaseStats(p *ItemPrediction, f *ItemFrequency) {
	p.PurchaseCount = f.Count
	p.AvgQuantity = f.AvgQuantity
	p.SuggestedQuantity = suggestedQuantity(f.AvgQuantity)
	if !f.LastPurchased.IsZero() {
		last := f.LastPurchased
		p.LastPurchased = &last
	}
}

// suggestedQuantity is the ceiling of the average quantity, at least 1.
func suggestedQuantity(avg float64) int {
	q := int(math.Ceil(avg))
	if q < 1 {
		return 1
	}
	return q
}

// appendFrequencyFallback fills up to limit with the most purchased codes
// not already excluded.
func (e *Engine) appendFrequencyFallback(predictions []ItemPrediction, frequencies []ItemFrequency, exclude map[string]struct{}, limit int) []ItemPrediction {
	days := int(e.config.Lookbacks.Frequency / day)
	for i := range frequencies {
		if len(predictions) >= limit {
			break
		}
		f := &frequencies[i]
		if f.ItemCode == "" {
			continue
		}
		if _, seen := exclude[f.ItemCode]; seen {
			continue
		}
		exclude[f.ItemCode] = struct{}{}

		itemCode := f.ItemCode
		name := f.ItemName
		if name == "" {
			name = itemCode
		}
		p := ItemPrediction{
			ItemCode:        &itemCode,
			ItemName:        name,
			ConfidenceScore: e.config.Fallback.Score(f.Count),
			Reason:          ReasonFrequentAssociation,
			ReasonDetail:    fmt.Sprintf("Purchased %d times in the last %d days", f.Count, days),
		}
		setPurchaseStats(&p, f)
		predictions = append(predictions, p)
	}
	return predictions
}
