// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// The fakes below are exported so the recommend_test scenario tests, which
// need the real miner, can share them.

// PurchasedItems encodes a completed list where every code was purchased.
func PurchasedItems(codes ...string) []byte {
	items := make([]HistoryItem, len(codes))
	for i := range codes {
		code := codes[i]
		items[i] = HistoryItem{Name: code, ItemCode: &code, Quantity: 1, IsPurchased: true}
	}
	data, err := json.Marshal(items)
	if err != nil {
		panic(err)
	}
	return data
}

// FakeHistory serves completed lists and a fixed frequency aggregate.
type FakeHistory struct {
	mu          sync.Mutex
	Records     []HistoryRecord
	Frequencies map[string][]ItemFrequency // by household
	FetchErr    error
	FreqErr     error
	FreqCalls   int
}

func (f *FakeHistory) FetchCompletedLists(_ context.Context, householdIDs []string, since time.Time) ([]HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	want := toSet(householdIDs)
	var out []HistoryRecord
	for _, rec := range f.Records {
		if rec.CompletedAt.Before(since) {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[rec.HouseholdID]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *FakeHistory) ItemFrequencies(_ context.Context, householdIDs []string, _ time.Time, _ int) ([]ItemFrequency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FreqCalls++
	if f.FreqErr != nil {
		return nil, f.FreqErr
	}
	var out []ItemFrequency
	for _, id := range householdIDs {
		out = append(out, f.Frequencies[id]...)
	}
	return out, nil
}

// FakeCatalog resolves names from a map.
type FakeCatalog struct {
	mu    sync.Mutex
	Names map[string]string
	Err   error
	Calls int
}

func (f *FakeCatalog) FindItemByCode(_ context.Context, code string) (*CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	name, ok := f.Names[code]
	if !ok {
		return nil, nil
	}
	return &CatalogItem{ItemCode: code, Name: name}, nil
}

func (f *FakeCatalog) FindItemsByCodes(_ context.Context, codes []string) ([]CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	var out []CatalogItem
	for _, code := range codes {
		if name, ok := f.Names[code]; ok {
			out = append(out, CatalogItem{ItemCode: code, Name: name})
		}
	}
	return out, nil
}

// FakePrices serves prices from a map; Errs fails selected codes.
type FakePrices struct {
	mu     sync.Mutex
	Prices map[string]PriceInfo
	Errs   map[string]error
	Calls  int
}

func (f *FakePrices) BestActivePrice(_ context.Context, code string) (*PriceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if err := f.Errs[code]; err != nil {
		return nil, err
	}
	p, ok := f.Prices[code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// FakeHouseholds maps users to households.
type FakeHouseholds struct {
	ByUser    map[string][]string
	Active    []string
	UserErr   error
	ActiveErr error
}

func (f *FakeHouseholds) HouseholdsWithRecentHistory(context.Context, time.Time) ([]string, error) {
	if f.ActiveErr != nil {
		return nil, f.ActiveErr
	}
	return f.Active, nil
}

func (f *FakeHouseholds) HouseholdsForUser(_ context.Context, userID string) ([]string, error) {
	if f.UserErr != nil {
		return nil, f.UserErr
	}
	return f.ByUser[userID], nil
}

// FakeLists maps shopping list ids to basket codes.
type FakeLists struct {
	Baskets map[string][]string
	Err     error
}

func (f *FakeLists) BasketCodes(_ context.Context, listID string) ([]string, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Baskets[listID], nil
}

// FakeRuleStore keeps rules per scope in memory with the same ordering as
// the DuckDB store.
type FakeRuleStore struct {
	mu           sync.Mutex
	Rules        map[string][]AssociationRule // by Scope.Key()
	ReplaceErrs  map[string]error
	FetchErr     error
	CountErr     error
	ReplaceCalls []string
	FetchCalls   int
	nextID       int
}

func (f *FakeRuleStore) ReplaceRules(_ context.Context, scope Scope, rules []AssociationRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReplaceCalls = append(f.ReplaceCalls, scope.Key())
	if err := f.ReplaceErrs[scope.Key()]; err != nil {
		return err
	}
	if f.Rules == nil {
		f.Rules = make(map[string][]AssociationRule)
	}
	now := time.Now()
	stored := make([]AssociationRule, len(rules))
	for i, r := range rules {
		f.nextID++
		r.ID = fmt.Sprintf("rule-%d", f.nextID)
		r.CreatedAt, r.UpdatedAt = now, now
		stored[i] = r
	}
	f.Rules[scope.Key()] = stored
	return nil
}

func (f *FakeRuleStore) FetchEligibleRules(_ context.Context, householdIDs []string, q RuleQuery) ([]AssociationRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	cutoff := time.Now().Add(-q.FreshnessWindow)
	var out []AssociationRule
	for _, key := range f.scopeKeys(householdIDs) {
		for _, r := range f.Rules[key] {
			if r.CreatedAt.Before(cutoff) || r.Confidence < q.MinConfidence {
				continue
			}
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		gi, gj := out[i].IsGlobal(), out[j].IsGlobal()
		if gi != gj {
			return !gi
		}
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Lift > out[j].Lift
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *FakeRuleStore) CountRules(_ context.Context, householdIDs []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	n := 0
	for _, id := range householdIDs {
		n += len(f.Rules[HouseholdScope(id).Key()])
	}
	return n, nil
}

func (f *FakeRuleStore) PruneExpired(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for key, rules := range f.Rules {
		kept := rules[:0]
		for _, r := range rules {
			if r.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		f.Rules[key] = kept
	}
	return removed, nil
}

// Put stores rules directly, bypassing ReplaceRules bookkeeping.
func (f *FakeRuleStore) Put(scope Scope, rules ...AssociationRule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Rules == nil {
		f.Rules = make(map[string][]AssociationRule)
	}
	now := time.Now()
	for i := range rules {
		if rules[i].CreatedAt.IsZero() {
			rules[i].CreatedAt = now
		}
		if !scope.IsGlobal() {
			id := scope.HouseholdID
			rules[i].HouseholdID = &id
		}
	}
	f.Rules[scope.Key()] = append(f.Rules[scope.Key()], rules...)
}

// Replaced returns a copy of the ReplaceRules scope keys seen so far.
func (f *FakeRuleStore) Replaced() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ReplaceCalls...)
}

func (f *FakeRuleStore) scopeKeys(householdIDs []string) []string {
	keys := make([]string, 0, len(householdIDs)+1)
	for _, id := range householdIDs {
		keys = append(keys, HouseholdScope(id).Key())
	}
	return append(keys, GlobalScope.Key())
}

// FakeMiner returns fixed rules. When Started is set it is signalled on each
// call, and Release, when set, blocks the call until closed.
type FakeMiner struct {
	mu      sync.Mutex
	Result  []AssociationRule
	Err     error
	Calls   int
	Inputs  [][]Transaction
	Started chan struct{}
	Release chan struct{}
}

func (f *FakeMiner) Name() string { return "fake" }

func (f *FakeMiner) Mine(ctx context.Context, transactions []Transaction) ([]AssociationRule, error) {
	f.mu.Lock()
	f.Calls++
	f.Inputs = append(f.Inputs, transactions)
	started, release := f.Started, f.Release
	result, err := f.Result, f.Err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := make([]AssociationRule, len(result))
	copy(out, result)
	return out, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
