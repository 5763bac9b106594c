// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/basketwise/internal/config"
	"github.com/tomtom215/basketwise/internal/events"
	"github.com/tomtom215/basketwise/internal/recommend"
)

// testDBSemaphore limits concurrent database creation to prevent resource exhaustion in CI.
// The semaphore is held for the whole test so only one DuckDB connection is active at a time.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates a new in-memory test database with timeout protection.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:                   ":memory:",
		MaxMemory:              "1GB",
		PreserveInsertionOrder: true,
		SkipIndexes:            true,
	}

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := New(cfg)
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Failed to close test database: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatal("Timed out creating test database")
		return nil
	}
}

// setClock pins db.now for the rest of the test.
func setClock(db *DB, at time.Time) {
	db.now = func() time.Time { return at }
}

func strPtr(s string) *string {
	return &s
}

func rule(antecedent, consequent string, confidence, lift float64) recommend.AssociationRule {
	return recommend.AssociationRule{
		Antecedent: []string{antecedent},
		Consequent: []string{consequent},
		Support:    0.2,
		Confidence: confidence,
		Lift:       lift,
	}
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.RulesReplaced
}

func (p *recordingPublisher) PublishRulesReplaced(_ context.Context, evt events.RulesReplaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) snapshot() []events.RulesReplaced {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.RulesReplaced(nil), p.events...)
}

func TestNewInitializesSchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	version, err := db.GetCurrentSchemaVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentSchemaVersion() error = %v", err)
	}
	if want := len(migrations); version != want {
		t.Errorf("schema version = %d, want %d", version, want)
	}

	// Re-running migrations must be a no-op.
	if err := db.runVersionedMigrations(); err != nil {
		t.Fatalf("second runVersionedMigrations() error = %v", err)
	}

	if err := db.CreateIndexes(); err != nil {
		t.Fatalf("CreateIndexes() error = %v", err)
	}
}

func TestReplaceRules(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	db.SetRulesPublisher(pub)

	h1 := recommend.HouseholdScope("h1")
	if err := db.ReplaceRules(ctx, h1, []recommend.AssociationRule{
		rule("MILK", "BREAD", 0.9, 2.0),
		rule("EGGS", "BREAD", 0.5, 1.5),
	}); err != nil {
		t.Fatalf("ReplaceRules(h1) error = %v", err)
	}
	if err := db.ReplaceRules(ctx, recommend.GlobalScope, []recommend.AssociationRule{
		rule("MILK", "COFFEE", 0.95, 3.0),
	}); err != nil {
		t.Fatalf("ReplaceRules(global) error = %v", err)
	}

	// Second swap of h1 replaces, never appends.
	if err := db.ReplaceRules(ctx, h1, []recommend.AssociationRule{
		rule("MILK", "EGGS", 0.6, 1.2),
	}); err != nil {
		t.Fatalf("ReplaceRules(h1) second error = %v", err)
	}

	rules, err := db.FetchEligibleRules(ctx, []string{"h1"}, recommend.RuleQuery{
		FreshnessWindow: 7 * 24 * time.Hour,
		MinConfidence:   0.3,
		Limit:           100,
	})
	if err != nil {
		t.Fatalf("FetchEligibleRules() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2: %+v", len(rules), rules)
	}

	// Household rules come before global ones even at lower confidence.
	if rules[0].HouseholdID == nil || *rules[0].HouseholdID != "h1" {
		t.Errorf("rules[0] household = %v, want h1", rules[0].HouseholdID)
	}
	if rules[0].Consequent[0] != "EGGS" {
		t.Errorf("rules[0] consequent = %v, want EGGS", rules[0].Consequent)
	}
	if !rules[1].IsGlobal() || rules[1].Consequent[0] != "COFFEE" {
		t.Errorf("rules[1] = %+v, want global MILK -> COFFEE", rules[1])
	}
	if rules[0].ID == "" || rules[0].ID == rules[1].ID {
		t.Errorf("rule ids not assigned: %q, %q", rules[0].ID, rules[1].ID)
	}

	got := pub.snapshot()
	if len(got) != 3 {
		t.Fatalf("published %d events, want 3", len(got))
	}
	if got[0].Scope != events.ScopeHousehold || got[0].HouseholdID == nil || *got[0].HouseholdID != "h1" || got[0].RuleCount != 2 {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Scope != events.ScopeGlobal || got[1].HouseholdID != nil {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestReplaceRulesEmptyClearsScope(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.ReplaceRules(ctx, recommend.HouseholdScope("h1"), []recommend.AssociationRule{
		rule("MILK", "BREAD", 0.9, 2.0),
	}); err != nil {
		t.Fatalf("ReplaceRules() error = %v", err)
	}
	if err := db.ReplaceRules(ctx, recommend.HouseholdScope("h1"), nil); err != nil {
		t.Fatalf("ReplaceRules(nil) error = %v", err)
	}

	count, err := db.CountRules(ctx, []string{"h1"})
	if err != nil {
		t.Fatalf("CountRules() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountRules() = %d, want 0", count)
	}
}

func TestReplaceRulesConcurrentSameScope(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	scope := recommend.HouseholdScope("h1")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			set := make([]recommend.AssociationRule, n)
			for j := range set {
				set[j] = rule("MILK", "BREAD", 0.5, 1.5)
			}
			errs <- db.ReplaceRules(ctx, scope, set)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("ReplaceRules() error = %v", err)
		}
	}

	count, err := db.CountRules(ctx, []string{"h1"})
	if err != nil {
		t.Fatalf("CountRules() error = %v", err)
	}
	// Exactly one complete set survives.
	if count < 1 || count > 8 {
		t.Errorf("CountRules() = %d, want one complete set", count)
	}
}

func TestFetchEligibleRulesFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	// Stale rules for h2, written ten days ago.
	setClock(db, now.Add(-10*24*time.Hour))
	if err := db.ReplaceRules(ctx, recommend.HouseholdScope("h2"), []recommend.AssociationRule{
		rule("MILK", "STALE", 0.9, 2.0),
	}); err != nil {
		t.Fatalf("ReplaceRules(h2) error = %v", err)
	}

	setClock(db, now)
	if err := db.ReplaceRules(ctx, recommend.HouseholdScope("h1"), []recommend.AssociationRule{
		rule("MILK", "LOW", 0.2, 1.1),
		rule("MILK", "HIGH", 0.8, 1.1),
		rule("MILK", "HIGHER_LIFT", 0.8, 2.5),
	}); err != nil {
		t.Fatalf("ReplaceRules(h1) error = %v", err)
	}
	if err := db.ReplaceRules(ctx, recommend.HouseholdScope("h3"), []recommend.AssociationRule{
		rule("MILK", "OTHER_HOUSEHOLD", 0.99, 3.0),
	}); err != nil {
		t.Fatalf("ReplaceRules(h3) error = %v", err)
	}

	q := recommend.RuleQuery{FreshnessWindow: 7 * 24 * time.Hour, MinConfidence: 0.3, Limit: 100}

	tests := []struct {
		name       string
		households []string
		query      recommend.RuleQuery
		want       []string
	}{
		{"confidence and lift order", []string{"h1"}, q, []string{"HIGHER_LIFT", "HIGH"}},
		{"stale excluded", []string{"h2"}, q, []string{}},
		{"no households means global only", nil, q, []string{}},
		{"limit", []string{"h1"}, recommend.RuleQuery{FreshnessWindow: q.FreshnessWindow, MinConfidence: 0, Limit: 1}, []string{"HIGHER_LIFT"}},
		{"min confidence zero keeps low", []string{"h1"}, recommend.RuleQuery{FreshnessWindow: q.FreshnessWindow}, []string{"HIGHER_LIFT", "HIGH", "LOW"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := db.FetchEligibleRules(ctx, tt.households, tt.query)
			if err != nil {
				t.Fatalf("FetchEligibleRules() error = %v", err)
			}
			got := make([]string, len(rules))
			for i, r := range rules {
				got[i] = r.Consequent[0]
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}

	// CountRules ignores freshness.
	count, err := db.CountRules(ctx, []string{"h2"})
	if err != nil {
		t.Fatalf("CountRules() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountRules(h2) = %d, want 1", count)
	}
}

func TestCountRulesIgnoresGlobal(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.ReplaceRules(ctx, recommend.GlobalScope, []recommend.AssociationRule{
		rule("MILK", "BREAD", 0.9, 2.0), rule("BREAD", "MILK", 0.9, 2.0),
	}); err != nil {
		t.Fatalf("ReplaceRules(global) error = %v", err)
	}
	if err := db.ReplaceRules(ctx, recommend.HouseholdScope("h1"), []recommend.AssociationRule{
		rule("EGGS", "FLOUR", 0.6, 1.5),
	}); err != nil {
		t.Fatalf("ReplaceRules(h1) error = %v", err)
	}

	tests := []struct {
		name       string
		households []string
		want       int
	}{
		{"household with rules", []string{"h1"}, 1},
		{"household without rules", []string{"h2"}, 0},
		{"mixed", []string{"h1", "h2"}, 1},
		{"no households", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.CountRules(ctx, tt.households)
			if err != nil {
				t.Fatalf("CountRules() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CountRules(%v) = %d, want %d", tt.households, got, tt.want)
			}
		})
	}
}

func TestPruneExpired(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	setClock(db, now.Add(-30*24*time.Hour))
	if err := db.ReplaceRules(ctx, recommend.HouseholdScope("old"), []recommend.AssociationRule{
		rule("A", "B", 0.5, 1.5), rule("B", "A", 0.5, 1.5),
	}); err != nil {
		t.Fatalf("ReplaceRules(old) error = %v", err)
	}
	setClock(db, now)
	if err := db.ReplaceRules(ctx, recommend.HouseholdScope("new"), []recommend.AssociationRule{
		rule("A", "B", 0.5, 1.5),
	}); err != nil {
		t.Fatalf("ReplaceRules(new) error = %v", err)
	}

	pruned, err := db.PruneExpired(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("PruneExpired() error = %v", err)
	}
	if pruned != 2 {
		t.Errorf("PruneExpired() = %d, want 2", pruned)
	}
	count, err := db.CountRules(ctx, []string{"old", "new"})
	if err != nil {
		t.Fatalf("CountRules() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountRules() = %d, want 1", count)
	}
}
