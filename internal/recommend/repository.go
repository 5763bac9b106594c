// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package recommend

import (
	"context"
	"time"
)

// The interfaces below are implemented by the database package. Keeping them
// here lets the engine be exercised with in-memory fakes.

// HistoryRepository reads completed shopping lists.
type HistoryRepository interface {
	// FetchCompletedLists returns lists completed at or after since. An empty
	// householdIDs slice means every household.
	FetchCompletedLists(ctx context.Context, householdIDs []string, since time.Time) ([]HistoryRecord, error)

	// ItemFrequencies aggregates purchased entries by item code, most frequent
	// first with ties by code. A non-positive limit returns every code.
	ItemFrequencies(ctx context.Context, householdIDs []string, since time.Time, limit int) ([]ItemFrequency, error)
}

// CatalogRepository resolves item codes to catalog entries.
type CatalogRepository interface {
	// FindItemByCode returns nil, nil when the code is unknown.
	FindItemByCode(ctx context.Context, code string) (*CatalogItem, error)
	FindItemsByCodes(ctx context.Context, codes []string) ([]CatalogItem, error)
}

// PriceRepository looks up current prices.
type PriceRepository interface {
	// BestActivePrice returns nil, nil when no active price exists.
	BestActivePrice(ctx context.Context, itemCode string) (*PriceInfo, error)
}

// HouseholdRepository resolves household membership and activity.
type HouseholdRepository interface {
	HouseholdsWithRecentHistory(ctx context.Context, since time.Time) ([]string, error)
	HouseholdsForUser(ctx context.Context, userID string) ([]string, error)
}

// ShoppingListRepository reads in-progress lists.
type ShoppingListRepository interface {
	// BasketCodes returns the item codes of unpurchased entries on the list.
	BasketCodes(ctx context.Context, shoppingListID string) ([]string, error)
}

// RuleStore persists association rules per scope.
type RuleStore interface {
	// ReplaceRules atomically swaps every rule in scope for rules.
	ReplaceRules(ctx context.Context, scope Scope, rules []AssociationRule) error

	// FetchEligibleRules returns fresh rules for the households plus global
	// rules, household rules first, then by confidence and lift descending.
	FetchEligibleRules(ctx context.Context, householdIDs []string, q RuleQuery) ([]AssociationRule, error)

	// CountRules counts stored household rules for the households,
	// regardless of freshness. Global rules are not counted.
	CountRules(ctx context.Context, householdIDs []string) (int, error)

	// PruneExpired deletes rules created before cutoff and returns how many were removed.
	PruneExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// Miner turns transactions into association rules. Implementations must be
// deterministic for a fixed input.
type Miner interface {
	Name() string
	Mine(ctx context.Context, transactions []Transaction) ([]AssociationRule, error)
}
