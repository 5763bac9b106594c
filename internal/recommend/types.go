// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package recommend

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidRequest is returned for prediction requests that fail validation.
	ErrInvalidRequest = errors.New("invalid prediction request")

	// ErrGenerationInProgress is returned when a batch generation is already running.
	ErrGenerationInProgress = errors.New("rule generation already in progress")

	// ErrCandidateLimit is returned by miners when one level would generate
	// more candidates than MiningConfig.MaxCandidates.
	ErrCandidateLimit = errors.New("candidate limit exceeded")
)

// Transaction is the sorted, de-duplicated set of item codes purchased in
// one completed shopping list.
type Transaction []string

// NewTransaction sorts and de-duplicates codes, dropping empty ones.
func NewTransaction(codes []string) Transaction {
	seen := make(map[string]struct{}, len(codes))
	tx := make(Transaction, 0, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		tx = append(tx, c)
	}
	sort.Strings(tx)
	return tx
}

// Scope identifies a rule-ownership partition: one household, or the global
// pool when HouseholdID is empty.
type Scope struct {
	HouseholdID string
}

// GlobalScope is the cross-household scope.
var GlobalScope = Scope{}

// HouseholdScope returns the scope owned by one household.
func HouseholdScope(householdID string) Scope {
	return Scope{HouseholdID: householdID}
}

// IsGlobal reports whether the scope is the global pool.
func (s Scope) IsGlobal() bool {
	return s.HouseholdID == ""
}

// Key returns a stable identifier used for locking and cache invalidation.
func (s Scope) Key() string {
	if s.IsGlobal() {
		return "global"
	}
	return "household:" + s.HouseholdID
}

func (s Scope) String() string {
	return s.Key()
}

// AssociationRule is a mined antecedent -> consequent implication.
type AssociationRule struct {
	ID          string    `json:"id"`
	Antecedent  []string  `json:"antecedent"`
	Consequent  []string  `json:"consequent"`
	Support     float64   `json:"support"`
	Confidence  float64   `json:"confidence"`
	Lift        float64   `json:"lift"`
	HouseholdID *string   `json:"household_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsGlobal reports whether the rule belongs to the global scope.
func (r *AssociationRule) IsGlobal() bool {
	return r.HouseholdID == nil
}

// AntecedentIn reports whether every antecedent code is contained in basket.
func (r *AssociationRule) AntecedentIn(basket map[string]struct{}) bool {
	if len(r.Antecedent) == 0 {
		return false
	}
	for _, code := range r.Antecedent {
		if _, ok := basket[code]; !ok {
			return false
		}
	}
	return true
}

// PredictionReason tags why an item was suggested.
type PredictionReason string

const (
	ReasonFrequentAssociation PredictionReason = "frequent_association"
	ReasonFrequentlyBought    PredictionReason = "frequently_bought"
	ReasonHouseholdFavorite   PredictionReason = "household_favorite"
	ReasonRecentlyPurchased   PredictionReason = "recently_purchased"
)

// ItemPrediction is one ranked suggestion returned to the caller.
type ItemPrediction struct {
	ItemCode          *string          `json:"item_code"`
	ItemName          string           `json:"item_name"`
	ConfidenceScore   float64          `json:"confidence_score"`
	Reason            PredictionReason `json:"reason"`
	ReasonDetail      string           `json:"reason_detail"`
	LastPurchased     *time.Time       `json:"last_purchased"`
	PurchaseCount     int              `json:"purchase_count"`
	AvgQuantity       float64          `json:"avg_quantity"`
	SuggestedQuantity int              `json:"suggested_quantity"`
	CurrentPrice      *float64         `json:"current_price"`
	StoreName         *string          `json:"store_name"`
	ChainName         *string          `json:"chain_name"`
}

// Code returns the item code or "" when the prediction has none.
func (p *ItemPrediction) Code() string {
	if p.ItemCode == nil {
		return ""
	}
	return *p.ItemCode
}

// PredictionRequest asks for predictions for one user, optionally in the
// context of an in-progress shopping list.
type PredictionRequest struct {
	UserID         string  `json:"user_id" validate:"required,max=64"`
	ShoppingListID *string `json:"shopping_list_id,omitempty" validate:"omitempty,max=64"`
	Limit          int     `json:"limit" validate:"gte=0"`
}

// PredictionsResponse is the result of GetPredictions.
type PredictionsResponse struct {
	ShoppingListID *string          `json:"shopping_list_id"`
	Predictions    []ItemPrediction `json:"predictions"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// GenerationStats summarizes one GenerateAllRules batch.
type GenerationStats struct {
	HouseholdsProcessed int   `json:"households_processed"`
	TotalRulesGenerated int   `json:"total_rules_generated"`
	FailedHouseholds    int   `json:"failed_households"`
	DurationMs          int64 `json:"duration_ms"`
}

// HistoryRecord is one completed shopping list as stored by the history
// repository. Items holds the serialized entries and is decoded lazily by
// the extractor so malformed payloads can be skipped per record.
type HistoryRecord struct {
	ID          string
	HouseholdID string
	CompletedAt time.Time
	Items       []byte
}

// HistoryItem is one decoded entry of a completed shopping list.
type HistoryItem struct {
	Name        string  `json:"name" validate:"max=255"`
	ItemCode    *string `json:"item_code" validate:"omitempty,max=64"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	IsPurchased bool    `json:"is_purchased"`
}

// ItemFrequency aggregates completed purchases of one item code.
type ItemFrequency struct {
	ItemCode      string
	ItemName      string
	Count         int
	AvgQuantity   float64
	LastPurchased time.Time
}

// CatalogItem is a catalog entry resolved by item code.
type CatalogItem struct {
	ItemCode string `json:"item_code"`
	Name     string `json:"name"`
}

// PriceInfo is the lowest active price for an item across stores.
type PriceInfo struct {
	Price     float64 `json:"price"`
	StoreName string  `json:"store_name"`
	ChainName string  `json:"chain_name"`
}

// RuleQuery bounds FetchEligibleRules.
type RuleQuery struct {
	FreshnessWindow time.Duration
	MinConfidence   float64
	Limit           int
}

// householdKey builds the cache key for a household set.
func householdKey(householdIDs []string) string {
	ids := append([]string(nil), householdIDs...)
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
