// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/basketwise/internal/metrics"
	"github.com/tomtom215/basketwise/internal/validation"
)

// minTransactionSize is the smallest itemset that can support a rule.
const minTransactionSize = 2

// Extractor turns completed shopping lists into mining transactions.
type Extractor struct {
	history  HistoryRepository
	lookback time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewExtractor creates an extractor reading lists completed within lookback.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewExtractor(history HistoryRepository, lookback time.Duration, logger zerolog.Logger) *Extractor {
	return &Extractor{
		history:  history,
		lookback: lookback,
		logger:   logger.With().Str("component", "extractor").Logger(),
		now:      time.Now,
	}
}

// Extract returns one transaction per qualifying completed list. An empty
// householdIDs slice reads every household.
func (x *Extractor) Extract(ctx context.Context, householdIDs []string) ([]Transaction, error) {
	records, err := x.history.FetchCompletedLists(ctx, householdIDs, x.now().Add(-x.lookback))
	if err != nil {
		return nil, fmt.Errorf("fetch completed lists: %w", err)
	}
	return x.FromRecords(records), nil
}

// FromRecords decodes records into transactions. Malformed records and
// records with fewer than two distinct purchased codes are skipped.
func (x *Extractor) FromRecords(records []HistoryRecord) []Transaction {
	transactions := make([]Transaction, 0, len(records))
	for i := range records {
		tx, reason := x.decode(&records[i])
		if reason != "" {
			metrics.ExtractorRecordsSkipped.WithLabelValues(reason).Inc()
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions
}

func (x *Extractor) decode(rec *HistoryRecord) (Transaction, string) {
	var items []HistoryItem
	if err := json.Unmarshal(rec.Items, &items); err != nil {
		x.logger.Debug().
			Err(err).
			Str("list_id", rec.ID).
			Msg("skipping malformed history record")
		return nil, "malformed"
	}

	codes := make([]string, 0, len(items))
	for i := range items {
		item := &items[i]
		if !item.IsPurchased || item.ItemCode == nil || *item.ItemCode == "" {
			continue
		}
		if verr := validation.ValidateStruct(item); verr != nil {
			x.logger.Debug().
				Str("list_id", rec.ID).
				Str("error", verr.Error()).
				Msg("skipping invalid history record")
			return nil, "invalid_item"
		}
		codes = append(codes, *item.ItemCode)
	}

	tx := NewTransaction(codes)
	if len(tx) < minTransactionSize {
		return nil, "too_small"
	}
	return tx, ""
}
