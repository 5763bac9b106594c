// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/basketwise/internal/database/query"
	"github.com/tomtom215/basketwise/internal/logging"
	"github.com/tomtom215/basketwise/internal/recommend"
)

const historyTable = "shopping_list_history"

var _ recommend.HistoryRepository = (*DB)(nil)

// CompletedList is the snapshot of a shopping list taken when it is completed.
type CompletedList struct {
	ID             string
	ShoppingListID string
	HouseholdID    string
	Items          []recommend.HistoryItem
	CompletedBy    string
	CompletedAt    time.Time
}

// InsertCompletedList stores a completed list snapshot. Missing ID and
// CompletedAt are filled in.
func (db *DB) InsertCompletedList(ctx context.Context, cl *CompletedList) (err error) {
	defer observe("insert", historyTable, time.Now(), &err)

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if cl.ID == "" {
		cl.ID = uuid.New().String()
	}
	if cl.CompletedAt.IsZero() {
		cl.CompletedAt = db.now()
	}
	items := cl.Items
	if items == nil {
		items = []recommend.HistoryItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal history items: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO shopping_list_history (id, shopping_list_id, household_id, items, completed_by, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cl.ID, cl.ShoppingListID, cl.HouseholdID, string(payload), nullString(cl.CompletedBy), cl.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert completed list: %w", err)
	}
	return nil
}

// insertRawHistory stores an items payload as-is. Used to exercise the
// malformed-record paths.
func (db *DB) insertRawHistory(ctx context.Context, householdID, payload string, completedAt time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO shopping_list_history (id, shopping_list_id, household_id, items, completed_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), "raw", householdID, payload, completedAt.UTC())
	return err
}

// FetchCompletedLists returns lists completed at or after since, oldest
// first. An empty householdIDs slice means every household.
func (db *DB) FetchCompletedLists(ctx context.Context, householdIDs []string, since time.Time) (records []recommend.HistoryRecord, err error) {
	defer observe("select", historyTable, time.Now(), &err)

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	wb := query.NewWhereBuilder()
	wb.AddHouseholds(householdIDs)
	wb.AddSince("completed_at", since)
	where, args := wb.BuildWithPrefix()

	records, err = queryAndScan(ctx, db.conn, `
		SELECT id, household_id, completed_at, items
		FROM shopping_list_history `+where+`
		ORDER BY completed_at ASC, id ASC`, args,
		func(rows *sql.Rows) (recommend.HistoryRecord, error) {
			var (
				r     recommend.HistoryRecord
				items string
			)
			err := rows.Scan(&r.ID, &r.HouseholdID, &r.CompletedAt, &items)
			r.Items = []byte(items)
			return r, err
		})
	if err != nil {
		return nil, fmt.Errorf("fetch completed lists: %w", err)
	}
	if records == nil {
		records = []recommend.HistoryRecord{}
	}
	return records, nil
}

// historyItemsType is the from_json structure of the items column.
const historyItemsType = `[{"name":"VARCHAR","item_code":"VARCHAR","quantity":"DOUBLE","is_purchased":"BOOLEAN"}]`

// wellTypedEntry holds for a raw JSON entry j that decodes into a
// recommend.HistoryItem. from_json turns mistyped fields into NULL, so a
// record is only aggregated when every entry passes; the Go path and the
// extractor skip the same records.
const wellTypedEntry = `COALESCE(json_type(j), 'NULL') IN ('OBJECT', 'NULL')
			AND COALESCE(json_type(j, '$.name'), 'NULL') IN ('VARCHAR', 'NULL')
			AND COALESCE(json_type(j, '$.item_code'), 'NULL') IN ('VARCHAR', 'NULL')
			AND COALESCE(json_type(j, '$.quantity'), 'NULL') IN ('DOUBLE', 'UBIGINT', 'BIGINT', 'NULL')
			AND COALESCE(json_type(j, '$.is_purchased'), 'NULL') IN ('BOOLEAN', 'NULL')`

// ItemFrequencies aggregates purchased entries by item code over lists
// completed at or after since. Count is the number of lists containing the
// code; AvgQuantity averages the entry quantities, missing or zero
// quantities counting as 1. Records with an entry that does not decode as
// a history item are skipped whole. Ordered by count descending then code.
// A non-positive limit returns every code.
func (db *DB) ItemFrequencies(ctx context.Context, householdIDs []string, since time.Time, limit int) (freqs []recommend.ItemFrequency, err error) {
	defer observe("aggregate", historyTable, time.Now(), &err)

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if !db.jsonAvailable {
		return db.itemFrequenciesInGo(ctx, householdIDs, since, limit)
	}

	wb := query.NewWhereBuilder()
	wb.AddHouseholds(householdIDs)
	wb.AddSince("completed_at", since)
	wb.AddClause("CASE WHEN json_valid(items) THEN json_type(items) = 'ARRAY' ELSE false END")
	where, args := wb.Build()

	sqlQuery := fmt.Sprintf(`
		WITH raw AS (
			SELECT id AS list_id, completed_at,
			       UNNEST(from_json(items, '%s')) AS e,
			       UNNEST(json_extract(items, '$[*]')) AS j
			FROM shopping_list_history
			WHERE %s
		),
		malformed AS (
			SELECT DISTINCT list_id FROM raw
			WHERE NOT (%s)
		),
		entries AS (
			SELECT list_id, completed_at, e FROM raw
			WHERE list_id NOT IN (SELECT list_id FROM malformed)
		)
		SELECT e.item_code,
		       arg_max(COALESCE(e.name, ''), completed_at) AS item_name,
		       COUNT(DISTINCT list_id) AS purchase_count,
		       AVG(CASE WHEN COALESCE(e.quantity, 0) = 0 THEN 1 ELSE e.quantity END) AS avg_quantity,
		       MAX(completed_at) AS last_purchased
		FROM entries
		WHERE e.is_purchased AND e.item_code IS NOT NULL AND e.item_code <> ''
		GROUP BY e.item_code
		ORDER BY purchase_count DESC, e.item_code ASC`, historyItemsType, where, wellTypedEntry)
	if limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, limit)
	}

	freqs, err = queryAndScan(ctx, db.conn, sqlQuery, args, func(rows *sql.Rows) (recommend.ItemFrequency, error) {
		var f recommend.ItemFrequency
		err := rows.Scan(&f.ItemCode, &f.ItemName, &f.Count, &f.AvgQuantity, &f.LastPurchased)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("item frequencies: %w", err)
	}
	if freqs == nil {
		freqs = []recommend.ItemFrequency{}
	}
	return freqs, nil
}

// itemFrequenciesInGo computes ItemFrequencies without the json extension.
func (db *DB) itemFrequenciesInGo(ctx context.Context, householdIDs []string, since time.Time, limit int) ([]recommend.ItemFrequency, error) {
	records, err := db.FetchCompletedLists(ctx, householdIDs, since)
	if err != nil {
		return nil, err
	}

	type agg struct {
		freq     recommend.ItemFrequency
		qtySum   float64
		qtyCount int
		lastList string
	}
	byCode := make(map[string]*agg)

	for _, rec := range records {
		var items []recommend.HistoryItem
		if err := json.Unmarshal(rec.Items, &items); err != nil {
			logging.Debug().Err(err).Str("history_id", rec.ID).Msg("Skipping malformed history record")
			continue
		}
		for _, item := range items {
			if !item.IsPurchased || item.ItemCode == nil || *item.ItemCode == "" {
				continue
			}
			code := *item.ItemCode
			a, ok := byCode[code]
			if !ok {
				a = &agg{freq: recommend.ItemFrequency{ItemCode: code}}
				byCode[code] = a
			}
			qty := item.Quantity
			if qty == 0 {
				qty = 1
			}
			a.qtySum += qty
			a.qtyCount++
			if a.lastList != rec.ID {
				a.freq.Count++
				a.lastList = rec.ID
			}
			// Records are oldest first, so the latest name and time win.
			if !rec.CompletedAt.Before(a.freq.LastPurchased) {
				a.freq.LastPurchased = rec.CompletedAt
				a.freq.ItemName = item.Name
			}
		}
	}

	freqs := make([]recommend.ItemFrequency, 0, len(byCode))
	for _, a := range byCode {
		a.freq.AvgQuantity = a.qtySum / float64(a.qtyCount)
		freqs = append(freqs, a.freq)
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].ItemCode < freqs[j].ItemCode
	})
	if limit > 0 && len(freqs) > limit {
		freqs = freqs[:limit]
	}
	return freqs, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
