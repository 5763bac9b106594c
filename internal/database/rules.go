// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/basketwise/internal/database/query"
	"github.com/tomtom215/basketwise/internal/events"
	"github.com/tomtom215/basketwise/internal/logging"
	"github.com/tomtom215/basketwise/internal/recommend"
)

const rulesTable = "association_rules"

var _ recommend.RuleStore = (*DB)(nil)

// ReplaceRules swaps every rule in scope for rules inside one transaction.
// Swaps for the same scope are serialized; readers see either the old or
// the new set. Transaction conflicts are retried with exponential backoff.
func (db *DB) ReplaceRules(ctx context.Context, scope recommend.Scope, rules []recommend.AssociationRule) (err error) {
	defer observe("replace", rulesTable, time.Now(), &err)

	mu := db.acquireScopeLock(scope.Key())
	defer mu.Unlock()

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := db.now()

	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := db.doReplaceRules(ctx, scope, rules, now)
		if err == nil {
			db.publishReplaced(ctx, scope, len(rules), now)
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("operation timed out or canceled: %w", ctx.Err())
		}
		if !isTransactionConflict(err) {
			return err
		}
		if attempt < maxRetries-1 {
			backoff := time.Millisecond * time.Duration(1<<uint(attempt)) // 1ms, 2ms, 4ms
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (db *DB) doReplaceRules(ctx context.Context, scope recommend.Scope, rules []recommend.AssociationRule, now time.Time) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit
		_ = tx.Rollback()
	}()

	if scope.IsGlobal() {
		_, err = tx.ExecContext(ctx, `DELETE FROM association_rules WHERE household_id IS NULL`)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM association_rules WHERE household_id = ?`, scope.HouseholdID)
	}
	if err != nil {
		return fmt.Errorf("delete %s rules: %w", scope, err)
	}

	if len(rules) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO association_rules
				(id, antecedent, consequent, support, confidence, lift, household_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer closeWithLog(stmt, "prepared statement")

		var household interface{}
		if !scope.IsGlobal() {
			household = scope.HouseholdID
		}

		for i := range rules {
			antecedent, err := json.Marshal(rules[i].Antecedent)
			if err != nil {
				return fmt.Errorf("marshal antecedent: %w", err)
			}
			consequent, err := json.Marshal(rules[i].Consequent)
			if err != nil {
				return fmt.Errorf("marshal consequent: %w", err)
			}
			if _, err := stmt.ExecContext(ctx,
				uuid.New().String(), string(antecedent), string(consequent),
				rules[i].Support, rules[i].Confidence, rules[i].Lift,
				household, now, now,
			); err != nil {
				return fmt.Errorf("insert rule: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (db *DB) publishReplaced(ctx context.Context, scope recommend.Scope, count int, at time.Time) {
	publisher := db.rulesPublisher()
	if publisher == nil {
		return
	}

	evt := events.RulesReplaced{
		Scope:      events.ScopeGlobal,
		RuleCount:  count,
		ReplacedAt: at,
	}
	if !scope.IsGlobal() {
		id := scope.HouseholdID
		evt.Scope = events.ScopeHousehold
		evt.HouseholdID = &id
	}

	// Publishing is best effort; the swap is already committed.
	if err := publisher.PublishRulesReplaced(ctx, evt); err != nil {
		logging.Warn().Err(err).Str("scope", scope.Key()).Msg("Failed to publish rules replaced event")
	}
}

// FetchEligibleRules returns fresh rules for the households plus global
// rules, household rules first, then by confidence and lift descending.
func (db *DB) FetchEligibleRules(ctx context.Context, householdIDs []string, q recommend.RuleQuery) (rules []recommend.AssociationRule, err error) {
	defer observe("select", rulesTable, time.Now(), &err)

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	wb := query.NewWhereBuilder()
	wb.AddInOrNull("household_id", householdIDs)
	if q.FreshnessWindow > 0 {
		wb.AddSince("created_at", db.now().Add(-q.FreshnessWindow))
	}
	wb.AddClause("confidence >= ?", q.MinConfidence)
	where, args := wb.BuildWithPrefix()

	sqlQuery := fmt.Sprintf(`
		SELECT id, antecedent, consequent, support, confidence, lift, household_id, created_at, updated_at
		FROM association_rules
		%s
		ORDER BY (household_id IS NULL) ASC, confidence DESC, lift DESC, id ASC`, where)
	if q.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rules, err = queryAndScan(ctx, db.conn, sqlQuery, args, scanRule)
	if err != nil {
		return nil, fmt.Errorf("fetch eligible rules: %w", err)
	}
	if rules == nil {
		rules = []recommend.AssociationRule{}
	}
	return rules, nil
}

func scanRule(rows *sql.Rows) (recommend.AssociationRule, error) {
	var (
		r          recommend.AssociationRule
		antecedent string
		consequent string
		household  sql.NullString
	)
	if err := rows.Scan(&r.ID, &antecedent, &consequent, &r.Support, &r.Confidence, &r.Lift,
		&household, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(antecedent), &r.Antecedent); err != nil {
		return r, fmt.Errorf("decode antecedent of rule %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(consequent), &r.Consequent); err != nil {
		return r, fmt.Errorf("decode consequent of rule %s: %w", r.ID, err)
	}
	if household.Valid {
		id := household.String
		r.HouseholdID = &id
	}
	return r, nil
}

// CountRules counts stored household rules for the households, regardless
// of freshness. Global rules are not counted; no households counts zero.
func (db *DB) CountRules(ctx context.Context, householdIDs []string) (count int, err error) {
	if len(householdIDs) == 0 {
		return 0, nil
	}
	defer observe("count", rulesTable, time.Now(), &err)

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	wb := query.NewWhereBuilder()
	wb.AddHouseholds(householdIDs)
	where, args := wb.BuildWithPrefix()

	err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM association_rules "+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return count, nil
}

// PruneExpired deletes rules created before cutoff.
func (db *DB) PruneExpired(ctx context.Context, cutoff time.Time) (pruned int, err error) {
	defer observe("delete", rulesTable, time.Now(), &err)

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM association_rules WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune expired rules: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune expired rules: %w", err)
	}
	return int(n), nil
}
