// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/basketwise/internal/recommend"
)

var _ recommend.HouseholdRepository = (*DB)(nil)

// Household is a group of users sharing shopping lists.
type Household struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// CreateHousehold stores a household. A missing ID is generated.
func (db *DB) CreateHousehold(ctx context.Context, h *Household) (err error) {
	defer observe("insert", "households", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = db.now()
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO households (id, name, created_at) VALUES (?, ?, ?)`,
		h.ID, h.Name, h.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create household: %w", err)
	}
	return nil
}

// AddHouseholdMember links a user to a household. Re-adding updates the role.
func (db *DB) AddHouseholdMember(ctx context.Context, userID, householdID, role string) (err error) {
	defer observe("upsert", "user_households", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if role == "" {
		role = "member"
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO user_households (user_id, household_id, role, joined_at)
		VALUES (?, ?, ?, ?)`,
		userID, householdID, role, db.now())
	if err != nil {
		return fmt.Errorf("add member %s to %s: %w", userID, householdID, err)
	}
	return nil
}

// HouseholdsForUser returns the households the user belongs to, sorted.
func (db *DB) HouseholdsForUser(ctx context.Context, userID string) (ids []string, err error) {
	defer observe("select", "user_households", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	ids, err = queryStrings(ctx, db.conn,
		`SELECT household_id FROM user_households WHERE user_id = ? ORDER BY household_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("households for user: %w", err)
	}
	return ids, nil
}

// HouseholdsWithRecentHistory returns households with a list completed at
// or after since, sorted.
func (db *DB) HouseholdsWithRecentHistory(ctx context.Context, since time.Time) (ids []string, err error) {
	defer observe("select", historyTable, time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	ids, err = queryStrings(ctx, db.conn, `
		SELECT DISTINCT household_id FROM shopping_list_history
		WHERE completed_at >= ?
		ORDER BY household_id`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("households with recent history: %w", err)
	}
	return ids, nil
}
