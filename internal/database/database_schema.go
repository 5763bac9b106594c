// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

/*
database_schema.go - Database Schema Management

Tables:
  - households, user_households: household membership
  - shopping_lists, shopping_items: lists in progress and their entries
  - shopping_list_history: completed lists with a JSON snapshot of the entries
  - chains, stores, items, item_prices: the price catalog
  - association_rules: mined rules, household_id NULL for the global scope

Timestamps are stored as UTC TIMESTAMP values supplied by the application.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// getTableCreationQueries returns the table creation SQL statements
func (db *DB) getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS households (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS user_households (
			user_id TEXT NOT NULL,
			household_id TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			joined_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, household_id)
		);`,

		`CREATE TABLE IF NOT EXISTS shopping_lists (
			id TEXT PRIMARY KEY,
			household_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS shopping_items (
			id TEXT PRIMARY KEY,
			shopping_list_id TEXT NOT NULL,
			name TEXT NOT NULL,
			item_code TEXT,
			quantity DOUBLE NOT NULL DEFAULT 1,
			is_purchased BOOLEAN NOT NULL DEFAULT false,
			price DOUBLE,
			added_by_id TEXT,
			created_at TIMESTAMP NOT NULL,
			purchased_at TIMESTAMP
		);`,

		// items holds the JSON array of {name, item_code, quantity, is_purchased}
		`CREATE TABLE IF NOT EXISTS shopping_list_history (
			id TEXT PRIMARY KEY,
			shopping_list_id TEXT NOT NULL,
			household_id TEXT NOT NULL,
			items TEXT NOT NULL,
			completed_by TEXT,
			completed_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS chains (
			chain_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sub_chain_id TEXT
		);`,

		`CREATE TABLE IF NOT EXISTS stores (
			id TEXT PRIMARY KEY,
			store_id TEXT NOT NULL,
			chain_id TEXT NOT NULL,
			name TEXT,
			city TEXT
		);`,

		`CREATE TABLE IF NOT EXISTS items (
			item_code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			manufacturer_name TEXT,
			unit_of_measure TEXT,
			is_weighted BOOLEAN NOT NULL DEFAULT false
		);`,

		// item_status: 1 = active, 0 = inactive
		`CREATE TABLE IF NOT EXISTS item_prices (
			id TEXT PRIMARY KEY,
			item_code TEXT NOT NULL,
			store_id TEXT NOT NULL,
			price DOUBLE NOT NULL,
			unit_price DOUBLE,
			item_status INTEGER NOT NULL DEFAULT 1,
			price_update_date TIMESTAMP NOT NULL
		);`,

		// antecedent and consequent are JSON arrays of item codes
		`CREATE TABLE IF NOT EXISTS association_rules (
			id TEXT PRIMARY KEY,
			antecedent TEXT NOT NULL,
			consequent TEXT NOT NULL,
			support DOUBLE NOT NULL,
			confidence DOUBLE NOT NULL,
			lift DOUBLE NOT NULL,
			household_id TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
	}
}

// createIndexes creates database indexes for query optimization.
// Skipped when cfg.SkipIndexes is true (fast test setup).
func (db *DB) createIndexes() error {
	if db.cfg != nil && db.cfg.SkipIndexes {
		return nil
	}
	return db.CreateIndexes()
}

// CreateIndexes creates all database indexes.
func (db *DB) CreateIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getIndexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index query: %s: %w", query, err)
		}
	}
	return nil
}

// getIndexQueries returns index creation SQL statements
func (db *DB) getIndexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_user_households_household ON user_households(household_id);`,
		`CREATE INDEX IF NOT EXISTS idx_shopping_items_list ON shopping_items(shopping_list_id);`,
		`CREATE INDEX IF NOT EXISTS idx_history_household_completed ON shopping_list_history(household_id, completed_at);`,
		`CREATE INDEX IF NOT EXISTS idx_stores_chain ON stores(chain_id, store_id);`,
		`CREATE INDEX IF NOT EXISTS idx_item_prices_item_store ON item_prices(item_code, store_id);`,
		`CREATE INDEX IF NOT EXISTS idx_item_prices_status ON item_prices(item_status);`,
		`CREATE INDEX IF NOT EXISTS idx_rules_confidence ON association_rules(confidence);`,
		`CREATE INDEX IF NOT EXISTS idx_rules_household ON association_rules(household_id);`,
		`CREATE INDEX IF NOT EXISTS idx_rules_created ON association_rules(created_at);`,
	}
}
