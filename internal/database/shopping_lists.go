// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/basketwise/internal/recommend"
)

var _ recommend.ShoppingListRepository = (*DB)(nil)

// ShoppingList is a list in progress.
type ShoppingList struct {
	ID          string
	HouseholdID string
	OwnerID     string
	Name        string
	CreatedAt   time.Time
}

// ShoppingItem is one entry on a shopping list.
type ShoppingItem struct {
	ID             string
	ShoppingListID string
	Name           string
	ItemCode       *string
	Quantity       float64
	IsPurchased    bool
	AddedByID      string
	CreatedAt      time.Time
}

// CreateShoppingList stores a list. A missing ID is generated.
func (db *DB) CreateShoppingList(ctx context.Context, l *ShoppingList) (err error) {
	defer observe("insert", "shopping_lists", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = db.now()
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO shopping_lists (id, household_id, owner_id, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.HouseholdID, l.OwnerID, l.Name, l.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create shopping list: %w", err)
	}
	return nil
}

// AddShoppingItem adds an entry to a list. A missing ID is generated and a
// zero quantity becomes 1.
func (db *DB) AddShoppingItem(ctx context.Context, it *ShoppingItem) (err error) {
	defer observe("insert", "shopping_items", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = db.now()
	}
	if it.Quantity == 0 {
		it.Quantity = 1
	}
	var code interface{}
	if it.ItemCode != nil {
		code = *it.ItemCode
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO shopping_items (id, shopping_list_id, name, item_code, quantity, is_purchased, added_by_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.ShoppingListID, it.Name, code, it.Quantity, it.IsPurchased, nullString(it.AddedByID), it.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("add shopping item: %w", err)
	}
	return nil
}

// SetItemPurchased flips the purchased flag of one entry.
func (db *DB) SetItemPurchased(ctx context.Context, itemID string, purchased bool) (err error) {
	defer observe("update", "shopping_items", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var purchasedAt interface{}
	if purchased {
		purchasedAt = db.now()
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE shopping_items SET is_purchased = ?, purchased_at = ? WHERE id = ?`,
		purchased, purchasedAt, itemID)
	if err != nil {
		return fmt.Errorf("set item purchased: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// BasketCodes returns the distinct item codes of unpurchased entries on the
// list, in the order they were first added.
func (db *DB) BasketCodes(ctx context.Context, shoppingListID string) (codes []string, err error) {
	defer observe("select", "shopping_items", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	codes, err = queryStrings(ctx, db.conn, `
		SELECT item_code FROM shopping_items
		WHERE shopping_list_id = ? AND NOT is_purchased AND item_code IS NOT NULL AND item_code <> ''
		GROUP BY item_code
		ORDER BY MIN(created_at), item_code`, shoppingListID)
	if err != nil {
		return nil, fmt.Errorf("basket codes: %w", err)
	}
	return codes, nil
}

// ShoppingListHousehold returns the household owning a list, or ErrNotFound.
func (db *DB) ShoppingListHousehold(ctx context.Context, shoppingListID string) (householdID string, err error) {
	defer observe("select", "shopping_lists", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	err = db.conn.QueryRowContext(ctx,
		`SELECT household_id FROM shopping_lists WHERE id = ?`, shoppingListID).Scan(&householdID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("shopping list household: %w", err)
	}
	return householdID, nil
}

// CompleteShoppingList snapshots the list's entries into the history table
// so they feed future mining. Returns ErrNotFound for an unknown list.
func (db *DB) CompleteShoppingList(ctx context.Context, shoppingListID, userID string) (*CompletedList, error) {
	householdID, err := db.ShoppingListHousehold(ctx, shoppingListID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	items, err := queryAndScan(ctx, db.conn, `
		SELECT name, item_code, quantity, is_purchased
		FROM shopping_items WHERE shopping_list_id = ?
		ORDER BY created_at, id`, []interface{}{shoppingListID},
		func(rows *sql.Rows) (recommend.HistoryItem, error) {
			var (
				it   recommend.HistoryItem
				code sql.NullString
			)
			if err := rows.Scan(&it.Name, &code, &it.Quantity, &it.IsPurchased); err != nil {
				return it, err
			}
			if code.Valid {
				c := code.String
				it.ItemCode = &c
			}
			return it, nil
		})
	if err != nil {
		return nil, fmt.Errorf("read list items: %w", err)
	}

	cl := &CompletedList{
		ShoppingListID: shoppingListID,
		HouseholdID:    householdID,
		Items:          items,
		CompletedBy:    userID,
	}
	if err := db.InsertCompletedList(ctx, cl); err != nil {
		return nil, err
	}
	return cl, nil
}
