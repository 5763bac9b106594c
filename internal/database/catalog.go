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

	"github.com/tomtom215/basketwise/internal/database/query"
	"github.com/tomtom215/basketwise/internal/recommend"
)

var (
	_ recommend.CatalogRepository = (*DB)(nil)
	_ recommend.PriceRepository   = (*DB)(nil)
)

// Chain is a retail chain in the price catalog.
type Chain struct {
	ChainID    string
	Name       string
	SubChainID string
}

// Store is one branch of a chain. ID is the internal key referenced by prices.
type Store struct {
	ID      string
	StoreID string
	ChainID string
	Name    string
	City    string
}

// Item is a catalog entry.
type Item struct {
	ItemCode         string
	Name             string
	ManufacturerName string
	UnitOfMeasure    string
	IsWeighted       bool
}

// ItemPrice is one store's price for an item.
type ItemPrice struct {
	ID              string
	ItemCode        string
	StoreID         string
	Price           float64
	UnitPrice       *float64
	Active          bool
	PriceUpdateDate time.Time
}

// UpsertChain inserts or replaces a chain.
func (db *DB) UpsertChain(ctx context.Context, c Chain) (err error) {
	defer observe("upsert", "chains", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO chains (chain_id, name, sub_chain_id) VALUES (?, ?, ?)`,
		c.ChainID, c.Name, nullString(c.SubChainID))
	if err != nil {
		return fmt.Errorf("upsert chain %s: %w", c.ChainID, err)
	}
	return nil
}

// UpsertStore inserts or replaces a store. A missing ID is generated.
func (db *DB) UpsertStore(ctx context.Context, s *Store) (err error) {
	defer observe("upsert", "stores", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO stores (id, store_id, chain_id, name, city) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.StoreID, s.ChainID, nullString(s.Name), nullString(s.City))
	if err != nil {
		return fmt.Errorf("upsert store %s: %w", s.StoreID, err)
	}
	return nil
}

// UpsertItem inserts or replaces a catalog item.
func (db *DB) UpsertItem(ctx context.Context, it Item) (err error) {
	defer observe("upsert", "items", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO items (item_code, name, manufacturer_name, unit_of_measure, is_weighted)
		VALUES (?, ?, ?, ?, ?)`,
		it.ItemCode, it.Name, nullString(it.ManufacturerName), nullString(it.UnitOfMeasure), it.IsWeighted)
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", it.ItemCode, err)
	}
	return nil
}

// InsertItemPrice stores a price observation. A missing ID is generated.
func (db *DB) InsertItemPrice(ctx context.Context, p *ItemPrice) (err error) {
	defer observe("insert", "item_prices", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PriceUpdateDate.IsZero() {
		p.PriceUpdateDate = db.now()
	}
	status := 0
	if p.Active {
		status = 1
	}
	var unitPrice interface{}
	if p.UnitPrice != nil {
		unitPrice = *p.UnitPrice
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO item_prices (id, item_code, store_id, price, unit_price, item_status, price_update_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ItemCode, p.StoreID, p.Price, unitPrice, status, p.PriceUpdateDate.UTC())
	if err != nil {
		return fmt.Errorf("insert price for %s: %w", p.ItemCode, err)
	}
	return nil
}

// FindItemByCode returns nil, nil when the code is unknown.
func (db *DB) FindItemByCode(ctx context.Context, code string) (item *recommend.CatalogItem, err error) {
	defer observe("select", "items", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var it recommend.CatalogItem
	err = db.conn.QueryRowContext(ctx, `SELECT item_code, name FROM items WHERE item_code = ?`, code).
		Scan(&it.ItemCode, &it.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find item %s: %w", code, err)
	}
	return &it, nil
}

// FindItemsByCodes returns the known items among codes, in code order.
// Unknown codes are omitted.
func (db *DB) FindItemsByCodes(ctx context.Context, codes []string) (items []recommend.CatalogItem, err error) {
	if len(codes) == 0 {
		return []recommend.CatalogItem{}, nil
	}
	defer observe("select", "items", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	wb := query.NewWhereBuilder()
	wb.AddIn("item_code", codes)
	where, args := wb.BuildWithPrefix()

	items, err = queryAndScan(ctx, db.conn,
		"SELECT item_code, name FROM items "+where+" ORDER BY item_code", args,
		func(rows *sql.Rows) (recommend.CatalogItem, error) {
			var it recommend.CatalogItem
			err := rows.Scan(&it.ItemCode, &it.Name)
			return it, err
		})
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	if items == nil {
		items = []recommend.CatalogItem{}
	}
	return items, nil
}

// BestActivePrice returns the lowest active price for itemCode across all
// stores, or nil, nil when there is none. Ties go to the most recent update.
func (db *DB) BestActivePrice(ctx context.Context, itemCode string) (info *recommend.PriceInfo, err error) {
	defer observe("select", "item_prices", time.Now(), &err)
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		p         recommend.PriceInfo
		storeName sql.NullString
	)
	err = db.conn.QueryRowContext(ctx, `
		SELECT p.price, COALESCE(s.name, s.store_id), c.name
		FROM item_prices p
		JOIN stores s ON s.id = p.store_id
		JOIN chains c ON c.chain_id = s.chain_id
		WHERE p.item_code = ? AND p.item_status = 1
		ORDER BY p.price ASC, p.price_update_date DESC, p.id ASC
		LIMIT 1`, itemCode).Scan(&p.Price, &storeName, &p.ChainName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("best price for %s: %w", itemCode, err)
	}
	p.StoreName = storeName.String
	return &p, nil
}
