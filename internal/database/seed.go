// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package database

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tomtom215/basketwise/internal/logging"
	"github.com/tomtom215/basketwise/internal/recommend"
)

// Demo identifiers created by SeedDemoData.
const (
	DemoHouseholdID    = "demo-household"
	DemoUserID         = "demo-user"
	DemoShoppingListID = "demo-list"
)

// demoItems is the demo catalog: code, name, price at the two demo stores.
var demoItems = []struct {
	code   string
	name   string
	prices [2]float64
}{
	{"7290000000011", "Milk 3%", [2]float64{6.90, 6.50}},
	{"7290000000028", "Bread", [2]float64{8.40, 8.90}},
	{"7290000000035", "Eggs L", [2]float64{13.90, 12.90}},
	{"7290000000042", "Butter", [2]float64{9.90, 10.50}},
	{"7290000000059", "Coffee", [2]float64{24.90, 22.90}},
	{"7290000000066", "Apples", [2]float64{11.90, 12.40}},
	{"7290000000073", "Pasta", [2]float64{5.90, 4.90}},
	{"7290000000080", "Tomato Sauce", [2]float64{7.50, 7.90}},
}

// demoBaskets are the purchase patterns repeated across the demo history.
var demoBaskets = [][]int{
	{0, 1, 2},    // milk, bread, eggs
	{0, 1, 3},    // milk, bread, butter
	{6, 7},       // pasta, tomato sauce
	{0, 4},       // milk, coffee
	{0, 1, 2, 5}, // milk, bread, eggs, apples
}

// SeedDemoData inserts a demo household with a price catalog, two months of
// completed lists and one open list. It is a no-op when the demo household
// already exists.
func (db *DB) SeedDemoData(ctx context.Context) error {
	var exists int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM households WHERE id = ?`, DemoHouseholdID).Scan(&exists); err != nil {
		return fmt.Errorf("check demo household: %w", err)
	}
	if exists > 0 {
		return nil
	}

	logging.Info().Msg("Seeding database with demo household data...")

	if err := db.CreateHousehold(ctx, &Household{ID: DemoHouseholdID, Name: "Demo Household"}); err != nil {
		return err
	}
	if err := db.AddHouseholdMember(ctx, DemoUserID, DemoHouseholdID, "owner"); err != nil {
		return err
	}

	if err := db.seedCatalog(ctx); err != nil {
		return err
	}

	// Fixed seed so every demo database looks the same.
	rng := rand.New(rand.NewSource(42))
	now := db.now()
	const lists = 40
	for i := 0; i < lists; i++ {
		basket := demoBaskets[i%len(demoBaskets)]
		items := make([]recommend.HistoryItem, 0, len(basket))
		for _, idx := range basket {
			code := demoItems[idx].code
			items = append(items, recommend.HistoryItem{
				Name:        demoItems[idx].name,
				ItemCode:    &code,
				Quantity:    float64(1 + rng.Intn(3)),
				IsPurchased: true,
			})
		}
		completedAt := now.Add(-time.Duration(lists-i) * 36 * time.Hour)
		if err := db.InsertCompletedList(ctx, &CompletedList{
			ShoppingListID: fmt.Sprintf("demo-history-%02d", i),
			HouseholdID:    DemoHouseholdID,
			Items:          items,
			CompletedBy:    DemoUserID,
			CompletedAt:    completedAt,
		}); err != nil {
			return err
		}
	}

	if err := db.CreateShoppingList(ctx, &ShoppingList{
		ID:          DemoShoppingListID,
		HouseholdID: DemoHouseholdID,
		OwnerID:     DemoUserID,
		Name:        "This week",
	}); err != nil {
		return err
	}
	milk := demoItems[0].code
	if err := db.AddShoppingItem(ctx, &ShoppingItem{
		ShoppingListID: DemoShoppingListID,
		Name:           demoItems[0].name,
		ItemCode:       &milk,
		AddedByID:      DemoUserID,
	}); err != nil {
		return err
	}

	logging.Info().Int("completed_lists", lists).Msg("Demo data seeded")
	return nil
}

func (db *DB) seedCatalog(ctx context.Context) error {
	if err := db.UpsertChain(ctx, Chain{ChainID: "7290027600007", Name: "Demo Market"}); err != nil {
		return err
	}
	stores := []*Store{
		{ID: "demo-store-1", StoreID: "001", ChainID: "7290027600007", Name: "Demo Market Center", City: "Tel Aviv"},
		{ID: "demo-store-2", StoreID: "002", ChainID: "7290027600007", Name: "Demo Market North", City: "Haifa"},
	}
	for _, s := range stores {
		if err := db.UpsertStore(ctx, s); err != nil {
			return err
		}
	}

	for _, it := range demoItems {
		if err := db.UpsertItem(ctx, Item{ItemCode: it.code, Name: it.name}); err != nil {
			return err
		}
		for i, s := range stores {
			if err := db.InsertItemPrice(ctx, &ItemPrice{
				ItemCode: it.code,
				StoreID:  s.ID,
				Price:    it.prices[i],
				Active:   true,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
