// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

// Package database is the DuckDB store behind the prediction engine.
//
// # Overview
//
// DB implements every repository the recommend package depends on:
//
//   - HistoryRepository: completed list snapshots and purchase frequencies
//   - CatalogRepository and PriceRepository: items, chains, stores, prices
//   - HouseholdRepository: membership and recently active households
//   - ShoppingListRepository: the unpurchased basket of an open list
//   - RuleStore: mined association rules, replaced per scope
//
// # Files
//
//   - database.go: lifecycle (open, pool, initialize, close)
//   - database_extensions.go: optional extension loading (json)
//   - database_schema.go: tables and indexes
//   - migrations.go: versioned schema migrations
//   - rules.go: rule store with per-scope write locks and replace events
//   - history.go: completed lists and frequency aggregation
//   - catalog.go, households.go, shopping_lists.go: reference data
//   - seed.go: demo data for local runs
//
// # Rule Replacement
//
// ReplaceRules deletes and inserts inside one transaction while holding a
// per-scope mutex, so concurrent swaps of the same scope serialize and
// readers never observe a partial set. After commit a RulesReplaced event
// is sent to the publisher installed with SetRulesPublisher.
//
// # Frequencies
//
// ItemFrequencies unnests the JSON items column with from_json when the json
// extension is available and otherwise aggregates the decoded records in Go.
// Both paths return identical results.
//
// # Thread Safety
//
// DB is safe for concurrent use. Queries without a deadline get a 30 second
// timeout.
package database
