// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

/*
Package main is the entry point for the Basketwise prediction server.

Basketwise suggests items for a household's next shopping list. It mines
association rules from completed lists, matches them against the items
already in the basket, falls back to purchase frequency, and attaches the
cheapest current price from the store catalog.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("basketwise")
	├── DataSupervisor ("data-layer")
	│   └── Rule Generation Service (scheduled Apriori batch)
	├── MessagingSupervisor ("messaging-layer")
	│   └── Event Bus (watermill gochannel router)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog, bridged to slog for the supervisor and watermill
 3. Database: DuckDB holding history, catalog, households and rules
 4. Run ledger: BadgerDB record of generation runs
 5. Event bus: rule replacement notifications that invalidate caches
 6. Engine: prediction pipeline with a circuit breaker around price lookups
 7. HTTP server: chi router with CORS, rate limiting and Prometheus metrics

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops the HTTP
server (draining in-flight requests), the generation service and the bus,
then the ledger and database are closed.

# Example Usage

	export DUCKDB_PATH=/data/basketwise.duckdb
	export RUNSTATE_PATH=/data/runstate
	export SEED_DEMO_DATA=true
	./basketwise

	curl 'http://localhost:8080/api/v1/predictions?user_id=demo-user&shopping_list_id=demo-list'
*/
package main
