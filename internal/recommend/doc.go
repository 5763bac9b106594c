// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

// Package recommend predicts which items a household is likely to add to a
// shopping list next.
//
// # Architecture
//
// Rules are mined offline and matched at request time:
//
//	completed lists -> Extractor -> transactions -> Miner -> RuleStore
//	basket + RuleStore + catalog -> Engine -> PriceEnricher -> predictions
//
// A prediction request runs these stages in order:
//
//  1. Resolve the user's households.
//  2. Read the unpurchased item codes of the shopping list (the basket).
//  3. Match eligible household and global rules against the basket.
//  4. If the household set has no rules at all, mine them synchronously
//     and match again.
//  5. Fill remaining slots with the household's most purchased items.
//  6. Truncate and attach current prices.
//
// Each stage degrades to fewer predictions on repository errors. Only an
// invalid request returns an error.
//
// # Usage
//
//	engine, err := recommend.NewEngine(recommend.DefaultConfig(), recommend.Dependencies{
//	    History:    db,
//	    Catalog:    db,
//	    Prices:     recommend.NewBreakerPriceRepository(db, recommend.DefaultBreakerSettings(), logger),
//	    Households: db,
//	    Lists:      db,
//	    Rules:      db,
//	    Miner:      algorithms.NewApriori(cfg.Mining),
//	}, logger)
//
//	resp, err := engine.GetPredictions(ctx, recommend.PredictionRequest{
//	    UserID: userID,
//	    Limit:  10,
//	})
//
// # Thread Safety
//
// The engine is safe for concurrent use. Mining runs are bounded by a
// semaphore of Generation.MiningWorkers slots and GenerateAllRules runs at
// most once at a time.
package recommend
