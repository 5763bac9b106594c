// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

// Package algorithms implements the association-rule miners used by the
// prediction engine.
//
// Each miner implements the recommend.Miner interface:
//
//	type Miner interface {
//	    Name() string
//	    Mine(ctx context.Context, transactions []Transaction) ([]AssociationRule, error)
//	}
//
// # Apriori
//
// Apriori finds frequent itemsets level by level. Every item carries a
// bitset with one bit per transaction, so the support of a candidate is the
// population count of the AND of its members' bitsets. Candidates of size
// k+1 are joined from frequent k-itemsets that share a (k-1)-prefix and are
// pruned unless every k-subset is frequent.
//
// Rules are emitted for every split of a frequent itemset of size two or more
// into a non-empty antecedent and consequent:
//
//	support(X -> Y)    = count(X ∪ Y) / N
//	confidence(X -> Y) = count(X ∪ Y) / count(X)
//	lift(X -> Y)       = confidence(X -> Y) / support(Y)
//
// # Determinism
//
// Items are indexed in sorted order and itemsets are generated in
// lexicographic order, so the same transactions always produce the same
// rules in the same order.
//
// # Thread Safety
//
// Miners hold no per-run state and are safe for concurrent use.
package algorithms
