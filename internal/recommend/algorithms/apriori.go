// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package algorithms

import (
	"context"
	"fmt"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	"github.com/tomtom215/basketwise/internal/recommend"
)

// ErrCandidateLimit is returned when a level generates more candidates than
// MiningConfig.MaxCandidates allows.
var ErrCandidateLimit = recommend.ErrCandidateLimit

// Apriori mines association rules with the Apriori algorithm over bitsets.
type Apriori struct {
	*MinerStats

	minSupport     float64
	minConfidence  float64
	minLift        float64
	maxItemsetSize int
	maxCandidates  int
}

// NewApriori creates an Apriori miner. Zero or out-of-range values fall back
// to recommend.DefaultConfig().Mining.
func NewApriori(cfg recommend.MiningConfig) *Apriori {
	defaults := recommend.DefaultConfig().Mining
	if cfg.MinSupport <= 0 || cfg.MinSupport > 1 {
		cfg.MinSupport = defaults.MinSupport
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		cfg.MinConfidence = defaults.MinConfidence
	}
	if cfg.MinLift < 0 {
		cfg.MinLift = defaults.MinLift
	}
	if cfg.MaxItemsetSize < 2 {
		cfg.MaxItemsetSize = defaults.MaxItemsetSize
	}
	if cfg.MaxCandidates < 1 {
		cfg.MaxCandidates = defaults.MaxCandidates
	}

	return &Apriori{
		MinerStats:     NewMinerStats("apriori"),
		minSupport:     cfg.MinSupport,
		minConfidence:  cfg.MinConfidence,
		minLift:        cfg.MinLift,
		maxItemsetSize: cfg.MaxItemsetSize,
		maxCandidates:  cfg.MaxCandidates,
	}
}

// bitset holds one bit per transaction.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << (uint(i) % 64)
}

func (b bitset) and(other bitset) bitset {
	out := make(bitset, len(b))
	for i := range b {
		out[i] = b[i] & other[i]
	}
	return out
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// itemset is a sorted slice of item indices with its transaction bitset.
type itemset struct {
	items []int
	bits  bitset
	count int
}

func itemsetKey(items []int) string {
	var sb strings.Builder
	for i, idx := range items {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}

// Mine returns the association rules found in transactions, sorted by
// confidence desc, lift desc, antecedent, then consequent. Rules carry no
// id, scope or timestamps; the caller assigns those when storing them.
func (a *Apriori) Mine(ctx context.Context, transactions []recommend.Transaction) ([]recommend.AssociationRule, error) {
	if len(transactions) == 0 {
		return nil, nil
	}
	if cancelled(ctx) {
		return nil, ctx.Err()
	}

	n := len(transactions)
	items, itemBits := indexItems(transactions)

	counts := make(map[string]int)
	level := make([]itemset, 0, len(items))
	for idx := range items {
		c := itemBits[idx].count()
		if a.frequent(c, n) {
			set := itemset{items: []int{idx}, bits: itemBits[idx], count: c}
			level = append(level, set)
			counts[itemsetKey(set.items)] = c
		}
	}

	var frequentSets []itemset
	for size := 2; size <= a.maxItemsetSize && len(level) > 1; size++ {
		if cancelled(ctx) {
			return nil, ctx.Err()
		}

		next, err := a.nextLevel(ctx, level, itemBits, counts, n)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", size, err)
		}
		frequentSets = append(frequentSets, next...)
		level = next
	}

	if cancelled(ctx) {
		return nil, ctx.Err()
	}

	rules := a.generateRules(frequentSets, items, counts, n)
	sortRules(rules)
	a.markMined()
	return rules, nil
}

// indexItems returns the distinct items in sorted order with one bitset per item.
func indexItems(transactions []recommend.Transaction) ([]string, []bitset) {
	seen := make(map[string]struct{})
	for _, tx := range transactions {
		for _, code := range tx {
			seen[code] = struct{}{}
		}
	}
	items := make([]string, 0, len(seen))
	for code := range seen {
		items = append(items, code)
	}
	sort.Strings(items)

	index := make(map[string]int, len(items))
	itemBits := make([]bitset, len(items))
	for i, code := range items {
		index[code] = i
		itemBits[i] = newBitset(len(transactions))
	}
	for t, tx := range transactions {
		for _, code := range tx {
			itemBits[index[code]].set(t)
		}
	}
	return items, itemBits
}

func (a *Apriori) frequent(count, n int) bool {
	return count > 0 && float64(count)/float64(n) >= a.minSupport
}

// nextLevel joins k-itemsets sharing a (k-1)-prefix, prunes candidates with
// an infrequent k-subset and keeps those meeting min support. level must be
// in lexicographic order; the result is too.
func (a *Apriori) nextLevel(ctx context.Context, level []itemset, itemBits []bitset, counts map[string]int, n int) ([]itemset, error) {
	var next []itemset
	candidates := 0

	for i := 0; i < len(level); i++ {
		if i%256 == 0 && cancelled(ctx) {
			return nil, ctx.Err()
		}
		left := level[i]
		k := len(left.items)

		for j := i + 1; j < len(level); j++ {
			right := level[j]
			if !samePrefix(left.items, right.items, k-1) {
				// Sorted order means no later j shares the prefix either.
				break
			}

			items := make([]int, k+1)
			copy(items, left.items)
			items[k] = right.items[k-1]

			if !allSubsetsFrequent(items, counts) {
				continue
			}

			candidates++
			if candidates > a.maxCandidates {
				return nil, fmt.Errorf("%w: more than %d candidates", ErrCandidateLimit, a.maxCandidates)
			}

			b := left.bits.and(itemBits[items[k]])
			c := b.count()
			if !a.frequent(c, n) {
				continue
			}
			next = append(next, itemset{items: items, bits: b, count: c})
		}
	}

	for _, set := range next {
		counts[itemsetKey(set.items)] = set.count
	}
	return next, nil
}

func samePrefix(a, b []int, length int) bool {
	for i := 0; i < length; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// allSubsetsFrequent checks every subset formed by dropping one element.
// The two subsets that formed the candidate are frequent by construction.
func allSubsetsFrequent(items []int, counts map[string]int) bool {
	if len(items) <= 2 {
		return true
	}
	sub := make([]int, 0, len(items)-1)
	for skip := 0; skip < len(items)-2; skip++ {
		sub = sub[:0]
		for i, idx := range items {
			if i != skip {
				sub = append(sub, idx)
			}
		}
		if _, ok := counts[itemsetKey(sub)]; !ok {
			return false
		}
	}
	return true
}

// generateRules emits every antecedent/consequent split of each frequent
// itemset that meets the confidence and lift thresholds.
func (a *Apriori) generateRules(sets []itemset, items []string, counts map[string]int, n int) []recommend.AssociationRule {
	var rules []recommend.AssociationRule
	total := float64(n)

	for _, set := range sets {
		k := len(set.items)
		support := float64(set.count) / total

		// Masks 1..2^k-2 select every non-empty proper subset as the antecedent.
		for mask := 1; mask < (1<<k)-1; mask++ {
			var ante, cons []int
			for i, idx := range set.items {
				if mask&(1<<i) != 0 {
					ante = append(ante, idx)
				} else {
					cons = append(cons, idx)
				}
			}

			anteCount := counts[itemsetKey(ante)]
			consCount := counts[itemsetKey(cons)]
			if anteCount == 0 || consCount == 0 {
				continue
			}

			confidence := float64(set.count) / float64(anteCount)
			lift := confidence * total / float64(consCount)
			if confidence < a.minConfidence || lift < a.minLift {
				continue
			}

			rules = append(rules, recommend.AssociationRule{
				Antecedent: codes(ante, items),
				Consequent: codes(cons, items),
				Support:    support,
				Confidence: confidence,
				Lift:       lift,
			})
		}
	}
	return rules
}

func codes(indices []int, items []string) []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = items[idx]
	}
	return out
}

func sortRules(rules []recommend.AssociationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		ri, rj := &rules[i], &rules[j]
		if ri.Confidence != rj.Confidence {
			return ri.Confidence > rj.Confidence
		}
		if ri.Lift != rj.Lift {
			return ri.Lift > rj.Lift
		}
		if c := compareCodes(ri.Antecedent, rj.Antecedent); c != 0 {
			return c < 0
		}
		return compareCodes(ri.Consequent, rj.Consequent) < 0
	})
}

func compareCodes(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}
