// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package recommend

import (
	"strings"

	"github.com/tomtom215/basketwise/internal/cache"
	"github.com/tomtom215/basketwise/internal/metrics"
)

// RuleCache caches eligible rule sets per household set and catalog names
// per item code. A nil *RuleCache is valid and caches nothing.
type RuleCache struct {
	rules *cache.LRUCache[[]AssociationRule]
	names *cache.LRUCache[string]
}

// NewRuleCache returns nil when caching is disabled.
func NewRuleCache(cfg CacheConfig) *RuleCache {
	if !cfg.Enabled {
		return nil
	}
	return &RuleCache{
		rules: cache.NewLRUCache[[]AssociationRule](cfg.MaxEntries, cfg.TTL),
		names: cache.NewLRUCache[string](cfg.MaxEntries*4, cfg.TTL),
	}
}

// Rules returns the cached eligible rules for a household key.
func (c *RuleCache) Rules(key string) ([]AssociationRule, bool) {
	if c == nil {
		return nil, false
	}
	rules, ok := c.rules.Get(key)
	metrics.RecordCacheLookup("rules", ok)
	return rules, ok
}

// StoreRules caches the eligible rules for a household key.
func (c *RuleCache) StoreRules(key string, rules []AssociationRule) {
	if c == nil {
		return
	}
	c.rules.Add(key, rules)
}

// Names returns cached names for codes and the codes that missed.
func (c *RuleCache) Names(codes []string) (map[string]string, []string) {
	found := make(map[string]string, len(codes))
	if c == nil {
		return found, codes
	}
	var missing []string
	for _, code := range codes {
		if name, ok := c.names.Get(code); ok {
			found[code] = name
			continue
		}
		missing = append(missing, code)
	}
	metrics.CacheHits.WithLabelValues("catalog").Add(float64(len(found)))
	metrics.CacheMisses.WithLabelValues("catalog").Add(float64(len(missing)))
	return found, missing
}

// StoreName caches a catalog name.
func (c *RuleCache) StoreName(code, name string) {
	if c == nil {
		return
	}
	c.names.Add(code, name)
}

// Invalidate drops rule sets affected by a replacement in scope. A global
// replacement affects every set; a household replacement affects the sets
// that include the household. It returns the number of entries removed.
func (c *RuleCache) Invalidate(scope Scope) int {
	if c == nil {
		return 0
	}

	var removed int
	if scope.IsGlobal() {
		removed = c.rules.Len()
		c.rules.Clear()
	} else {
		removed = c.rules.RemoveFunc(func(key string) bool {
			for _, id := range strings.Split(key, ",") {
				if id == scope.HouseholdID {
					return true
				}
			}
			return false
		})
	}
	if removed > 0 {
		metrics.CacheInvalidations.WithLabelValues("rules").Add(float64(removed))
	}
	return removed
}
