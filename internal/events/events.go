// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

// Package events carries in-process domain events over a watermill
// GoChannel pub/sub.
//
// The rule store publishes RulesReplaced after every committed swap and the
// prediction engine subscribes to drop cached rule sets:
//
//	bus, _ := events.NewBus(events.DefaultConfig(), slogLogger)
//	bus.OnRulesReplaced("rule-cache", func(ctx context.Context, evt events.RulesReplaced) error {
//	    cache.Invalidate(evt.HouseholdID)
//	    return nil
//	})
//	go bus.Run(ctx)
//
// Delivery is at-most-once within the process. Events published while the
// router is not running are dropped.
package events

import (
	"time"
)

// TopicRulesReplaced is published after a scope's rules are replaced.
const TopicRulesReplaced = "rules.replaced"

// Scope values carried by RulesReplaced.
const (
	ScopeGlobal    = "global"
	ScopeHousehold = "household"
)

// RulesReplaced announces a committed rule replacement.
type RulesReplaced struct {
	Scope       string    `json:"scope"`
	HouseholdID *string   `json:"household_id"`
	RuleCount   int       `json:"rule_count"`
	ReplacedAt  time.Time `json:"replaced_at"`
}

// IsGlobal reports whether the replacement was for the global scope.
func (e *RulesReplaced) IsGlobal() bool {
	return e.Scope == ScopeGlobal || e.HouseholdID == nil
}
