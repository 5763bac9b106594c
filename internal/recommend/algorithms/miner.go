// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package algorithms

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/basketwise/internal/recommend"
)

var _ recommend.Miner = (*Apriori)(nil)

// MinerStats tracks completed runs for a miner. Safe for concurrent use.
type MinerStats struct {
	name        string
	runs        atomic.Int64
	lastMinedAt atomic.Int64 // unix nanos
}

// NewMinerStats returns stats for the named miner.
func NewMinerStats(name string) *MinerStats {
	return &MinerStats{name: name}
}

// Name returns the miner identifier used in metrics labels.
func (s *MinerStats) Name() string {
	return s.name
}

// Runs returns how many mining runs have completed.
func (s *MinerStats) Runs() int {
	return int(s.runs.Load())
}

// LastMinedAt returns when the last run completed, or the zero time.
func (s *MinerStats) LastMinedAt() time.Time {
	ns := s.lastMinedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *MinerStats) markMined() {
	s.lastMinedAt.Store(time.Now().UnixNano())
	s.runs.Add(1)
}

// cancelled reports whether ctx is done without blocking.
func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
