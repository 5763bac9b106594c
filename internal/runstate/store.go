// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

// Package runstate keeps a durable ledger of rule generation runs in BadgerDB.
//
// Every batch run is stored under a time-ordered key so the most recent runs
// can be listed newest first. Two pointer keys track the latest run and the
// latest successful run; the generation service uses the latter to skip its
// startup run after a restart when the rules are still fresh.
package runstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/basketwise/internal/logging"
)

// Key layout.
const (
	prefixRun      = "run:"
	keyLast        = "last"
	keyLastSuccess = "last_success"
)

// Trigger values for Run.Trigger.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

var (
	// ErrNoRuns is returned when the ledger holds no matching run.
	ErrNoRuns = errors.New("no generation runs recorded")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("run ledger closed")
)

// Run is one recorded rule generation batch.
type Run struct {
	ID                  string    `json:"id"`
	Trigger             string    `json:"trigger"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
	HouseholdsProcessed int       `json:"households_processed"`
	RulesGenerated      int       `json:"rules_generated"`
	FailedHouseholds    int       `json:"failed_households"`
	RulesPruned         int64     `json:"rules_pruned"`
	Error               string    `json:"error,omitempty"`
}

// Succeeded reports whether the run completed without a batch error.
func (r *Run) Succeeded() bool {
	return r.Error == ""
}

// Duration returns the wall time of the run.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Config configures the ledger.
type Config struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the ledger in memory only.
	InMemory bool

	// MaxRuns bounds how many runs are retained; older runs are deleted on
	// write. Zero keeps the default of 100.
	MaxRuns int
}

const defaultMaxRuns = 100

// Store is the BadgerDB-backed run ledger.
type Store struct {
	db      *badger.DB
	maxRuns int

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the ledger.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("runstate path is required unless in_memory is set")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = newBadgerLogger()
	// The ledger is tiny; keep badger's memory footprint small.
	opts.MemTableSize = 8 << 20
	opts.ValueLogFileSize = 16 << 20
	opts.NumCompactors = 2

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	maxRuns := cfg.MaxRuns
	if maxRuns <= 0 {
		maxRuns = defaultMaxRuns
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Run ledger opened")

	return &Store{db: db, maxRuns: maxRuns}, nil
}

// Close closes the underlying database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func runKey(startedAt time.Time) []byte {
	// Zero-padded so lexical order matches chronological order.
	return []byte(fmt.Sprintf("%s%020d", prefixRun, startedAt.UnixNano()))
}

// RecordRun stores a run and updates the pointer keys. A missing ID is
// filled with a new UUID.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		return errors.New("run started_at is required")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := runKey(run.StartedAt)
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set([]byte(keyLast), key); err != nil {
			return err
		}
		if run.Succeeded() {
			return txn.Set([]byte(keyLastSuccess), key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	if err := s.trim(); err != nil {
		logging.Warn().Err(err).Msg("Failed to trim run ledger")
	}
	return nil
}

// trim deletes runs beyond maxRuns, oldest first. Runs referenced by the
// pointer keys are kept.
func (s *Store) trim() error {
	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		pinned := make(map[string]bool, 2)
		for _, ptr := range []string{keyLast, keyLastSuccess} {
			if key, err := pointer(txn, ptr); err == nil {
				pinned[string(key)] = true
			}
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRun)
		seen := 0
		for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
			seen++
			if seen <= s.maxRuns {
				continue
			}
			key := it.Item().KeyCopy(nil)
			if !pinned[string(key)] {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

// LastRun returns the most recent run, or ErrNoRuns.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	return s.runAt(ctx, keyLast)
}

// LastSuccessfulRun returns the most recent run without a batch error, or
// ErrNoRuns.
func (s *Store) LastSuccessfulRun(ctx context.Context) (*Run, error) {
	return s.runAt(ctx, keyLastSuccess)
}

func (s *Store) runAt(ctx context.Context, ptr string) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var run Run
	err := s.db.View(func(txn *badger.Txn) error {
		key, err := pointer(txn, ptr)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("read %s run: %w", ptr, err)
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every retained run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	runs := make([]Run, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRun)
		for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && len(runs) >= limit {
				break
			}

			item := it.Item()
			var run Run
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable run")
				continue
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func pointer(txn *badger.Txn, ptr string) ([]byte, error) {
	item, err := txn.Get([]byte(ptr))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// seekLast returns the key a reverse iterator seeks to for the last key
// under prefix.
func seekLast(prefix []byte) []byte {
	key := make([]byte, len(prefix), len(prefix)+1)
	copy(key, prefix)
	return append(key, 0xFF)
}
