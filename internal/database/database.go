// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/basketwise/internal/config"
	"github.com/tomtom215/basketwise/internal/events"
	"github.com/tomtom215/basketwise/internal/logging"
)

// RulesPublisher receives a notification after every committed rule swap.
type RulesPublisher interface {
	PublishRulesReplaced(ctx context.Context, evt events.RulesReplaced) error
}

// DB wraps the DuckDB connection and implements the recommend repositories.
type DB struct {
	conn          *sql.DB
	cfg           *config.DatabaseConfig
	jsonAvailable bool // Tracks whether the json extension is loaded

	// Per-scope write locks so rule swaps for one scope never interleave
	scopeLocks sync.Map

	publisherMu sync.RWMutex
	publisher   RulesPublisher

	now func() time.Time
}

// New opens the database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	preserveOrder := "true"
	if !cfg.PreserveInsertionOrder {
		preserveOrder = "false"
	}

	// Disable auto-install/auto-load; extensions are loaded explicitly by loadExtensions()
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory, preserveOrder)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:          conn,
		cfg:           cfg,
		jsonAvailable: true,
		now:           func() time.Time { return time.Now().UTC() },
	}

	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.SeedDemoData {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := db.SeedDemoData(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to seed demo data")
		}
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Bool("json", db.jsonAvailable).
		Msg("Database opened")

	return db, nil
}

// SetRulesPublisher installs the publisher notified after rule swaps. A nil
// publisher disables notifications.
func (db *DB) SetRulesPublisher(p RulesPublisher) {
	db.publisherMu.Lock()
	db.publisher = p
	db.publisherMu.Unlock()
}

func (db *DB) rulesPublisher() RulesPublisher {
	db.publisherMu.RLock()
	defer db.publisherMu.RUnlock()
	return db.publisher
}

// IsJSONAvailable returns whether the json extension is available
func (db *DB) IsJSONAvailable() bool {
	return db.jsonAvailable
}

// Conn returns the underlying SQL database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close checkpoints and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	// Flush the WAL so the next startup does not replay it.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	cancel()

	return db.conn.Close()
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// initialize loads extensions, creates tables, runs migrations and indexes
func (db *DB) initialize() error {
	db.loadExtensions()

	if err := db.createTables(); err != nil {
		return err
	}

	if err := db.runVersionedMigrations(); err != nil {
		return err
	}

	if err := db.createIndexes(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}

	return nil
}

// configureConnectionPool sets connection pool parameters
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}
