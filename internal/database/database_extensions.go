// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/basketwise/internal/logging"
)

// extensionContext returns a context with timeout for extension operations
func extensionContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// extensionSpec defines a DuckDB extension the store can use when present
type extensionSpec struct {
	// Name is the extension name (e.g., "json")
	Name string
	// VerifyQuery is run after LOAD to confirm the extension works
	VerifyQuery string
	// AvailabilityField points at the DB field tracking availability
	AvailabilityField func(*DB) *bool
	// WarningMessage is logged when the extension is unavailable
	WarningMessage string
}

// loadExtensions loads the optional extensions. Nothing is installed from the
// network; bundled extensions load, everything else is reported unavailable.
func (db *DB) loadExtensions() {
	specs := []*extensionSpec{
		{
			Name:              "json",
			VerifyQuery:       `SELECT json_extract('{"name":"test"}', '$.name')::VARCHAR`,
			AvailabilityField: func(db *DB) *bool { return &db.jsonAvailable },
			WarningMessage:    "JSON extension unavailable, purchase frequencies will be aggregated in Go",
		},
	}
	for _, spec := range specs {
		db.loadExtension(spec)
	}
}

func (db *DB) loadExtension(spec *extensionSpec) {
	ctx, cancel := extensionContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, fmt.Sprintf("LOAD %s;", spec.Name)); err != nil {
		logging.Debug().Str("extension", spec.Name).Err(err).Msg("Failed to load extension")
		db.setExtensionUnavailable(spec)
		return
	}

	if spec.VerifyQuery != "" {
		var result string
		if err := db.conn.QueryRowContext(ctx, spec.VerifyQuery).Scan(&result); err != nil {
			logging.Debug().Str("extension", spec.Name).Err(err).Msg("Extension verification failed")
			db.setExtensionUnavailable(spec)
			return
		}
	}

	if field := spec.AvailabilityField; field != nil {
		*field(db) = true
	}
	logging.Debug().Str("extension", spec.Name).Msg("Extension loaded")
}

// setExtensionUnavailable marks an extension as unavailable and logs warning
func (db *DB) setExtensionUnavailable(spec *extensionSpec) {
	if field := spec.AvailabilityField; field != nil {
		*field(db) = false
	}
	if spec.WarningMessage != "" {
		logging.Warn().Str("extension", spec.Name).Msg(spec.WarningMessage)
	}
}
