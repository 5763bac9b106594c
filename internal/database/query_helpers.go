// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package database

import (
	"context"
	"database/sql"
)

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// scanFunc maps the current row to T.
type scanFunc[T any] func(*sql.Rows) (T, error)

// queryAndScan runs query on q and maps every row with scan. No rows yields a
// nil slice.
func queryAndScan[T any](ctx context.Context, q querier, query string, args []interface{}, scan scanFunc[T]) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(rows)
	return collectRows(rows, scan)
}

func collectRows[T any](rows *sql.Rows, scan scanFunc[T]) ([]T, error) {
	var results []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func scanString(rows *sql.Rows) (string, error) {
	var s string
	err := rows.Scan(&s)
	return s, err
}

// queryStrings runs a single-column string query. No rows yields an empty,
// non-nil slice.
func queryStrings(ctx context.Context, q querier, query string, args ...interface{}) ([]string, error) {
	values, err := queryAndScan(ctx, q, query, args, scanString)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
