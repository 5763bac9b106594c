// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package query

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder constructs SQL WHERE clauses with parameterized arguments.
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddHouseholds([]string{"h1", "h2"})
//	wb.AddSince("completed_at", since)
//	whereClause, args := wb.Build()
//	// household_id IN (?, ?) AND completed_at >= ?
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// AddClause adds a raw WHERE clause with its arguments.
//
// Parameters:
//   - clause: SQL condition fragment (e.g., "confidence >= ?")
//   - args: Arguments to bind to placeholders in the clause
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddIn adds "column IN (?, ...)". An empty values slice is skipped.
func (wb *WhereBuilder) AddIn(column string, values []string) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s IN (%s)", column, wb.bind(values)))
	return wb
}

// AddInOrNull adds "(column IN (?, ...) OR column IS NULL)". With no values
// only NULL rows match.
func (wb *WhereBuilder) AddInOrNull(column string, values []string) *WhereBuilder {
	if len(values) == 0 {
		wb.clauses = append(wb.clauses, column+" IS NULL")
		return wb
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("(%s IN (%s) OR %s IS NULL)", column, wb.bind(values), column))
	return wb
}

// AddHouseholds filters by household_id. An empty slice means every household.
func (wb *WhereBuilder) AddHouseholds(householdIDs []string) *WhereBuilder {
	return wb.AddIn("household_id", householdIDs)
}

// AddSince adds "column >= ?". A zero time is skipped.
func (wb *WhereBuilder) AddSince(column string, since time.Time) *WhereBuilder {
	if since.IsZero() {
		return wb
	}
	wb.clauses = append(wb.clauses, column+" >= ?")
	wb.args = append(wb.args, since.UTC())
	return wb
}

func (wb *WhereBuilder) bind(values []string) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		wb.args = append(wb.args, v)
	}
	return strings.Join(placeholders, ", ")
}

// Build constructs the final WHERE clause and returns it with arguments.
// Clauses are joined with "AND". Returns ("1=1", []) if no clauses were added.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns the WHERE clause with "WHERE " prefix.
func (wb *WhereBuilder) BuildWithPrefix() (string, []interface{}) {
	whereClause, args := wb.Build()
	return "WHERE " + whereClause, args
}

// Count returns the number of clauses added to the builder.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty returns true if no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
