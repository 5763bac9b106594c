// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

// Package query provides SQL WHERE clause building for the database package.
//
// Every value is bound through a ? placeholder:
//
//	wb := query.NewWhereBuilder()
//	wb.AddInOrNull("household_id", householdIDs)
//	wb.AddSince("created_at", cutoff)
//	wb.AddClause("confidence >= ?", 0.3)
//	where, args := wb.BuildWithPrefix()
//
// WhereBuilder instances are not safe for concurrent use.
package query
