// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/basketwise/internal/validation"
)

const defaultPredictionLimit = 10

// householdRulesRequest holds the path parameter of a household regeneration.
type householdRulesRequest struct {
	HouseholdID string `json:"household_id" validate:"required,max=64"`
}

// PredictionsRequest holds the validated query of GET /api/v1/predictions.
type PredictionsRequest struct {
	UserID         string `json:"user_id" validate:"required,max=64"`
	ShoppingListID string `json:"shopping_list_id" validate:"omitempty,max=64"`
	Limit          int    `json:"limit" validate:"min=1,max=20"`
}

// parsePredictionsRequest reads the query. A missing limit defaults to 10;
// a limit that is not an integer is reported as a validation failure.
func parsePredictionsRequest(r *http.Request) (*PredictionsRequest, *validation.APIError) {
	q := r.URL.Query()
	req := &PredictionsRequest{
		UserID:         q.Get("user_id"),
		ShoppingListID: q.Get("shopping_list_id"),
		Limit:          defaultPredictionLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &validation.APIError{
				Code:    ErrCodeValidationFailed,
				Message: "limit must be an integer",
				Details: map[string]interface{}{"field": "limit", "value": raw},
			}
		}
		req.Limit = limit
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, verr.ToAPIError()
	}
	return req, nil
}
