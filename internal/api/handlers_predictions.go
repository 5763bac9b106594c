// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package api

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/tomtom215/basketwise/internal/database"
	"github.com/tomtom215/basketwise/internal/logging"
	"github.com/tomtom215/basketwise/internal/recommend"
)

// Predictions handles GET /api/v1/predictions.
//
// A shopping_list_id must name an existing list (404) owned by one of the
// user's households (403).
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req, apiErr := parsePredictionsRequest(r)
	if apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	ctx, cancel := context.WithTimeout(logging.ContextWithUserID(r.Context(), req.UserID), h.requestTimeout)
	defer cancel()

	var listID *string
	if req.ShoppingListID != "" {
		ok := h.authorizeList(ctx, rw, req.UserID, req.ShoppingListID)
		if !ok {
			return
		}
		listID = &req.ShoppingListID
	}

	resp, err := h.engine.GetPredictions(ctx, recommend.PredictionRequest{
		UserID:         req.UserID,
		ShoppingListID: listID,
		Limit:          req.Limit,
	})
	if err != nil {
		if errors.Is(err, recommend.ErrInvalidRequest) {
			rw.ValidationError(err.Error(), nil)
			return
		}
		logging.Ctx(ctx).Error().Err(err).Msg("Prediction request failed")
		rw.InternalError("Failed to generate predictions")
		return
	}

	logging.Ctx(ctx).Debug().
		Int("predictions", len(resp.Predictions)).
		Msg("Predictions served")
	rw.Success(resp)
}

// authorizeList writes the error response and returns false when the list
// is unknown or belongs to another household.
func (h *Handler) authorizeList(ctx context.Context, rw *ResponseWriter, userID, listID string) bool {
	owner, err := h.lists.ShoppingListHousehold(ctx, listID)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Shopping list not found")
		return false
	}
	if err != nil {
		rw.DatabaseError(err)
		return false
	}

	households, err := h.lists.HouseholdsForUser(ctx, userID)
	if err != nil {
		rw.DatabaseError(err)
		return false
	}
	if !slices.Contains(households, owner) {
		rw.Forbidden("Shopping list belongs to another household")
		return false
	}
	return true
}
