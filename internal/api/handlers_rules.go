// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/basketwise/internal/logging"
	"github.com/tomtom215/basketwise/internal/recommend"
	"github.com/tomtom215/basketwise/internal/runstate"
	"github.com/tomtom215/basketwise/internal/validation"
)

// recentRunsLimit is how many runs the status endpoint lists.
const recentRunsLimit = 10

// GenerateRulesResponse is the body of a manual generation run.
type GenerateRulesResponse struct {
	Run   *runstate.Run              `json:"run"`
	Stats *recommend.GenerationStats `json:"stats"`
}

// ScopeRulesResponse is the body of a single-scope regeneration.
type ScopeRulesResponse struct {
	Scope          string  `json:"scope"`
	HouseholdID    *string `json:"household_id,omitempty"`
	RulesGenerated int     `json:"rules_generated"`
}

// RulesStatusResponse summarizes the run ledger.
type RulesStatusResponse struct {
	LastRun     *runstate.Run  `json:"last_run"`
	LastSuccess *runstate.Run  `json:"last_success"`
	RecentRuns  []runstate.Run `json:"recent_runs"`
}

// GenerateRules handles POST /api/v1/predictions/rules/generate. The batch
// runs in the request, bounded by the generation service's run timeout.
func (h *Handler) GenerateRules(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.runner == nil {
		rw.ServiceUnavailable("Rule generation is not configured")
		return
	}

	ctx := logging.ContextWithNewCorrelationID(r.Context())
	run, stats, err := h.runner.RunNow(ctx, runstate.TriggerManual)
	switch {
	case errors.Is(err, recommend.ErrGenerationInProgress):
		rw.Conflict("Rule generation already in progress")
	case err != nil:
		logging.Ctx(ctx).Error().Err(err).Msg("Manual rule generation failed")
		rw.ErrorWithDetails(http.StatusInternalServerError, ErrCodeInternalError, "Rule generation failed",
			GenerateRulesResponse{Run: run, Stats: stats})
	default:
		logging.Ctx(ctx).Info().Str("run_id", run.ID).Msg("Manual rule generation complete")
		rw.Success(GenerateRulesResponse{Run: run, Stats: stats})
	}
}

// GenerateHouseholdRules handles
// POST /api/v1/predictions/rules/generate/households/{household_id}.
func (h *Handler) GenerateHouseholdRules(w http.ResponseWriter, r *http.Request) {
	req := householdRulesRequest{HouseholdID: chi.URLParam(r, "household_id")}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	h.generateScope(w, r, recommend.HouseholdScope(req.HouseholdID))
}

// GenerateGlobalRules handles POST /api/v1/predictions/rules/generate/global.
func (h *Handler) GenerateGlobalRules(w http.ResponseWriter, r *http.Request) {
	h.generateScope(w, r, recommend.GlobalScope)
}

// generateScope regenerates one scope in the request. It is not recorded in
// the run ledger, which tracks full batches only.
func (h *Handler) generateScope(w http.ResponseWriter, r *http.Request, scope recommend.Scope) {
	rw := NewResponseWriter(w, r)
	if h.generator == nil {
		rw.ServiceUnavailable("Rule generation is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(logging.ContextWithNewCorrelationID(r.Context()), h.generationTimeout)
	defer cancel()

	n, err := h.generator.GenerateRules(ctx, scope)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("scope", scope.Key()).Msg("Scope rule generation failed")
		if errors.Is(err, context.DeadlineExceeded) {
			rw.ServiceUnavailable("Rule generation timed out")
			return
		}
		rw.InternalError("Rule generation failed")
		return
	}

	resp := ScopeRulesResponse{Scope: scope.Key(), RulesGenerated: n}
	if !scope.IsGlobal() {
		id := scope.HouseholdID
		resp.HouseholdID = &id
	}
	logging.Ctx(ctx).Info().Str("scope", scope.Key()).Int("rules", n).Msg("Scope rule generation complete")
	rw.Success(resp)
}

// RulesStatus handles GET /api/v1/predictions/rules/status.
func (h *Handler) RulesStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.runs == nil {
		rw.ServiceUnavailable("Run ledger is not configured")
		return
	}
	ctx := r.Context()

	status := RulesStatusResponse{}
	var err error
	if status.LastRun, err = h.runs.LastRun(ctx); err != nil && !errors.Is(err, runstate.ErrNoRuns) {
		rw.InternalError("Failed to read run ledger")
		return
	}
	if status.LastSuccess, err = h.runs.LastSuccessfulRun(ctx); err != nil && !errors.Is(err, runstate.ErrNoRuns) {
		rw.InternalError("Failed to read run ledger")
		return
	}
	if status.RecentRuns, err = h.runs.ListRuns(ctx, recentRunsLimit); err != nil {
		rw.InternalError("Failed to read run ledger")
		return
	}
	rw.Success(status)
}
