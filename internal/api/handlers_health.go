// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/basketwise/internal/logging"
)

// readinessTimeout bounds the database ping of the readiness probe.
const readinessTimeout = 2 * time.Second

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status            string  `json:"status"`
	DatabaseConnected bool    `json:"database_connected,omitempty"`
	Uptime            float64 `json:"uptime_seconds"`
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthStatus{
		Status: "alive",
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready. It returns 503 until the
// database answers a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()
	if h.db == nil {
		rw.ServiceUnavailable("Database not configured")
		return
	}
	if err := h.db.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
		rw.ServiceUnavailable("Database unavailable")
		return
	}
	rw.Success(HealthStatus{
		Status:            "ready",
		DatabaseConnected: true,
		Uptime:            time.Since(h.startTime).Seconds(),
	})
}
