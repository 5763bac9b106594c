// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/basketwise/internal/logging"
	"github.com/tomtom215/basketwise/internal/metrics"
)

func TestRequestIDWithLogging(t *testing.T) {
	var seenRequestID, seenChiID, seenCorrelation string
	handler := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenRequestID = logging.RequestIDFromContext(r.Context())
		seenChiID = chimiddleware.GetReqID(r.Context())
		seenCorrelation = logging.CorrelationIDFromContext(r.Context())
	}))

	t.Run("propagates the incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(chimiddleware.RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(chimiddleware.RequestIDHeader); got != "req-123" {
			t.Errorf("response header = %q, want req-123", got)
		}
		if seenRequestID != "req-123" || seenChiID != "req-123" {
			t.Errorf("context ids = %q / %q, want req-123", seenRequestID, seenChiID)
		}
		if seenCorrelation == "" {
			t.Error("correlation id not set")
		}
	})

	t.Run("generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		got := rec.Header().Get(chimiddleware.RequestIDHeader)
		if got == "" {
			t.Fatal("no request id generated")
		}
		if seenRequestID != got {
			t.Errorf("context id = %q, header = %q", seenRequestID, got)
		}
	})
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Minute
	router := NewRouter(NewHandler(HandlerDeps{Runs: &fakeRuns{}}), NewChiMiddleware(cfg))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions/rules/status", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestRateLimitDisabled(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 1
	cfg.RateLimitDisabled = true
	router := NewRouter(NewHandler(HandlerDeps{Runs: &fakeRuns{}}), NewChiMiddleware(cfg))

	for i := range 3 {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/predictions/rules/status", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
}

func TestPrometheusMetricsUsesRoutePattern(t *testing.T) {
	router := newTestRouter(HandlerDeps{Runs: &fakeRuns{}})
	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/predictions/rules/status", "200")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/predictions/rules/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("request counter delta = %v, want 1", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"https://app.example.com"}
	router := NewRouter(NewHandler(HandlerDeps{}), NewChiMiddleware(cfg))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/predictions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow origin = %q", got)
	}
}
