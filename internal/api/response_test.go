// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/basketwise/internal/logging"
)

func TestResponseWriterStatusForCode(t *testing.T) {
	tests := []struct {
		name       string
		write      func(rw *ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{"bad request", func(rw *ResponseWriter) { rw.BadRequest("x") }, http.StatusBadRequest, ErrCodeBadRequest},
		{"validation", func(rw *ResponseWriter) { rw.ValidationError("x", nil) }, http.StatusBadRequest, ErrCodeValidationFailed},
		{"forbidden", func(rw *ResponseWriter) { rw.Forbidden("x") }, http.StatusForbidden, ErrCodeForbidden},
		{"not found", func(rw *ResponseWriter) { rw.NotFound("x") }, http.StatusNotFound, ErrCodeNotFound},
		{"conflict", func(rw *ResponseWriter) { rw.Conflict("x") }, http.StatusConflict, ErrCodeConflict},
		{"internal", func(rw *ResponseWriter) { rw.InternalError("x") }, http.StatusInternalServerError, ErrCodeInternalError},
		{"unavailable", func(rw *ResponseWriter) { rw.ServiceUnavailable("x") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"unknown code", func(rw *ResponseWriter) { rw.fail("TEAPOT", "x", nil) }, http.StatusInternalServerError, "TEAPOT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(NewResponseWriter(rec, httptest.NewRequest(http.MethodGet, "/", nil)))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var env envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if env.Success || env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("envelope = %s", rec.Body.String())
			}
		})
	}
}

func TestResponseWriterSuccess(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logging.ContextWithRequestID(req.Context(), "req-7"))
	rec := httptest.NewRecorder()

	NewResponseWriter(rec, req).Success(map[string]int{"rules": 3})

	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
		t.Errorf("Content-Type = %q", got)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !env.Success || env.Meta == nil || env.Meta.RequestID != "req-7" {
		t.Errorf("envelope = %s", rec.Body.String())
	}
	if string(env.Data) != `{"rules":3}` {
		t.Errorf("data = %s", env.Data)
	}
}

func TestResponseWriterEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	NewResponseWriter(rec, httptest.NewRequest(http.MethodGet, "/", nil)).Success(make(chan int))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
