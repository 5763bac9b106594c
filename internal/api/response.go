// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/basketwise/internal/logging"
)

// APIResponse is the response envelope of every JSON endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details contains additional error details (optional)
	Details interface{} `json:"details,omitempty"`

	// RequestID is the request ID for tracing
	RequestID string `json:"request_id,omitempty"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeDatabaseError      = "DATABASE_ERROR"
)

// codeStatus is the HTTP status written for each error code.
var codeStatus = map[string]int{
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeValidationFailed:   http.StatusBadRequest,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeInternalError:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
}

// ResponseWriter writes APIResponse envelopes. Predictions depend on live
// basket state, so every envelope is sent with Cache-Control: no-store.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a new response writer.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{
		w:         w,
		r:         r,
		startTime: time.Now(),
	}
}

func (rw *ResponseWriter) meta() *APIMeta {
	return &APIMeta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		DurationMs: time.Since(rw.startTime).Milliseconds(),
	}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.writeJSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: rw.meta()})
}

// Error writes an error envelope with an explicit status code.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.ErrorWithDetails(statusCode, code, message, nil)
}

// ErrorWithDetails writes an error envelope carrying details.
func (rw *ResponseWriter) ErrorWithDetails(statusCode int, code, message string, details interface{}) {
	meta := rw.meta()
	rw.writeJSON(statusCode, APIResponse{
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: meta.RequestID,
		},
		Meta: meta,
	})
}

// fail writes an error envelope with the status registered for code.
func (rw *ResponseWriter) fail(code, message string, details interface{}) {
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	rw.ErrorWithDetails(status, code, message, details)
}

// BadRequest writes a 400.
func (rw *ResponseWriter) BadRequest(message string) { rw.fail(ErrCodeBadRequest, message, nil) }

// ValidationError writes a 400 with field-level details. A nil map is
// omitted from the body.
func (rw *ResponseWriter) ValidationError(message string, details map[string]interface{}) {
	if len(details) == 0 {
		rw.fail(ErrCodeValidationFailed, message, nil)
		return
	}
	rw.fail(ErrCodeValidationFailed, message, details)
}

// Forbidden writes a 403.
func (rw *ResponseWriter) Forbidden(message string) { rw.fail(ErrCodeForbidden, message, nil) }

// NotFound writes a 404.
func (rw *ResponseWriter) NotFound(message string) { rw.fail(ErrCodeNotFound, message, nil) }

// Conflict writes a 409.
func (rw *ResponseWriter) Conflict(message string) { rw.fail(ErrCodeConflict, message, nil) }

// InternalError writes a 500.
func (rw *ResponseWriter) InternalError(message string) { rw.fail(ErrCodeInternalError, message, nil) }

// ServiceUnavailable writes a 503.
func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.fail(ErrCodeServiceUnavailable, message, nil)
}

// DatabaseError logs err and writes a 500 without exposing it.
func (rw *ResponseWriter) DatabaseError(err error) {
	logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Database error")
	rw.fail(ErrCodeDatabaseError, "A database error occurred", nil)
}

// writeJSON encodes before writing the header, so an unencodable payload
// becomes a plain 500 instead of a truncated body.
func (rw *ResponseWriter) writeJSON(statusCode int, body APIResponse) {
	payload, err := json.Marshal(body)
	if err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(rw.w, `{"success":false}`, http.StatusInternalServerError)
		return
	}

	h := rw.w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	rw.w.WriteHeader(statusCode)
	if _, err := rw.w.Write(append(payload, '\n')); err != nil {
		logging.Ctx(rw.r.Context()).Debug().Err(err).Msg("Client went away before the response was written")
	}
}
