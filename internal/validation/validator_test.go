// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package validation

import (
	"strings"
	"testing"
)

type testQuery struct {
	UserID   string `json:"user_id" validate:"required,max=64"`
	Limit    int    `json:"limit" validate:"min=1,max=20"`
	ItemCode string `json:"item_code" validate:"omitempty,itemcode"`
	Reason   string `json:"reason" validate:"omitempty,oneof=frequent_association frequently_bought"`
	Quantity float64
}

func TestValidator_Singleton(t *testing.T) {
	v1 := Validator()
	v2 := Validator()
	if v1 == nil {
		t.Fatal("Validator() returned nil")
	}
	if v1 != v2 {
		t.Error("Validator() should return the same instance")
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input testQuery
	}{
		{"minimal", testQuery{UserID: "u1", Limit: 1}},
		{"upper limit", testQuery{UserID: "u1", Limit: 20}},
		{"barcode", testQuery{UserID: "u1", Limit: 5, ItemCode: "4006381333931"}},
		{"sku with separators", testQuery{UserID: "u1", Limit: 5, ItemCode: "milk-1.5_l"}},
		{"reason", testQuery{UserID: "u1", Limit: 5, Reason: "frequently_bought"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStruct(&tt.input); err != nil {
				t.Errorf("ValidateStruct() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		input       testQuery
		wantField   string
		wantTag     string
		wantMessage string
	}{
		{
			name:        "missing user",
			input:       testQuery{Limit: 5},
			wantField:   "user_id",
			wantTag:     "required",
			wantMessage: "user_id is required",
		},
		{
			name:        "user too long",
			input:       testQuery{UserID: strings.Repeat("u", 65), Limit: 5},
			wantField:   "user_id",
			wantTag:     "max",
			wantMessage: "user_id must be at most 64 characters",
		},
		{
			name:        "limit zero",
			input:       testQuery{UserID: "u1", Limit: 0},
			wantField:   "limit",
			wantTag:     "min",
			wantMessage: "limit must be at least 1",
		},
		{
			name:        "limit above max",
			input:       testQuery{UserID: "u1", Limit: 21},
			wantField:   "limit",
			wantTag:     "max",
			wantMessage: "limit must be at most 20",
		},
		{
			name:        "item code with spaces",
			input:       testQuery{UserID: "u1", Limit: 5, ItemCode: "whole milk"},
			wantField:   "item_code",
			wantTag:     "itemcode",
			wantMessage: "item_code must be a valid item code",
		},
		{
			name:        "unknown reason",
			input:       testQuery{UserID: "u1", Limit: 5, Reason: "magic"},
			wantField:   "reason",
			wantTag:     "oneof",
			wantMessage: "reason must be one of: frequent_association frequently_bought",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if verr == nil {
				t.Fatal("ValidateStruct() expected error, got nil")
			}
			errs := verr.Fields
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), verr)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
			if errs[0].Tag != tt.wantTag {
				t.Errorf("Tag = %q, want %q", errs[0].Tag, tt.wantTag)
			}
			if errs[0].Error() != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", errs[0].Error(), tt.wantMessage)
			}
		})
	}
}

func TestRequestValidationError_ToAPIError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		verr := ValidateStruct(&testQuery{UserID: "u1", Limit: 99})
		if verr == nil {
			t.Fatal("expected error")
		}
		apiErr := verr.ToAPIError()
		if apiErr.Code != Code {
			t.Errorf("Code = %q", apiErr.Code)
		}
		if apiErr.Details["field"] != "limit" {
			t.Errorf("Details[field] = %v, want limit", apiErr.Details["field"])
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		verr := ValidateStruct(&testQuery{Limit: 0})
		if verr == nil {
			t.Fatal("expected error")
		}
		apiErr := verr.ToAPIError()
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		if !ok || len(fields) != 2 {
			t.Fatalf("Details[fields] = %#v, want two entries", apiErr.Details["fields"])
		}
		if !strings.Contains(apiErr.Message, "user_id is required") {
			t.Errorf("Message %q missing user_id failure", apiErr.Message)
		}
		if !strings.Contains(verr.Error(), "; ") {
			t.Errorf("Error() %q should join messages", verr.Error())
		}
	})

	t.Run("empty", func(t *testing.T) {
		verr := &RequestValidationError{}
		if verr.Error() != "validation failed" {
			t.Errorf("Error() = %q", verr.Error())
		}
		if verr.ToAPIError().Message != "Validation failed" {
			t.Errorf("Message = %q", verr.ToAPIError().Message)
		}
	})
}
