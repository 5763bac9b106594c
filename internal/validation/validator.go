// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

// Package validation wraps go-playground/validator v10 behind a shared,
// lazily built validator instance with Basketwise's custom tags.
//
//	type PredictionsQuery struct {
//	    UserID string `json:"user_id" validate:"required,max=64"`
//	    Limit  int    `json:"limit" validate:"min=1,max=20"`
//	}
//
//	if verr := validation.ValidateStruct(&q); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
//
// Field names in messages use the json tag when present.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Code is the error code carried by every APIError built here.
const Code = "VALIDATION_FAILED"

var (
	shared     *validator.Validate
	sharedOnce sync.Once
)

// itemCodePattern matches catalog item codes such as barcodes and store SKUs.
var itemCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// RequestValidationError is returned when a struct fails one or more rules.
type RequestValidationError struct {
	Fields []FieldError
}

func (ve *RequestValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	return strings.Join(ve.messages(), "; ")
}

func (ve *RequestValidationError) messages() []string {
	out := make([]string, len(ve.Fields))
	for i, fe := range ve.Fields {
		out[i] = fe.Message
	}
	return out
}

// APIError mirrors the api package error body without importing it.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError renders the failure as an error body. A single failure is
// described inline; several are listed under details.fields.
func (ve *RequestValidationError) ToAPIError() *APIError {
	switch len(ve.Fields) {
	case 0:
		return &APIError{Code: Code, Message: "Validation failed"}
	case 1:
		fe := ve.Fields[0]
		return &APIError{
			Code:    Code,
			Message: fe.Message,
			Details: map[string]interface{}{"field": fe.Field, "tag": fe.Tag, "value": fe.Value},
		}
	}

	fields := make([]map[string]interface{}, len(ve.Fields))
	for i, fe := range ve.Fields {
		fields[i] = map[string]interface{}{"field": fe.Field, "tag": fe.Tag, "message": fe.Message}
	}
	return &APIError{
		Code:    Code,
		Message: ve.Error(),
		Details: map[string]interface{}{"fields": fields},
	}
}

// Validator returns the shared validator, building it on first use.
func Validator() *validator.Validate {
	sharedOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		// Registration only fails for a nil func or an empty tag.
		_ = v.RegisterValidation("itemcode", func(fl validator.FieldLevel) bool {
			return itemCodePattern.MatchString(fl.Field().String())
		})
		shared = v
	})
	return shared
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// ValidateStruct validates s, returning nil on success.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{
			Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}},
		}
	}

	out := &RequestValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: describe(fe),
		})
	}
	return out
}

// messageFormats maps a tag to a format taking the field name and the tag
// parameter. min and max are handled separately for strings.
var messageFormats = map[string]string{
	"required": "%s is required%.0s",
	"itemcode": "%s must be a valid item code%.0s",
	"uuid":     "%s must be a valid UUID%.0s",
	"oneof":    "%s must be one of: %s",
	"gte":      "%s must be greater than or equal to %s",
	"lte":      "%s must be less than or equal to %s",
	"gt":       "%s must be greater than %s",
	"lt":       "%s must be less than %s",
	"min":      "%s must be at least %s",
	"max":      "%s must be at most %s",
}

func describe(fe validator.FieldError) string {
	format, ok := messageFormats[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	msg := fmt.Sprintf(format, fe.Field(), fe.Param())
	if (fe.Tag() == "min" || fe.Tag() == "max") && fe.Kind() == reflect.String {
		msg += " characters"
	}
	return msg
}
