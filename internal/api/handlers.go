// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package api

import (
	"context"
	"time"

	"github.com/tomtom215/basketwise/internal/recommend"
	"github.com/tomtom215/basketwise/internal/runstate"
)

// PredictionEngine serves predictions.
type PredictionEngine interface {
	GetPredictions(ctx context.Context, req recommend.PredictionRequest) (*recommend.PredictionsResponse, error)
}

// ListAccess resolves list ownership for authorization checks.
type ListAccess interface {
	HouseholdsForUser(ctx context.Context, userID string) ([]string, error)
	ShoppingListHousehold(ctx context.Context, shoppingListID string) (string, error)
}

// RuleRunner runs a generation batch and records it.
type RuleRunner interface {
	RunNow(ctx context.Context, trigger string) (*runstate.Run, *recommend.GenerationStats, error)
}

// ScopeGenerator regenerates the rules of a single scope.
type ScopeGenerator interface {
	GenerateRules(ctx context.Context, scope recommend.Scope) (int, error)
}

// RunHistory reads the run ledger.
type RunHistory interface {
	LastRun(ctx context.Context) (*runstate.Run, error)
	LastSuccessfulRun(ctx context.Context) (*runstate.Run, error)
	ListRuns(ctx context.Context, limit int) ([]runstate.Run, error)
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerDeps are the collaborators of Handler. Runner, Generator and Runs
// may be nil, which disables the matching rule endpoints.
type HandlerDeps struct {
	Engine    PredictionEngine
	Lists     ListAccess
	Runner    RuleRunner
	Generator ScopeGenerator
	Runs      RunHistory
	DB        Pinger

	// RequestTimeout bounds one predictions request. Default: 10s
	RequestTimeout time.Duration

	// GenerationTimeout bounds one single-scope regeneration. Default: 30s
	GenerationTimeout time.Duration
}

// Handler implements the HTTP endpoints.
type Handler struct {
	engine    PredictionEngine
	lists     ListAccess
	runner    RuleRunner
	generator ScopeGenerator
	runs      RunHistory
	db        Pinger

	requestTimeout    time.Duration
	generationTimeout time.Duration
	startTime         time.Time
}

// NewHandler creates a handler.
func NewHandler(deps HandlerDeps) *Handler {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	genTimeout := deps.GenerationTimeout
	if genTimeout <= 0 {
		genTimeout = 30 * time.Second
	}
	return &Handler{
		engine:            deps.Engine,
		lists:             deps.Lists,
		runner:            deps.Runner,
		generator:         deps.Generator,
		runs:              deps.Runs,
		db:                deps.DB,
		requestTimeout:    timeout,
		generationTimeout: genTimeout,
		startTime:         time.Now(),
	}
}
