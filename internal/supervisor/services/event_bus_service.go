// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// EventRouter is the run method of events.Bus.
type EventRouter interface {
	Run(ctx context.Context) error
}

// EventBusService runs the event bus router under supervision.
type EventBusService struct {
	router EventRouter
	name   string
}

// NewEventBusService creates the wrapper.
func NewEventBusService(router EventRouter) *EventBusService {
	return &EventBusService{router: router, name: "event-bus"}
}

// Serve implements suture.Service. The watermill router closes itself when
// Run returns, so a router that stops on its own is not restarted.
func (s *EventBusService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("event router stopped: %w", errors.Join(err, suture.ErrDoNotRestart))
	}
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for suture logging.
func (s *EventBusService) String() string {
	return s.name
}
