// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c *TreeConfig) applyDefaults() {
	def := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = def.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = def.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
}

// Layer names a child supervisor of the root.
type Layer string

const (
	// LayerData runs jobs that write to the stores (rule generation).
	LayerData Layer = "data-layer"
	// LayerMessaging runs the event bus router.
	LayerMessaging Layer = "messaging-layer"
	// LayerAPI runs the HTTP server.
	LayerAPI Layer = "api-layer"
)

// layerOrder is the order layers are added to the root.
var layerOrder = []Layer{LayerData, LayerMessaging, LayerAPI}

// SupervisorTree is the supervisor hierarchy of the server process.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers map[Layer]*suture.Supervisor
	logger *slog.Logger
	config TreeConfig

	mu       sync.Mutex
	services map[Layer][]string
}

// NewSupervisorTree creates the root supervisor "basketwise" with one child
// per Layer. Zero config fields take the DefaultTreeConfig values.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	// MustHook has a pointer receiver.
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = hook

	t := &SupervisorTree{
		// Children inherit the EventHook when added to the root.
		root:     suture.New("basketwise", rootSpec),
		layers:   make(map[Layer]*suture.Supervisor, len(layerOrder)),
		logger:   logger,
		config:   config,
		services: make(map[Layer][]string, len(layerOrder)),
	}
	for _, layer := range layerOrder {
		sup := suture.New(string(layer), spec)
		t.root.Add(sup)
		t.layers[layer] = sup
	}
	return t, nil
}

// Root returns the root supervisor.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// Add adds svc to layer. Services added after the tree started are started
// immediately.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) (suture.ServiceToken, error) {
	sup, ok := t.layers[layer]
	if !ok {
		return suture.ServiceToken{}, fmt.Errorf("unknown supervisor layer %q", layer)
	}

	t.mu.Lock()
	t.services[layer] = append(t.services[layer], serviceName(svc))
	t.mu.Unlock()

	t.logger.Debug("service added", "layer", string(layer), "service", serviceName(svc))
	return sup.Add(svc), nil
}

// AddDataService adds a service to the data layer.
func (t *SupervisorTree) AddDataService(svc suture.Service) suture.ServiceToken {
	token, _ := t.Add(LayerData, svc)
	return token
}

// AddMessagingService adds a service to the messaging layer.
func (t *SupervisorTree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	token, _ := t.Add(LayerMessaging, svc)
	return token
}

// AddAPIService adds a service to the API layer.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	token, _ := t.Add(LayerAPI, svc)
	return token
}

// Services returns the names of the services added to each layer, in the
// order they were added.
func (t *SupervisorTree) Services() map[Layer][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Layer][]string, len(t.services))
	for layer, names := range t.services {
		out[layer] = append([]string(nil), names...)
	}
	return out
}

// Serve runs the tree and blocks until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The returned channel
// receives the result when the tree stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that did not stop within the
// shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

func serviceName(svc suture.Service) string {
	if s, ok := svc.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", svc)
}
