// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// stubService fails the first failures calls, then runs until canceled.
type stubService struct {
	name     string
	failures int32
	starts   atomic.Int32
}

var _ suture.Service = (*stubService)(nil)

func (s *stubService) Serve(ctx context.Context) error {
	if n := s.starts.Add(1); n <= s.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitForStarts(t *testing.T, svc *stubService, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for svc.starts.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("%s started %d times, want >= %d", svc.name, svc.starts.Load(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewSupervisorTreeDefaults(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{FailureBackoff: time.Second})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}

	want := DefaultTreeConfig()
	want.FailureBackoff = time.Second
	if tree.config != want {
		t.Errorf("config = %+v, want %+v", tree.config, want)
	}
}

func TestSupervisorTreeStartsEveryLayer(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}

	layers := map[string]func(suture.Service) suture.ServiceToken{
		"rule-generation": tree.AddDataService,
		"event-bus":       tree.AddMessagingService,
		"http-server":     tree.AddAPIService,
	}
	svcs := make([]*stubService, 0, len(layers))
	for name, add := range layers {
		svc := &stubService{name: name}
		add(svc)
		svcs = append(svcs, svc)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, svc := range svcs {
		waitForStarts(t, svc, 1)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) != 0 {
		t.Errorf("unstopped services: %v", report)
	}
}

func TestSupervisorTreeRestartsFailingService(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}

	failing := &stubService{name: "failing", failures: 2}
	stable := &stubService{name: "stable"}
	tree.AddMessagingService(failing)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitForStarts(t, failing, 3)
	waitForStarts(t, stable, 1)
	if got := stable.starts.Load(); got != 1 {
		t.Errorf("stable service started %d times, want 1", got)
	}

	cancel()
	<-errCh
}

func TestSupervisorTreeAdd(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}

	tree.AddDataService(&stubService{name: "rule-generation"})
	tree.AddMessagingService(&stubService{name: "event-bus"})
	tree.AddAPIService(&stubService{name: "http-server"})
	if _, err := tree.Add(Layer("cache-layer"), &stubService{name: "x"}); err == nil {
		t.Error("Add() with unknown layer returned nil error")
	}

	got := tree.Services()
	want := map[Layer]string{
		LayerData:      "rule-generation",
		LayerMessaging: "event-bus",
		LayerAPI:       "http-server",
	}
	for layer, name := range want {
		if len(got[layer]) != 1 || got[layer][0] != name {
			t.Errorf("Services()[%s] = %v, want [%s]", layer, got[layer], name)
		}
	}
	if len(got) != len(want) {
		t.Errorf("Services() has %d layers, want %d", len(got), len(want))
	}
}
