// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	id := GenerateCorrelationID()
	if len(id) != 8 {
		t.Fatalf("len(GenerateCorrelationID()) = %d, want 8", len(id))
	}

	ctx := ContextWithCorrelationID(context.Background(), id)
	if got := CorrelationIDFromContext(ctx); got != id {
		t.Errorf("CorrelationIDFromContext = %q, want %q", got, id)
	}
	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context returned %q", got)
	}
	if got := CorrelationIDFromContext(ContextWithNewCorrelationID(context.Background())); got == "" {
		t.Error("ContextWithNewCorrelationID did not set an ID")
	}
}

func TestCtxAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	ctx = ContextWithUserID(ctx, "user-1")

	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"user_id":"user-1"`) {
		t.Errorf("missing user_id in %q", out)
	}
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("missing request_id in %q", out)
	}
	if !strings.Contains(out, `"correlation_id":"corr-1"`) {
		t.Errorf("missing correlation_id in %q", out)
	}
}
