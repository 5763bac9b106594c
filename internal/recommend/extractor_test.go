// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package recommend

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func record(id, items string) HistoryRecord {
	return HistoryRecord{ID: id, HouseholdID: "h1", CompletedAt: time.Now(), Items: []byte(items)}
}

func TestExtractor_FromRecords(t *testing.T) {
	x := NewExtractor(nil, 90*day, zerolog.Nop())

	tests := []struct {
		name    string
		records []HistoryRecord
		want    []Transaction
	}{
		{
			name: "purchased codes only",
			records: []HistoryRecord{record("l1",
				`[{"name":"Milk","item_code":"MILK","quantity":1,"is_purchased":true},
				  {"name":"Bread","item_code":"BREAD","quantity":2,"is_purchased":true},
				  {"name":"Eggs","item_code":"EGGS","quantity":1,"is_purchased":false}]`)},
			want: []Transaction{{"BREAD", "MILK"}},
		},
		{
			name: "one purchased and one unpurchased yields nothing",
			records: []HistoryRecord{record("l1",
				`[{"name":"A","item_code":"A","is_purchased":true},
				  {"name":"B","item_code":"B","is_purchased":false}]`)},
			want: []Transaction{},
		},
		{
			name: "duplicate codes collapse below minimum",
			records: []HistoryRecord{record("l1",
				`[{"name":"A","item_code":"A","is_purchased":true},
				  {"name":"A again","item_code":"A","is_purchased":true}]`)},
			want: []Transaction{},
		},
		{
			name: "entries without codes are ignored",
			records: []HistoryRecord{record("l1",
				`[{"name":"free text","is_purchased":true},
				  {"name":"blank","item_code":"","is_purchased":true},
				  {"name":"A","item_code":"A","is_purchased":true},
				  {"name":"B","item_code":"B","is_purchased":true}]`)},
			want: []Transaction{{"A", "B"}},
		},
		{
			name: "malformed record skipped, others kept",
			records: []HistoryRecord{
				record("bad", `{not json`),
				record("good", `[{"name":"A","item_code":"A","is_purchased":true},{"name":"C","item_code":"C","is_purchased":true}]`),
			},
			want: []Transaction{{"A", "C"}},
		},
		{
			name: "invalid entry skips the record",
			records: []HistoryRecord{record("l1",
				`[{"name":"A","item_code":"`+strings.Repeat("A", 65)+`","is_purchased":true},
				  {"name":"B","item_code":"B","is_purchased":true}]`)},
			want: []Transaction{},
		},
		{
			name:    "no records",
			records: nil,
			want:    []Transaction{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := x.FromRecords(tt.records)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FromRecords() = %v, want %v", got, tt.want)
			}
		})
	}
}

type stubHistory struct {
	records []HistoryRecord
	err     error
	since   time.Time
	ids     []string
}

func (s *stubHistory) FetchCompletedLists(_ context.Context, ids []string, since time.Time) ([]HistoryRecord, error) {
	s.ids = ids
	s.since = since
	return s.records, s.err
}

func (s *stubHistory) ItemFrequencies(context.Context, []string, time.Time, int) ([]ItemFrequency, error) {
	return nil, nil
}

func TestExtractor_Extract(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("applies lookback", func(t *testing.T) {
		hist := &stubHistory{records: []HistoryRecord{
			record("l1", `[{"name":"A","item_code":"A","is_purchased":true},{"name":"B","item_code":"B","is_purchased":true}]`),
		}}
		x := NewExtractor(hist, 90*day, zerolog.Nop())
		x.now = func() time.Time { return now }

		got, err := x.Extract(context.Background(), []string{"h1"})
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d transactions, want 1", len(got))
		}
		if want := now.Add(-90 * day); !hist.since.Equal(want) {
			t.Errorf("since = %v, want %v", hist.since, want)
		}
		if !reflect.DeepEqual(hist.ids, []string{"h1"}) {
			t.Errorf("household ids = %v", hist.ids)
		}
	})

	t.Run("wraps repository errors", func(t *testing.T) {
		boom := errors.New("boom")
		x := NewExtractor(&stubHistory{err: boom}, day, zerolog.Nop())
		if _, err := x.Extract(context.Background(), nil); !errors.Is(err, boom) {
			t.Errorf("Extract() error = %v, want wrapped boom", err)
		}
	})
}

func TestNewTransaction(t *testing.T) {
	got := NewTransaction([]string{"b", "a", "", "b", "c"})
	want := Transaction{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NewTransaction() = %v, want %v", got, want)
	}
}
