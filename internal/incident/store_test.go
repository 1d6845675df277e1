// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package incident

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/sentriq/sentriq/internal/detect"
	"github.com/sentriq/sentriq/internal/telemetry"
)

func testIncident(t *testing.T, id string, ts time.Time, score float64) *Incident {
	t.Helper()
	v := telemetry.FeatureVector{EndpointID: "EP-0001", Timestamp: ts, CPUUsage: 20}
	inc := New("EP-0001", v, detect.AnomalyScore{EnsembleScore: score, IsAnomaly: true, Confidence: 0.9},
		detect.DefaultSeverityThresholds(), nil, nil, "test incident", "")
	inc.ID = id
	return inc
}

func TestMemoryStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := testIncident(t, "INC-AAA001", ts, 0.9)
	if err := s.Create(ctx, want); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "INC-AAA001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != want.ID || got.Severity != SeverityCritical || got.Status != StatusOpen {
		t.Errorf("Get = %+v", got)
	}

	// Returned incident is a copy.
	got.Status = StatusResolved
	again, err := s.Get(ctx, "INC-AAA001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Status != StatusOpen {
		t.Error("mutating a returned incident altered the store")
	}
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "INC-MISSING"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []*Incident{
		testIncident(t, "INC-000001", base, 0.85),                 // critical
		testIncident(t, "INC-000002", base.Add(time.Minute), 0.6), // medium
		testIncident(t, "INC-000003", base.Add(2*time.Minute), 0.9),
	}
	for _, inc := range seed {
		if err := s.Create(ctx, inc); err != nil {
			t.Fatalf("Create(%s): %v", inc.ID, err)
		}
	}
	if _, err := s.Resolve(ctx, "INC-000002"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"INC-000003", "INC-000002", "INC-000001"}},
		{"open only", Filter{Status: StatusOpen}, []string{"INC-000003", "INC-000001"}},
		{"resolved only", Filter{Status: StatusResolved}, []string{"INC-000002"}},
		{"critical only", Filter{Severity: SeverityCritical}, []string{"INC-000003", "INC-000001"}},
		{"limit", Filter{Limit: 1}, []string{"INC-000003"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestMemoryStoreResolveIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.Create(ctx, testIncident(t, "INC-000001", ts, 0.7)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	resolved, err := s.Resolve(ctx, "INC-000001")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("status = %s, want resolved", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("ResolvedAt not set")
	}

	if _, err := s.Resolve(ctx, "INC-000001"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second Resolve err = %v, want ErrAlreadyResolved", err)
	}
	if _, err := s.Resolve(ctx, "INC-MISSING"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve unknown err = %v, want ErrNotFound", err)
	}
}

func TestSeverityForScore(t *testing.T) {
	th := detect.DefaultSeverityThresholds()
	tests := []struct {
		score float64
		want  Severity
	}{
		{0.95, SeverityCritical},
		{0.80, SeverityCritical},
		{0.79, SeverityHigh},
		{0.70, SeverityHigh},
		{0.69, SeverityMedium},
		{0.55, SeverityMedium},
		{0.54, SeverityLow},
		{0.0, SeverityLow},
	}
	for _, tt := range tests {
		if got := SeverityForScore(tt.score, th); got != tt.want {
			t.Errorf("SeverityForScore(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestSeverityForScoreCustomThresholds(t *testing.T) {
	// A stricter deployment can demand near-certainty for critical.
	th := detect.SeverityThresholds{Critical: 0.95, High: 0.85, Medium: 0.60}
	tests := []struct {
		score float64
		want  Severity
	}{
		{0.96, SeverityCritical},
		{0.90, SeverityHigh},
		{0.80, SeverityMedium},
		{0.55, SeverityLow},
	}
	for _, tt := range tests {
		if got := SeverityForScore(tt.score, th); got != tt.want {
			t.Errorf("SeverityForScore(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestNewIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^INC-[0-9A-F]{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := NewID()
		if !pattern.MatchString(id) {
			t.Fatalf("NewID() = %q, want INC- plus 6 upper hex chars", id)
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Error("NewID produced no variation across 50 calls")
	}
}
