// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package playbook

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// recordingResolver records incident resolutions for assertions.
type recordingResolver struct {
	mu       sync.Mutex
	resolved []string
	err      error
}

func (r *recordingResolver) ResolveIncident(_ context.Context, incidentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, incidentID)
	return r.err
}

func (r *recordingResolver) resolvedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.resolved...)
}

// failingRunner fails a configurable number of times before succeeding.
type failingRunner struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *failingRunner) Run(context.Context, string, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		return errors.New("edr unreachable")
	}
	return nil
}

func newTestManager(runner HookRunner, resolver IncidentResolver) *Manager {
	if runner == nil {
		runner = LogRunner{}
	}
	return NewManager(NewHookExecutor(runner, DefaultHookConfig()), resolver, nil)
}

func TestStartSessionInitialState(t *testing.T) {
	m := newTestManager(nil, nil)

	s, err := m.StartSession(context.Background(), "INC-000001", "PB-AUTH-03")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if s.PlaybookID != "PB-AUTH-03" || s.IncidentID != "INC-000001" {
		t.Errorf("session = %+v", s)
	}
	if s.Completed || s.CurrentStepIndex != 0 {
		t.Errorf("new session not at first step: %+v", s)
	}

	pb, err := m.Playbook("PB-AUTH-03")
	if err != nil {
		t.Fatalf("Playbook: %v", err)
	}
	if got := s.StepStatuses[pb.Steps[0].ID]; got != StepInProgress {
		t.Errorf("first step status = %s, want in_progress", got)
	}
	for _, step := range pb.Steps[1:] {
		if got := s.StepStatuses[step.ID]; got != StepPending {
			t.Errorf("step %s status = %s, want pending", step.ID, got)
		}
	}
}

func TestStartSessionUnknownPlaybook(t *testing.T) {
	m := newTestManager(nil, nil)
	if _, err := m.StartSession(context.Background(), "INC-000001", "PB-NOPE-99"); !errors.Is(err, ErrPlaybookNotFound) {
		t.Fatalf("err = %v, want ErrPlaybookNotFound", err)
	}
}

func TestStartSessionConflictPerIncident(t *testing.T) {
	m := newTestManager(nil, nil)

	if _, err := m.StartSession(context.Background(), "INC-000001", "PB-AUTH-03"); err != nil {
		t.Fatalf("first StartSession: %v", err)
	}
	// A second session for the same incident is refused even for a
	// different playbook; a different incident is fine.
	if _, err := m.StartSession(context.Background(), "INC-000001", "PB-MAL-05"); !errors.Is(err, ErrSessionConflict) {
		t.Fatalf("err = %v, want ErrSessionConflict", err)
	}
	if _, err := m.StartSession(context.Background(), "INC-000002", "PB-AUTH-03"); err != nil {
		t.Fatalf("session for second incident: %v", err)
	}
}

func TestAdvanceWrongStepLeavesStateUnchanged(t *testing.T) {
	m := newTestManager(nil, nil)
	s, err := m.StartSession(context.Background(), "INC-000001", "PB-AUTH-03")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	pb, _ := m.Playbook("PB-AUTH-03")
	second := pb.Steps[1].ID

	if _, err := m.Advance(context.Background(), s.SessionID, second, AdvanceComplete, ""); !errors.Is(err, ErrStepNotCurrent) {
		t.Fatalf("err = %v, want ErrStepNotCurrent", err)
	}

	after, err := m.Session(s.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if after.CurrentStepIndex != 0 {
		t.Errorf("cursor moved to %d on rejected advance", after.CurrentStepIndex)
	}
	if got := after.StepStatuses[second]; got != StepPending {
		t.Errorf("step %s status = %s, want pending", second, got)
	}
}

func TestAdvanceUnknownSession(t *testing.T) {
	m := newTestManager(nil, nil)
	if _, err := m.Advance(context.Background(), "no-such-session", "x", AdvanceComplete, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSkipAllStepsCompletesAndResolves(t *testing.T) {
	resolver := &recordingResolver{}
	m := newTestManager(nil, resolver)

	s, err := m.StartSession(context.Background(), "INC-000001", "PB-AUTH-03")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	pb, _ := m.Playbook("PB-AUTH-03")

	for _, step := range pb.Steps {
		s, err = m.Advance(context.Background(), s.SessionID, step.ID, AdvanceSkip, "not applicable")
		if err != nil {
			t.Fatalf("Advance(%s): %v", step.ID, err)
		}
	}

	if !s.Completed {
		t.Error("session not completed after skipping every step")
	}
	for _, step := range pb.Steps {
		if got := s.StepStatuses[step.ID]; got != StepSkipped {
			t.Errorf("step %s status = %s, want skipped", step.ID, got)
		}
	}
	if ids := resolver.resolvedIDs(); len(ids) != 1 || ids[0] != "INC-000001" {
		t.Errorf("resolved incidents = %v, want [INC-000001]", ids)
	}

	// A completed session no longer blocks the incident.
	if _, err := m.StartSession(context.Background(), "INC-000001", "PB-AUTH-03"); err != nil {
		t.Errorf("StartSession after completion: %v", err)
	}
}

func TestCompleteRunThroughRecordsNotes(t *testing.T) {
	resolver := &recordingResolver{}
	m := newTestManager(nil, resolver)

	s, err := m.StartSession(context.Background(), "INC-000002", "PB-DDOS-06")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	pb, _ := m.Playbook("PB-DDOS-06")

	for i, step := range pb.Steps {
		action := AdvanceComplete
		if step.ActionType == ActionAutomated {
			action = AdvanceExecute
		}
		s, err = m.Advance(context.Background(), s.SessionID, step.ID, action, "")
		if err != nil {
			t.Fatalf("Advance(%s): %v", step.ID, err)
		}
		if i < len(pb.Steps)-1 {
			next := pb.Steps[i+1].ID
			if got := s.StepStatuses[next]; got != StepInProgress {
				t.Errorf("after step %d, next step status = %s, want in_progress", i, got)
			}
		}
		if step.ActionType == ActionAutomated {
			if got := s.StepNotes[step.ID]; got != "Automated execution successful" {
				t.Errorf("automated step note = %q", got)
			}
		}
	}

	if !s.Completed {
		t.Error("session not completed")
	}
	if ids := resolver.resolvedIDs(); len(ids) != 1 || ids[0] != "INC-000002" {
		t.Errorf("resolved incidents = %v", ids)
	}
}

// advanceToAutomated completes steps until the cursor sits on an automated
// step, which it returns.
func advanceToAutomated(t *testing.T, m *Manager, sessionID string) Step {
	t.Helper()
	s, err := m.Session(sessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	pb, err := m.Playbook(s.PlaybookID)
	if err != nil {
		t.Fatalf("Playbook: %v", err)
	}
	for _, step := range pb.Steps {
		if step.ActionType == ActionAutomated && step.AutomationHook != "" {
			return step
		}
		if _, err := m.Advance(context.Background(), sessionID, step.ID, AdvanceComplete, ""); err != nil {
			t.Fatalf("Advance(%s): %v", step.ID, err)
		}
	}
	t.Fatalf("playbook %s has no automated step", s.PlaybookID)
	return Step{}
}

func TestExecuteOnManualStepRejected(t *testing.T) {
	m := newTestManager(nil, nil)
	s, err := m.StartSession(context.Background(), "INC-000001", "PB-AUTH-03")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	pb, _ := m.Playbook("PB-AUTH-03")
	first := pb.Steps[0]
	if first.ActionType == ActionAutomated {
		t.Skipf("first step of PB-AUTH-03 is automated")
	}

	if _, err := m.Advance(context.Background(), s.SessionID, first.ID, AdvanceExecute, ""); !errors.Is(err, ErrStepNotAutomated) {
		t.Fatalf("err = %v, want ErrStepNotAutomated", err)
	}
}

func TestFailedHookLeavesStepRetryable(t *testing.T) {
	runner := &failingRunner{failures: 1}
	m := newTestManager(runner, nil)

	s, err := m.StartSession(context.Background(), "INC-000001", "PB-DDOS-06")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	auto := advanceToAutomated(t, m, s.SessionID)

	before, _ := m.Session(s.SessionID)
	if _, err := m.Advance(context.Background(), s.SessionID, auto.ID, AdvanceExecute, ""); !errors.Is(err, ErrHookFailed) {
		t.Fatalf("err = %v, want ErrHookFailed", err)
	}

	// The failed hook must not have touched the session.
	after, _ := m.Session(s.SessionID)
	if after.CurrentStepIndex != before.CurrentStepIndex {
		t.Errorf("cursor moved from %d to %d on hook failure", before.CurrentStepIndex, after.CurrentStepIndex)
	}
	if got := after.StepStatuses[auto.ID]; got != StepInProgress {
		t.Errorf("step status = %s after hook failure, want in_progress", got)
	}

	// The retry hits the now-healthy runner and advances.
	advanced, err := m.Advance(context.Background(), s.SessionID, auto.ID, AdvanceExecute, "")
	if err != nil {
		t.Fatalf("retry Advance: %v", err)
	}
	if got := advanced.StepStatuses[auto.ID]; got != StepCompleted {
		t.Errorf("step status = %s after retry, want completed", got)
	}
}

func TestSessionForIncident(t *testing.T) {
	m := newTestManager(nil, nil)
	s, err := m.StartSession(context.Background(), "INC-000009", "PB-MAL-05")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	got, err := m.SessionForIncident("INC-000009")
	if err != nil {
		t.Fatalf("SessionForIncident: %v", err)
	}
	if got.SessionID != s.SessionID {
		t.Errorf("SessionForIncident = %s, want %s", got.SessionID, s.SessionID)
	}
	if _, err := m.SessionForIncident("INC-MISSING"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestRecommend(t *testing.T) {
	m := newTestManager(nil, nil)

	t.Run("direct incident type match", func(t *testing.T) {
		got := m.Recommend("ransomware")
		if len(got) == 0 || got[0].ID != "PB-RANSOM-02" {
			t.Errorf("Recommend(ransomware) = %v", ids(got))
		}
	})

	t.Run("keyword match", func(t *testing.T) {
		got := ids(m.Recommend("brute_force"))
		want := map[string]bool{"PB-ATO-11": true, "PB-AUTH-03": true}
		for _, id := range got {
			if !want[id] {
				t.Errorf("unexpected playbook %s for brute_force", id)
			}
			delete(want, id)
		}
		for id := range want {
			t.Errorf("Recommend(brute_force) missing %s, got %v", id, got)
		}
	})

	t.Run("fallback", func(t *testing.T) {
		got := m.Recommend("anomalous_beaconing")
		if len(got) != 1 || got[0].ID != m.Playbooks()[0].ID {
			t.Errorf("Recommend fallback = %v, want first catalog entry", ids(got))
		}
	})
}

func ids(defs []Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.ID
	}
	return out
}

func TestLibraryIntegrity(t *testing.T) {
	defs := Library()
	if len(defs) != 11 {
		t.Fatalf("len(Library) = %d, want 11", len(defs))
	}
	seen := make(map[string]bool)
	for _, pb := range defs {
		if seen[pb.ID] {
			t.Errorf("duplicate playbook id %s", pb.ID)
		}
		seen[pb.ID] = true
		if len(pb.Steps) == 0 {
			t.Errorf("playbook %s has no steps", pb.ID)
		}
		for _, s := range pb.Steps {
			if s.ActionType == ActionAutomated && s.AutomationHook == "" {
				t.Errorf("%s step %s automated without a hook", pb.ID, s.ID)
			}
		}
	}
	// Every keyword-mapped id must exist in the catalog.
	for key, mapped := range recommendKeywords {
		for _, id := range mapped {
			if !seen[id] {
				t.Errorf("keyword %q maps to unknown playbook %s", key, id)
			}
		}
	}
}
