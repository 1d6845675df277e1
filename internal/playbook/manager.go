// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package playbook

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentriq/sentriq/internal/logging"
	"github.com/sentriq/sentriq/internal/metrics"
)

// IncidentResolver closes out the incident a finished session targeted.
type IncidentResolver interface {
	ResolveIncident(ctx context.Context, incidentID string) error
}

// Manager owns the playbook catalog and all execution sessions. One mutex
// guards both session maps so "create session if none active" is atomic.
type Manager struct {
	playbooks []Definition
	byID      map[string]Definition

	mu       sync.RWMutex
	sessions map[string]*Session
	// activeByIncident indexes the one non-completed session per incident.
	activeByIncident map[string]string

	hooks    *HookExecutor
	resolver IncidentResolver
	persist  SessionStore
}

// NewManager builds a manager over the built-in playbook library. persist
// may be nil, in which case sessions live only in memory.
func NewManager(hooks *HookExecutor, resolver IncidentResolver, persist SessionStore) *Manager {
	defs := Library()
	byID := make(map[string]Definition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	return &Manager{
		playbooks:        defs,
		byID:             byID,
		sessions:         make(map[string]*Session),
		activeByIncident: make(map[string]string),
		hooks:            hooks,
		resolver:         resolver,
		persist:          persist,
	}
}

// Restore loads persisted sessions and rebuilds the active-incident index.
// Call once at startup, before the manager takes traffic.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.persist == nil {
		return 0, nil
	}
	sessions, err := m.persist.Load(ctx)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		m.sessions[s.SessionID] = s
		if !s.Completed {
			m.activeByIncident[s.IncidentID] = s.SessionID
			metrics.ActiveSessions.Inc()
		}
	}
	return len(sessions), nil
}

// save writes a session through to the persistent store. Persistence
// failures are logged, not surfaced: the in-memory state already advanced
// and the caller's action succeeded.
func (m *Manager) save(ctx context.Context, s *Session) {
	if m.persist == nil {
		return
	}
	if err := m.persist.Save(ctx, s); err != nil {
		logging.Err(err).
			Str("session_id", s.SessionID).
			Msg("persist playbook session")
	}
}

// Playbooks returns the catalog in its load order.
func (m *Manager) Playbooks() []Definition {
	return m.playbooks
}

// Playbook looks up one definition by id.
func (m *Manager) Playbook(id string) (Definition, error) {
	d, ok := m.byID[id]
	if !ok {
		return Definition{}, ErrPlaybookNotFound
	}
	return d, nil
}

// Recommend picks playbooks for an attack type. Direct incident-type
// matches win; otherwise keyword mapping applies, and the first catalog
// entry is the fallback so the caller always has a procedure to run.
func (m *Manager) Recommend(attackType string) []Definition {
	attack := strings.ToLower(attackType)

	var out []Definition
	seen := make(map[string]bool)
	for _, pb := range m.playbooks {
		it := strings.ToLower(pb.IncidentType)
		if strings.Contains(attack, it) || strings.Contains(it, attack) {
			out = append(out, pb)
			seen[pb.ID] = true
		}
	}
	if len(out) == 0 {
		for key, ids := range recommendKeywords {
			if !strings.Contains(attack, key) {
				continue
			}
			for _, id := range ids {
				if pb, ok := m.byID[id]; ok && !seen[id] {
					out = append(out, pb)
					seen[id] = true
				}
			}
		}
	}
	if len(out) == 0 {
		out = append(out, m.playbooks[0])
	}
	return out
}

// StartSession creates a session for an incident. The first step becomes
// in_progress immediately. Fails with ErrSessionConflict while another
// non-completed session targets the same incident; the check and the
// index insert happen under one lock.
func (m *Manager) StartSession(ctx context.Context, incidentID, playbookID string) (*Session, error) {
	pb, ok := m.byID[playbookID]
	if !ok {
		return nil, ErrPlaybookNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.activeByIncident[incidentID]; ok {
		return nil, fmt.Errorf("%w: session %s", ErrSessionConflict, existing)
	}

	statuses := make(map[string]StepStatus, len(pb.Steps))
	for _, s := range pb.Steps {
		statuses[s.ID] = StepPending
	}
	if len(pb.Steps) > 0 {
		statuses[pb.Steps[0].ID] = StepInProgress
	}

	session := &Session{
		SessionID:    uuid.NewString(),
		PlaybookID:   playbookID,
		IncidentID:   incidentID,
		StartTime:    time.Now().UTC(),
		StepStatuses: statuses,
		StepNotes:    make(map[string]string),
	}
	m.sessions[session.SessionID] = session
	m.activeByIncident[incidentID] = session.SessionID
	metrics.ActiveSessions.Inc()
	m.save(ctx, session)

	logging.Info().
		Str("session_id", session.SessionID).
		Str("playbook_id", playbookID).
		Str("incident_id", incidentID).
		Msg("playbook session started")
	return session.clone(), nil
}

// Session returns a copy of one session.
func (m *Manager) Session(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.clone(), nil
}

// SessionForIncident returns the active session targeting an incident.
func (m *Manager) SessionForIncident(incidentID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.activeByIncident[incidentID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m.sessions[id].clone(), nil
}

// Sessions lists every session, completed ones included.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.clone())
	}
	return out
}

// Advance applies an action to the session's current step. Only the
// current step may be acted on; anything else fails with
// ErrStepNotCurrent and changes nothing. Completing or skipping the last
// step marks the session completed and resolves the target incident.
// For AdvanceExecute the hook runs before any state changes, so a failed
// or timed-out hook leaves the step exactly as it was for a retry.
func (m *Manager) Advance(ctx context.Context, sessionID, stepID string, action AdvanceAction, note string) (*Session, error) {
	pb, step, err := m.currentStep(sessionID, stepID)
	if err != nil {
		return nil, err
	}

	status := StepCompleted
	switch action {
	case AdvanceComplete:
	case AdvanceSkip:
		status = StepSkipped
	case AdvanceExecute:
		if step.ActionType != ActionAutomated || step.AutomationHook == "" {
			return nil, ErrStepNotAutomated
		}
		session, err := m.Session(sessionID)
		if err != nil {
			return nil, err
		}
		if err := m.hooks.Execute(ctx, step.AutomationHook, session.IncidentID); err != nil {
			return nil, err
		}
		if note == "" {
			note = "Automated execution successful"
		}
	default:
		return nil, fmt.Errorf("unknown advance action %q", action)
	}

	return m.applyStep(ctx, sessionID, pb, stepID, status, note)
}

// currentStep validates the step against the session's cursor. Held-lock
// read only; hook execution must not happen under the manager lock.
func (m *Manager) currentStep(sessionID, stepID string) (Definition, Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Definition{}, Step{}, ErrSessionNotFound
	}
	pb := m.byID[s.PlaybookID]
	if s.Completed || s.CurrentStepIndex >= len(pb.Steps) {
		return Definition{}, Step{}, fmt.Errorf("%w: session completed", ErrStepNotCurrent)
	}
	current := pb.Steps[s.CurrentStepIndex]
	if current.ID != stepID {
		return Definition{}, Step{}, fmt.Errorf("%w: current step is %s", ErrStepNotCurrent, current.ID)
	}
	return pb, current, nil
}

func (m *Manager) applyStep(ctx context.Context, sessionID string, pb Definition, stepID string, status StepStatus, note string) (*Session, error) {
	m.mu.Lock()

	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	// Re-validate under the write lock: a concurrent Advance may have
	// moved the cursor since currentStep released the read lock.
	if s.Completed || s.CurrentStepIndex >= len(pb.Steps) || pb.Steps[s.CurrentStepIndex].ID != stepID {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: step already advanced", ErrStepNotCurrent)
	}

	s.StepStatuses[stepID] = status
	if note != "" {
		s.StepNotes[stepID] = note
	}

	finished := false
	if s.CurrentStepIndex+1 < len(pb.Steps) {
		s.CurrentStepIndex++
		s.StepStatuses[pb.Steps[s.CurrentStepIndex].ID] = StepInProgress
	} else {
		s.Completed = true
		delete(m.activeByIncident, s.IncidentID)
		metrics.ActiveSessions.Dec()
		finished = true
	}
	result := s.clone()
	incidentID := s.IncidentID
	m.mu.Unlock()

	m.save(ctx, result)
	if finished {
		logging.Info().
			Str("session_id", sessionID).
			Str("incident_id", incidentID).
			Msg("playbook session completed")
		if m.resolver != nil {
			if err := m.resolver.ResolveIncident(ctx, incidentID); err != nil {
				logging.Err(err).
					Str("incident_id", incidentID).
					Msg("resolve incident after session completion")
			}
		}
	}
	return result, nil
}
