// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package playbook

import (
	"errors"
	"time"
)

var (
	ErrPlaybookNotFound = errors.New("playbook not found")
	ErrSessionNotFound  = errors.New("session not found")
	// ErrSessionConflict means an active session already targets the incident.
	ErrSessionConflict = errors.New("active session already exists for incident")
	// ErrStepNotCurrent means the step id is not the session's current step.
	ErrStepNotCurrent = errors.New("step is not the current step")
	ErrStepNotAutomated = errors.New("step has no automation hook")
	ErrHookFailed       = errors.New("automation hook failed")
)

// ActionType classifies how a step gets done.
type ActionType string

const (
	ActionManual    ActionType = "manual"
	ActionAutomated ActionType = "automated"
	ActionDecision  ActionType = "decision"
)

// StepStatus is a step's lifecycle state. Completed and skipped are
// immutable once set.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
)

// AdvanceAction is what the caller wants done with the current step.
type AdvanceAction string

const (
	AdvanceComplete AdvanceAction = "complete"
	AdvanceSkip     AdvanceAction = "skip"
	// AdvanceExecute runs the step's automation hook, then completes it.
	AdvanceExecute AdvanceAction = "execute"
)

// Step is one ordered action within a playbook.
type Step struct {
	ID               string     `json:"id"`
	Order            int        `json:"order"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	ActionType       ActionType `json:"action_type"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	Required         bool       `json:"required"`
	AutomationHook   string     `json:"automation_hook,omitempty"`
}

// Definition is a static response procedure. Loaded at startup, never
// mutated.
type Definition struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	IncidentType      string   `json:"incident_type"`
	Severity          []string `json:"severity"`
	MitreTechniques   []string `json:"mitre_techniques"`
	Steps             []Step   `json:"steps"`
	EstimatedDuration int      `json:"estimated_duration"`
}

// Session is one in-progress execution of a playbook against an incident.
type Session struct {
	SessionID        string                `json:"session_id"`
	PlaybookID       string                `json:"playbook_id"`
	IncidentID       string                `json:"incident_id"`
	StartTime        time.Time             `json:"start_time"`
	CurrentStepIndex int                   `json:"current_step_index"`
	StepStatuses     map[string]StepStatus `json:"step_statuses"`
	StepNotes        map[string]string     `json:"step_notes"`
	Completed        bool                  `json:"completed"`
}

func (s *Session) clone() *Session {
	cp := *s
	cp.StepStatuses = make(map[string]StepStatus, len(s.StepStatuses))
	for k, v := range s.StepStatuses {
		cp.StepStatuses[k] = v
	}
	cp.StepNotes = make(map[string]string, len(s.StepNotes))
	for k, v := range s.StepNotes {
		cp.StepNotes[k] = v
	}
	return &cp
}
