// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package incident

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentriq/sentriq/internal/detect"
	"github.com/sentriq/sentriq/internal/mitre"
	"github.com/sentriq/sentriq/internal/telemetry"
)

var (
	ErrNotFound        = errors.New("incident not found")
	ErrAlreadyResolved = errors.New("incident already resolved")
)

// Severity buckets an ensemble score for triage.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status is the incident lifecycle state. Resolved is terminal.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// SeverityForScore maps an ensemble score onto a severity tier using the
// configured boundaries. Boundaries are inclusive on the lower edge.
func SeverityForScore(score float64, th detect.SeverityThresholds) Severity {
	switch {
	case score >= th.Critical:
		return SeverityCritical
	case score >= th.High:
		return SeverityHigh
	case score >= th.Medium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Incident is one confirmed anomaly with its full detection context:
// the scores that flagged it, the techniques it mapped to, and the
// telemetry snapshot it was raised on.
type Incident struct {
	ID            string                      `json:"id"`
	EndpointID    string                      `json:"endpoint_id"`
	Timestamp     time.Time                   `json:"timestamp"`
	Severity      Severity                    `json:"severity"`
	Status        Status                      `json:"status"`
	AttackType    string                      `json:"attack_type,omitempty"`
	Scores        detect.AnomalyScore         `json:"anomaly_scores"`
	Techniques    []mitre.TechniqueMatch      `json:"mitre_techniques"`
	Contributions []mitre.FeatureContribution `json:"feature_contributions"`
	Explanation   string                      `json:"explanation"`
	Telemetry     telemetry.FeatureVector     `json:"telemetry_snapshot"`
	ResolvedAt    *time.Time                  `json:"resolved_at,omitempty"`
}

// NewID mints an incident identifier, e.g. INC-4F21A9.
func NewID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "INC-" + strings.ToUpper(raw[:6])
}

// New assembles an open incident from detection output.
func New(endpointID string, v telemetry.FeatureVector, score detect.AnomalyScore,
	th detect.SeverityThresholds, matches []mitre.TechniqueMatch,
	contribs []mitre.FeatureContribution, explanation, attackType string) *Incident {
	return &Incident{
		ID:            NewID(),
		EndpointID:    endpointID,
		Timestamp:     v.Timestamp,
		Severity:      SeverityForScore(score.EnsembleScore, th),
		Status:        StatusOpen,
		AttackType:    attackType,
		Scores:        score,
		Techniques:    matches,
		Contributions: contribs,
		Explanation:   explanation,
		Telemetry:     v,
	}
}
