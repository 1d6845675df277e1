// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package mitre

import (
	"sort"

	"github.com/sentriq/sentriq/internal/detect"
	"github.com/sentriq/sentriq/internal/telemetry"
)

const (
	// minConfidence drops weak technique matches.
	minConfidence = 0.3
	// maxConfidence caps reported confidence below certainty.
	maxConfidence = 0.95
	// maxMatches limits how many techniques a single vector maps to.
	maxMatches = 3
)

// TechniqueMatch is one ATT&CK technique implicated by a telemetry vector.
type TechniqueMatch struct {
	TechniqueID     string   `json:"technique_id"`
	Name            string   `json:"name"`
	Tactic          string   `json:"tactic"`
	Confidence      float64  `json:"confidence"`
	MatchedFeatures []string `json:"matched_features"`
	Description     string   `json:"description"`
}

// Mapper scores telemetry vectors against the technique rule table.
type Mapper struct {
	baselines map[string]telemetry.Baseline
}

// NewMapper builds a mapper over the standard feature baselines.
func NewMapper() *Mapper {
	return &Mapper{baselines: telemetry.Baselines()}
}

// Map returns up to three techniques whose trigger features deviate past
// threshold in v, most confident first. Ties break on technique id so
// repeated calls on the same vector order identically. An anomalous score
// with no rule hits legitimately yields an empty slice.
func (m *Mapper) Map(v telemetry.FeatureVector, _ detect.AnomalyScore) []TechniqueMatch {
	matches := make([]TechniqueMatch, 0, maxMatches)
	for _, tech := range AllTechniques() {
		if match, ok := m.score(v, tech); ok {
			matches = append(matches, match)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].TechniqueID < matches[j].TechniqueID
	})
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}
	return matches
}

func (m *Mapper) score(v telemetry.FeatureVector, tech Technique) (TechniqueMatch, bool) {
	var (
		confidence  float64
		totalWeight float64
		matched     []string
	)
	for _, feature := range telemetry.FeatureNames() {
		trig, ok := tech.Triggers[feature]
		if !ok {
			continue
		}
		totalWeight += trig.Weight
		value := v.Value(feature)
		mean := m.baselines[feature].Mean
		dm := value / (mean + 0.001)
		if dm < trig.Threshold {
			continue
		}
		// Linear credit for exceeding the trigger, saturating at one
		// full threshold past it.
		featureScore := (dm - trig.Threshold) / trig.Threshold
		if featureScore > 1 {
			featureScore = 1
		}
		confidence += featureScore * trig.Weight
		matched = append(matched, feature)
	}
	if totalWeight > 0 {
		confidence /= totalWeight
	}
	if len(matched) > 1 {
		bonus := 0.05 * float64(len(matched))
		if bonus > 0.2 {
			bonus = 0.2
		}
		confidence += bonus
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	if confidence <= minConfidence {
		return TechniqueMatch{}, false
	}
	return TechniqueMatch{
		TechniqueID:     tech.ID,
		Name:            tech.Name,
		Tactic:          tech.Tactic,
		Confidence:      confidence,
		MatchedFeatures: matched,
		Description:     tech.Description,
	}, true
}
