// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package mitre

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sentriq/sentriq/internal/detect"
	"github.com/sentriq/sentriq/internal/telemetry"
)

// maxContributions bounds the feature attribution list.
const maxContributions = 5

// FeatureContribution attributes a share of an anomaly to one feature.
type FeatureContribution struct {
	Feature             string  `json:"feature"`
	Value               float64 `json:"value"`
	BaselineMean        float64 `json:"baseline_mean"`
	Deviation           float64 `json:"deviation"`
	DeviationMultiplier float64 `json:"deviation_multiplier"`
	ContributionPercent float64 `json:"contribution_percent"`
}

// Explainer produces feature attributions and an analyst-readable summary
// for a scored telemetry vector. Narrative tiers follow the same severity
// boundaries that bucket incidents.
type Explainer struct {
	baselines map[string]telemetry.Baseline
	tiers     detect.SeverityThresholds
}

func NewExplainer(tiers detect.SeverityThresholds) *Explainer {
	if (tiers == detect.SeverityThresholds{}) {
		tiers = detect.DefaultSeverityThresholds()
	}
	return &Explainer{baselines: telemetry.Baselines(), tiers: tiers}
}

// Contributions ranks features by how far they sit from baseline, most
// anomalous first, and reports each as a percentage of the total. At most
// five features are returned and percentages never sum past 100.
func (e *Explainer) Contributions(v telemetry.FeatureVector) []FeatureContribution {
	type scored struct {
		contrib FeatureContribution
		score   float64
	}
	var (
		all   []scored
		total float64
	)
	for _, feature := range telemetry.FeatureNames() {
		value := v.Value(feature)
		base := e.baselines[feature]
		dm := value / (base.Mean + 0.001)
		s := math.Abs(math.Log(dm + 0.1))
		if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		total += s
		all = append(all, scored{
			contrib: FeatureContribution{
				Feature:             feature,
				Value:               value,
				BaselineMean:        base.Mean,
				Deviation:           value - base.Mean,
				DeviationMultiplier: dm,
			},
			score: s,
		})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].contrib.Feature < all[j].contrib.Feature
	})
	if len(all) > maxContributions {
		all = all[:maxContributions]
	}
	out := make([]FeatureContribution, 0, len(all))
	for _, s := range all {
		c := s.contrib
		if total > 0 {
			c.ContributionPercent = s.score / total * 100
		}
		out = append(out, c)
	}
	return out
}

// Explain renders a narrative for an anomaly. The text names only values
// present in the inputs: the top deviating features, the ensemble score
// and confidence, and the leading technique when one matched.
func (e *Explainer) Explain(score detect.AnomalyScore, contributions []FeatureContribution, matches []TechniqueMatch) string {
	var b strings.Builder

	switch {
	case score.EnsembleScore >= e.tiers.Critical:
		b.WriteString("CRITICAL anomaly detected")
	case score.EnsembleScore >= e.tiers.High:
		b.WriteString("HIGH severity anomaly detected")
	case score.EnsembleScore >= e.tiers.Medium:
		b.WriteString("MEDIUM severity anomaly detected")
	default:
		b.WriteString("Low severity deviation observed")
	}
	fmt.Fprintf(&b, " with ensemble score %.2f (model agreement %.0f%%).", score.EnsembleScore, score.Confidence*100)

	if len(contributions) > 0 {
		var elevated []string
		for _, c := range contributions {
			if c.DeviationMultiplier >= 1.5 {
				elevated = append(elevated, fmt.Sprintf("%s at %.1fx baseline", c.Feature, c.DeviationMultiplier))
			}
		}
		if len(elevated) > 0 {
			b.WriteString(" Primary indicators: ")
			b.WriteString(strings.Join(elevated, ", "))
			b.WriteString(".")
		} else {
			fmt.Fprintf(&b, " Largest deviation: %s (%.1fx baseline).",
				contributions[0].Feature, contributions[0].DeviationMultiplier)
		}
	}

	if len(matches) > 0 {
		top := matches[0]
		fmt.Fprintf(&b, " Behavior is most consistent with MITRE ATT&CK %s (%s, %s tactic) at %.0f%% confidence.",
			top.TechniqueID, top.Name, top.Tactic, top.Confidence*100)
		if len(matches) > 1 {
			others := make([]string, 0, len(matches)-1)
			for _, m := range matches[1:] {
				others = append(others, m.TechniqueID)
			}
			fmt.Fprintf(&b, " Secondary candidates: %s.", strings.Join(others, ", "))
		}
	} else if score.IsAnomaly {
		b.WriteString(" No known ATT&CK technique matched; deviation pattern warrants manual review.")
	}

	return b.String()
}
