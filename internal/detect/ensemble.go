// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package detect

import (
	"errors"
	"fmt"

	"github.com/sentriq/sentriq/internal/telemetry"
)

// ErrInvalidInput indicates a vector that cannot be scored.
var ErrInvalidInput = errors.New("detect: invalid input vector")

// AnomalyScore is the verdict of one scoring call: one score per available
// sub-model, the combined ensemble score, the anomaly flag, and a
// model-agreement confidence. All scores lie in [0,1]. Field names are the
// wire format consumed by reporting.
type AnomalyScore struct {
	AutoencoderScore     float64  `json:"autoencoder_score"`
	IsolationForestScore float64  `json:"isolation_forest_score"`
	LOFScore             float64  `json:"lof_score"`
	LSTMScore            *float64 `json:"lstm_score,omitempty"`
	EnsembleScore        float64  `json:"ensemble_score"`
	IsAnomaly            bool     `json:"is_anomaly"`
	Confidence           float64  `json:"confidence"`
}

// Config configures the ensemble combiner.
type Config struct {
	// Threshold is the ensemble score at or above which a vector is
	// flagged anomalous. Boundary inclusive.
	Threshold float64 `koanf:"threshold"`

	// Weights maps model names to ensemble weights. Missing entries
	// default to 1. Weights are re-normalized over the models that
	// actually produced a score.
	Weights map[string]float64 `koanf:"weights"`

	// Window is the trailing history length required by the sequence
	// model.
	Window int `koanf:"window"`

	// Severity buckets ensemble scores into triage tiers.
	Severity SeverityThresholds `koanf:"severity"`
}

// SeverityThresholds are the inclusive lower score bounds for each tier
// above low. They must descend: Critical >= High >= Medium.
type SeverityThresholds struct {
	Critical float64 `koanf:"critical"`
	High     float64 `koanf:"high"`
	Medium   float64 `koanf:"medium"`
}

func DefaultSeverityThresholds() SeverityThresholds {
	return SeverityThresholds{Critical: 0.80, High: 0.70, Medium: 0.55}
}

// DefaultConfig returns equal-weight defaults.
func DefaultConfig() Config {
	return Config{
		Threshold: 0.55,
		Weights:   map[string]float64{},
		Window:    10,
		Severity:  DefaultSeverityThresholds(),
	}
}

// Detector combines the four sub-models into one ensemble verdict. Scoring
// is a deterministic pure function of (vector, history, parameters).
type Detector struct {
	cfg    Config
	point  []Model // models scoring a single vector
	seqMod *SequenceModel
}

// NewDetector builds the standard four-model ensemble.
func NewDetector(cfg Config) *Detector {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.55
	}
	if cfg.Window == 0 {
		cfg.Window = 10
	}
	if (cfg.Severity == SeverityThresholds{}) {
		cfg.Severity = DefaultSeverityThresholds()
	}
	return &Detector{
		cfg: cfg,
		point: []Model{
			NewReconstructionModel(),
			NewIsolationModel(),
			NewDensityModel(),
		},
		seqMod: NewSequenceModel(cfg.Window),
	}
}

// Threshold returns the configured anomaly threshold.
func (d *Detector) Threshold() float64 {
	return d.cfg.Threshold
}

// Window returns the sequence model's history window size.
func (d *Detector) Window() int {
	return d.cfg.Window
}

// Severity returns the configured severity tier boundaries.
func (d *Detector) Severity() SeverityThresholds {
	return d.cfg.Severity
}

// Score scores one vector. history is the trailing window of earlier
// vectors for the same endpoint, oldest first; it may be nil, in which
// case the sequence model is omitted from the ensemble (not zeroed).
func (d *Detector) Score(v telemetry.FeatureVector, history []telemetry.FeatureVector) (AnomalyScore, error) {
	if err := v.Validate(); err != nil {
		return AnomalyScore{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var (
		names  []string
		scores []float64
	)
	for _, m := range d.point {
		names = append(names, m.Name())
		scores = append(scores, m.Score(v))
	}

	var lstm *float64
	if seqScore, ok := d.seqMod.ScoreWindow(append(append([]telemetry.FeatureVector{}, history...), v)); ok {
		lstm = &seqScore
		names = append(names, d.seqMod.Name())
		scores = append(scores, seqScore)
	}

	ensemble := d.weightedAverage(names, scores)

	out := AnomalyScore{
		AutoencoderScore:     scores[0],
		IsolationForestScore: scores[1],
		LOFScore:             scores[2],
		LSTMScore:            lstm,
		EnsembleScore:        ensemble,
		IsAnomaly:            ensemble >= d.cfg.Threshold,
		Confidence:           agreementConfidence(scores),
	}
	return out, nil
}

// weightedAverage combines the available sub-scores, re-normalizing the
// configured weights over the models that produced a score.
func (d *Detector) weightedAverage(names []string, scores []float64) float64 {
	var weighted, total float64
	for i, name := range names {
		w, ok := d.cfg.Weights[name]
		if !ok {
			w = 1.0
		}
		weighted += scores[i] * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// agreementConfidence maps sub-model agreement to [0,1]: low variance
// across sub-scores means the models agree and confidence is high,
// independent of the score's magnitude.
func agreementConfidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var mean float64
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	return 1.0 / (1.0 + 5.0*variance)
}
