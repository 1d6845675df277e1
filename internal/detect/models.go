// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package detect

import (
	"math"
	"sort"

	"github.com/sentriq/sentriq/internal/telemetry"
)

// Model wire names. Serialized score fields derive from these; downstream
// reporting depends on exact naming.
const (
	ModelAutoencoder     = "autoencoder"
	ModelIsolationForest = "isolation_forest"
	ModelLOF             = "lof"
	ModelLSTM            = "lstm"
)

// Model scores a single feature vector on [0,1]; higher is more anomalous.
// Implementations are deterministic pure functions of their parameters and
// the input vector.
type Model interface {
	Name() string
	Score(v telemetry.FeatureVector) float64
}

// zscores returns the absolute per-feature z-scores of a vector against
// the baseline profile, in canonical feature order.
func zscores(v telemetry.FeatureVector) []float64 {
	names := telemetry.FeatureNames()
	out := make([]float64, len(names))
	for i, name := range names {
		b, _ := telemetry.BaselineFor(name)
		out[i] = math.Abs(v.Value(name)-b.Mean) / b.Std
	}
	return out
}

// meanSquaredZ is the mean squared deviation of a vector from baseline, in
// standard-deviation units. Zero for a vector exactly at baseline, around
// one for plain Gaussian jitter.
func meanSquaredZ(v telemetry.FeatureVector) float64 {
	var sum float64
	zs := zscores(v)
	for _, z := range zs {
		sum += z * z
	}
	return sum / float64(len(zs))
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// ReconstructionModel approximates an autoencoder: it treats the baseline
// profile as the learned compressed representation and scores the
// reconstruction error of the input against it. The error is z-score
// normalized with reference statistics calibrated on normal traffic and
// squashed to [0,1].
type ReconstructionModel struct {
	// RefMean and RefStd are the reconstruction-error statistics of
	// normal traffic, including diurnal and role variation.
	RefMean float64
	RefStd  float64
}

// NewReconstructionModel returns the model with calibrated reference
// statistics.
func NewReconstructionModel() *ReconstructionModel {
	return &ReconstructionModel{RefMean: 3.2, RefStd: 1.5}
}

func (m *ReconstructionModel) Name() string { return ModelAutoencoder }

func (m *ReconstructionModel) Score(v telemetry.FeatureVector) float64 {
	err := meanSquaredZ(v)
	return sigmoid((err - m.RefMean) / m.RefStd)
}

// IsolationModel approximates an isolation forest: points that deviate far
// from the reference population on a few dimensions are separable in few
// partitioning steps. The expected isolation depth of a feature falls
// exponentially with its deviation, so the per-feature outlier score is
// 1-exp(-z/scale); the model averages the k most isolating features.
type IsolationModel struct {
	// Scale controls how quickly deviation shortens the isolation path.
	Scale float64

	// TopK is the number of most-isolating features averaged into the
	// final score. Averaging over all features would dilute single-vector
	// attacks that perturb only two or three fields.
	TopK int
}

// NewIsolationModel returns the model with default parameters.
func NewIsolationModel() *IsolationModel {
	return &IsolationModel{Scale: 4.0, TopK: 3}
}

func (m *IsolationModel) Name() string { return ModelIsolationForest }

func (m *IsolationModel) Score(v telemetry.FeatureVector) float64 {
	zs := zscores(v)
	scores := make([]float64, len(zs))
	for i, z := range zs {
		scores[i] = 1.0 - math.Exp(-z/m.Scale)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	k := m.TopK
	if k > len(scores) {
		k = len(scores)
	}
	var sum float64
	for _, s := range scores[:k] {
		sum += s
	}
	return sum / float64(k)
}

// DensityModel approximates a local outlier factor: the local density of a
// Gaussian reference population around a point decays as exp(-z²/2), so
// the density ratio against the point's neighbors grows with the mean
// squared deviation. Lower relative density means a higher score.
type DensityModel struct {
	// Bandwidth widens the density kernel so ordinary jitter keeps a
	// near-unit density ratio.
	Bandwidth float64
}

// NewDensityModel returns the model with default parameters.
func NewDensityModel() *DensityModel {
	return &DensityModel{Bandwidth: 8.0}
}

func (m *DensityModel) Name() string { return ModelLOF }

func (m *DensityModel) Score(v telemetry.FeatureVector) float64 {
	// score = 1 - localDensity/refDensity = 1 - exp(-meanZ²/bandwidth)
	return 1.0 - math.Exp(-meanSquaredZ(v)/m.Bandwidth)
}

// SequenceModel scores temporal deviation of a trailing window of vectors
// from the learned normal sequence pattern. It requires at least Window
// trailing vectors; with less history its score is omitted entirely rather
// than reported as zero.
type SequenceModel struct {
	// Window is the minimum number of trailing vectors required.
	Window int

	// RefMean and RefStd normalize the windowed error like the
	// reconstruction model's reference statistics.
	RefMean float64
	RefStd  float64
}

// NewSequenceModel returns the model with the given window size.
func NewSequenceModel(window int) *SequenceModel {
	return &SequenceModel{Window: window, RefMean: 3.2, RefStd: 1.5}
}

func (m *SequenceModel) Name() string { return ModelLSTM }

// ScoreWindow scores the trailing window ending at the current vector.
// ok is false when the history is too short for a sequence verdict.
func (m *SequenceModel) ScoreWindow(history []telemetry.FeatureVector) (float64, bool) {
	if len(history) < m.Window {
		return 0, false
	}

	window := history[len(history)-m.Window:]
	var sum float64
	for _, v := range window {
		sum += meanSquaredZ(v)
	}
	err := sum / float64(len(window))
	return sigmoid((err - m.RefMean) / m.RefStd), true
}
