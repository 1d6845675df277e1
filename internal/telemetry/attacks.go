// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package telemetry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// AttackType identifies one of the simulated attack scenarios.
type AttackType string

const (
	AttackBruteForce          AttackType = "brute_force"
	AttackCryptoMining        AttackType = "crypto_mining"
	AttackDataExfiltration    AttackType = "data_exfiltration"
	AttackPrivilegeEscalation AttackType = "privilege_escalation"
	AttackCommandControl      AttackType = "command_control"
	AttackLateralMovement     AttackType = "lateral_movement"
	AttackZeroDayBlend        AttackType = "zero_day_blend"
)

// ErrUnknownAttackType indicates an attack type outside the catalog.
var ErrUnknownAttackType = errors.New("telemetry: unknown attack type")

// RampShape selects how attack intensity progresses over the sequence.
type RampShape string

const (
	// RampLinear ramps up linearly, holds a plateau, and tapers off.
	RampLinear RampShape = "linear"

	// RampSigmoid has a slow onset, a sharp escalation, and a taper.
	RampSigmoid RampShape = "sigmoid"
)

// featurePerturbation scales one feature during an attack. The multiplier
// is drawn once per point from [MultLo, MultHi]; Spike adds occasional
// short bursts on top of the ramp.
type featurePerturbation struct {
	MultLo float64
	MultHi float64
	Spike  bool
}

// AttackProfile describes one attack scenario: the technique it models and
// the features it perturbs.
type AttackProfile struct {
	Type        AttackType
	TechniqueID string
	Name        string
	Tactic      string
	Ramp        RampShape
	Features    map[string]featurePerturbation
}

// attackCatalog maps each attack type to its telemetry signature. The
// perturbed features line up with the trigger features of the MITRE rule
// table, so injected attacks attribute correctly.
var attackCatalog = map[AttackType]AttackProfile{
	AttackBruteForce: {
		Type: AttackBruteForce, TechniqueID: "T1110", Name: "Brute Force",
		Tactic: "Credential Access", Ramp: RampSigmoid,
		Features: map[string]featurePerturbation{
			FeatureFailedLogins: {MultLo: 8, MultHi: 15, Spike: true},
			FeatureAuthAttempts: {MultLo: 6, MultHi: 12, Spike: true},
			FeatureNetworkIn:    {MultLo: 1.5, MultHi: 2.0},
		},
	},
	AttackCryptoMining: {
		Type: AttackCryptoMining, TechniqueID: "T1496", Name: "Resource Hijacking",
		Tactic: "Impact", Ramp: RampLinear,
		Features: map[string]featurePerturbation{
			FeatureCPUUsage:        {MultLo: 3.5, MultHi: 5.0},
			FeatureNetworkOut:      {MultLo: 2.0, MultHi: 3.5},
			FeatureProcessCreation: {MultLo: 2.5, MultHi: 4.0},
		},
	},
	AttackDataExfiltration: {
		Type: AttackDataExfiltration, TechniqueID: "T1048", Name: "Exfiltration Over Alternative Protocol",
		Tactic: "Exfiltration", Ramp: RampLinear,
		Features: map[string]featurePerturbation{
			FeatureNetworkOut: {MultLo: 4.0, MultHi: 8.0, Spike: true},
			FeatureDiskRead:   {MultLo: 3.0, MultHi: 5.0},
			FeatureFileAccess: {MultLo: 3.5, MultHi: 6.0},
			FeatureDNSQueries: {MultLo: 2.0, MultHi: 3.0},
		},
	},
	AttackPrivilegeEscalation: {
		Type: AttackPrivilegeEscalation, TechniqueID: "T1068", Name: "Exploitation for Privilege Escalation",
		Tactic: "Privilege Escalation", Ramp: RampSigmoid,
		Features: map[string]featurePerturbation{
			FeatureProcessCreation: {MultLo: 4.0, MultHi: 7.0, Spike: true},
			FeatureAPICalls:        {MultLo: 3.0, MultHi: 5.0},
			FeatureMemoryUsage:     {MultLo: 2.0, MultHi: 3.0},
			FeatureFailedLogins:    {MultLo: 2.0, MultHi: 4.0},
		},
	},
	AttackCommandControl: {
		Type: AttackCommandControl, TechniqueID: "T1071", Name: "Application Layer Protocol",
		Tactic: "Command and Control", Ramp: RampLinear,
		Features: map[string]featurePerturbation{
			FeatureNetworkOut: {MultLo: 2.5, MultHi: 4.0},
			FeatureNetworkIn:  {MultLo: 2.0, MultHi: 3.5},
			FeatureDNSQueries: {MultLo: 4.0, MultHi: 8.0, Spike: true},
			FeatureAPICalls:   {MultLo: 2.5, MultHi: 4.5},
		},
	},
	AttackLateralMovement: {
		Type: AttackLateralMovement, TechniqueID: "T1021", Name: "Remote Services",
		Tactic: "Lateral Movement", Ramp: RampSigmoid,
		Features: map[string]featurePerturbation{
			FeatureNetworkIn:       {MultLo: 3.0, MultHi: 5.0},
			FeatureAuthAttempts:    {MultLo: 3.0, MultHi: 6.0, Spike: true},
			FeatureProcessCreation: {MultLo: 2.5, MultHi: 4.0},
			FeatureFailedLogins:    {MultLo: 2.0, MultHi: 4.0},
		},
	},
	AttackZeroDayBlend: {
		Type: AttackZeroDayBlend, TechniqueID: "T1190", Name: "Exploit Public-Facing Application",
		Tactic: "Initial Access", Ramp: RampSigmoid,
		Features: map[string]featurePerturbation{
			FeatureCPUUsage:        {MultLo: 2.0, MultHi: 3.5},
			FeatureMemoryUsage:     {MultLo: 2.5, MultHi: 4.0},
			FeatureNetworkIn:       {MultLo: 3.0, MultHi: 5.0, Spike: true},
			FeatureAPICalls:        {MultLo: 4.0, MultHi: 7.0, Spike: true},
			FeatureProcessCreation: {MultLo: 2.0, MultHi: 3.5},
		},
	},
}

// AttackTypes returns the catalog's attack types in stable order.
func AttackTypes() []AttackType {
	out := make([]AttackType, 0, len(attackCatalog))
	for t := range attackCatalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ProfileFor returns the attack profile for the given type.
func ProfileFor(t AttackType) (AttackProfile, error) {
	p, ok := attackCatalog[t]
	if !ok {
		return AttackProfile{}, fmt.Errorf("%w: %q", ErrUnknownAttackType, t)
	}
	return p, nil
}

// pointInterval is the simulated sampling period of attack sequences.
const pointInterval = 2 * time.Second

// AttackSequence is a lazy, finite sequence of attack-shaped vectors:
// baseline traffic with attack features ramping from onset through a
// persistence plateau and back down.
type AttackSequence struct {
	gen     *Generator
	ep      Endpoint
	profile AttackProfile
	start   time.Time
	step    int
	total   int
}

// AttackSequence starts an attack simulation against one endpoint. The
// sequence spans durationSeconds of simulated time at one vector per 2s.
func (g *Generator) AttackSequence(endpointID string, attackType AttackType, durationSeconds int) (*AttackSequence, error) {
	profile, err := ProfileFor(attackType)
	if err != nil {
		return nil, err
	}
	ep, err := g.registry.Get(endpointID)
	if err != nil {
		return nil, err
	}

	total := durationSeconds / int(pointInterval.Seconds())
	if total < 1 {
		total = 1
	}
	return &AttackSequence{
		gen:     g,
		ep:      ep,
		profile: profile,
		start:   g.now(),
		total:   total,
	}, nil
}

// Profile returns the attack profile driving this sequence.
func (s *AttackSequence) Profile() AttackProfile {
	return s.profile
}

// Len returns the total number of vectors the sequence will yield.
func (s *AttackSequence) Len() int {
	return s.total
}

// Remaining reports how many vectors are left.
func (s *AttackSequence) Remaining() int {
	return s.total - s.step
}

// Next yields the next vector of the sequence; ok is false once the
// sequence is exhausted. Sequences cannot be restarted.
func (s *AttackSequence) Next() (FeatureVector, bool) {
	if s.step >= s.total {
		return FeatureVector{}, false
	}

	ts := s.start.Add(time.Duration(s.step) * pointInterval)
	v := s.gen.normalVector(s.ep, ts)
	intensity := rampIntensity(s.profile.Ramp, s.step, s.total)

	for name, p := range s.profile.Features {
		b := baselines[name]
		mult := s.gen.uniform(p.MultLo, p.MultHi)
		effective := 1.0 + (mult-1.0)*intensity
		if p.Spike && s.gen.float64() < 0.3 {
			effective *= s.gen.uniform(1.2, 1.5)
		}
		v.set(name, clip(v.Value(name)*effective, b.Min, b.Max))
	}

	s.step++
	return v, true
}

// rampIntensity returns the attack intensity in [0,1] for a step of the
// sequence, modeling onset, persistence, and decay.
func rampIntensity(shape RampShape, step, total int) float64 {
	progress := float64(step) / float64(total)

	switch shape {
	case RampSigmoid:
		// Slow probing start, sharp escalation, taper after the plateau.
		if progress < 0.7 {
			return 1.0 / (1.0 + math.Exp(-12.0*(progress-0.3)))
		}
		return 1.0 - (progress-0.7)/0.3*0.4

	default: // RampLinear
		switch {
		case progress < 0.3:
			return progress / 0.3 * 0.7
		case progress < 0.7:
			return 0.7 + (progress-0.3)/0.4*0.3
		default:
			return 1.0 - (progress-0.7)/0.3*0.4
		}
	}
}
