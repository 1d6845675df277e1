// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

// Package loop runs the continuous detection cycle: generate telemetry,
// score it, map anomalies to ATT&CK techniques, and raise incidents.
package loop

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/sentriq/sentriq/internal/detect"
	"github.com/sentriq/sentriq/internal/events"
	"github.com/sentriq/sentriq/internal/incident"
	"github.com/sentriq/sentriq/internal/logging"
	"github.com/sentriq/sentriq/internal/metrics"
	"github.com/sentriq/sentriq/internal/mitre"
	"github.com/sentriq/sentriq/internal/telemetry"
)

var ErrAttackActive = errors.New("attack already active for endpoint")

// Config mirrors config.LoopConfig without importing it, keeping this
// package free of the config tree.
type Config struct {
	Interval             time.Duration
	EndpointsPerTick     int
	InjectionProbability float64
	AttackMinSeconds     int
	AttackMaxSeconds     int
	// IncidentCooldown suppresses repeat incidents for the same endpoint
	// while analysts work the first one. Zero disables suppression.
	IncidentCooldown time.Duration
}

// attackRun is one in-flight simulated attack against an endpoint.
type attackRun struct {
	seq             *telemetry.AttackSequence
	attackType      telemetry.AttackType
	incidentCreated bool
	// incidentID holds the incident this run raised, empty until then.
	incidentID string
}

// Loop drives detection. It implements suture.Service via Serve.
type Loop struct {
	cfg       Config
	generator *telemetry.Generator
	registry  *telemetry.Registry
	detector  *detect.Detector
	mapper    *mitre.Mapper
	explainer *mitre.Explainer
	histories *detect.HistorySet
	store     incident.Store
	hub       *events.Hub

	mu           sync.Mutex
	runs         map[string]*attackRun
	lastIncident map[string]time.Time
	cursor       int
	rng          *rand.Rand
}

func New(cfg Config, gen *telemetry.Generator, reg *telemetry.Registry,
	det *detect.Detector, store incident.Store, hub *events.Hub, seed int64) *Loop {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Loop{
		cfg:          cfg,
		generator:    gen,
		registry:     reg,
		detector:     det,
		mapper:       mitre.NewMapper(),
		explainer:    mitre.NewExplainer(det.Severity()),
		histories:    detect.NewHistorySet(det.Window()),
		store:        store,
		hub:          hub,
		runs:         make(map[string]*attackRun),
		lastIncident: make(map[string]time.Time),
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Serve ticks until the context is cancelled. A failed tick is logged and
// counted, never fatal.
func (l *Loop) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", l.cfg.Interval).
		Int("endpoints_per_tick", l.cfg.EndpointsPerTick).
		Msg("detection loop starting")

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("detection loop stopping")
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	metrics.DetectionTicks.Inc()

	l.maybeInject()

	ids := l.nextBatch()
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(endpointID string) {
			defer wg.Done()
			if err := l.processEndpoint(ctx, endpointID); err != nil {
				metrics.DetectionTickErrors.Inc()
				logging.Err(err).Str("endpoint_id", endpointID).Msg("detection tick")
			}
		}(id)
	}
	wg.Wait()
}

// nextBatch selects the endpoints to score this tick, round-robin across
// the fleet so every endpoint gets regular coverage.
func (l *Loop) nextBatch() []string {
	eps := l.registry.List()
	if len(eps) == 0 {
		return nil
	}
	n := l.cfg.EndpointsPerTick
	if n > len(eps) {
		n = len(eps)
	}
	l.mu.Lock()
	start := l.cursor
	l.cursor = (l.cursor + n) % len(eps)
	l.mu.Unlock()

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, eps[(start+i)%len(eps)].ID)
	}
	return out
}

// maybeInject rolls the injection dice and starts a random attack on a
// random healthy endpoint.
func (l *Loop) maybeInject() {
	l.mu.Lock()
	roll := l.rng.Float64()
	l.mu.Unlock()
	if roll >= l.cfg.InjectionProbability {
		return
	}

	eps := l.registry.List()
	l.mu.Lock()
	defer l.mu.Unlock()

	candidates := make([]string, 0, len(eps))
	for _, ep := range eps {
		if _, active := l.runs[ep.ID]; !active && ep.Status == telemetry.StatusHealthy {
			candidates = append(candidates, ep.ID)
		}
	}
	if len(candidates) == 0 {
		return
	}

	types := telemetry.AttackTypes()
	endpointID := candidates[l.rng.Intn(len(candidates))]
	attackType := types[l.rng.Intn(len(types))]
	duration := l.cfg.AttackMinSeconds
	if span := l.cfg.AttackMaxSeconds - l.cfg.AttackMinSeconds; span > 0 {
		duration += l.rng.Intn(span + 1)
	}

	if err := l.startRunLocked(endpointID, attackType, duration); err != nil {
		logging.Err(err).Str("endpoint_id", endpointID).Msg("attack injection")
	}
}

// InjectAttack starts a simulated attack on demand. Used by the API.
func (l *Loop) InjectAttack(endpointID string, attackType telemetry.AttackType, durationSeconds int) error {
	if durationSeconds <= 0 {
		durationSeconds = l.cfg.AttackMinSeconds
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startRunLocked(endpointID, attackType, durationSeconds)
}

func (l *Loop) startRunLocked(endpointID string, attackType telemetry.AttackType, durationSeconds int) error {
	if _, active := l.runs[endpointID]; active {
		return ErrAttackActive
	}
	seq, err := l.generator.AttackSequence(endpointID, attackType, durationSeconds)
	if err != nil {
		return err
	}
	l.runs[endpointID] = &attackRun{seq: seq, attackType: attackType}
	metrics.AttackInjections.WithLabelValues(string(attackType)).Inc()
	logging.Info().
		Str("endpoint_id", endpointID).
		Str("attack_type", string(attackType)).
		Int("duration_seconds", durationSeconds).
		Msg("attack injected")
	return nil
}

// ActiveAttacks reports endpoints currently under simulated attack.
func (l *Loop) ActiveAttacks() map[string]telemetry.AttackType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]telemetry.AttackType, len(l.runs))
	for id, run := range l.runs {
		out[id] = run.attackType
	}
	return out
}

// ResolveIncident closes an incident and returns its endpoint to healthy,
// unless a simulated attack still holds the endpoint compromised. Endpoint
// status is mutated only here and at incident creation.
func (l *Loop) ResolveIncident(ctx context.Context, incidentID string) (*incident.Incident, error) {
	inc, err := l.store.Resolve(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	_, attackActive := l.runs[inc.EndpointID]
	l.mu.Unlock()
	if !attackActive {
		_ = l.registry.SetStatus(inc.EndpointID, telemetry.StatusHealthy)
	}
	logging.Info().
		Str("incident_id", inc.ID).
		Str("endpoint_id", inc.EndpointID).
		Bool("attack_active", attackActive).
		Msg("incident resolved")
	return inc, nil
}

// processEndpoint generates one vector for the endpoint, scores it, and
// raises an incident on a positive verdict.
func (l *Loop) processEndpoint(ctx context.Context, endpointID string) error {
	vector, run, err := l.nextVector(ctx, endpointID)
	if err != nil {
		return err
	}

	history := l.histories.For(endpointID)
	score, err := l.detector.Score(vector, history.Window())
	if err != nil {
		return err
	}
	history.Append(vector)
	_ = l.registry.Touch(endpointID, vector.Timestamp)

	metrics.EnsembleScores.Observe(score.EnsembleScore)
	verdict := "normal"
	if score.IsAnomaly {
		verdict = "anomaly"
	}
	metrics.VectorsScored.WithLabelValues(verdict).Inc()

	l.hub.Publish(events.Event{
		Type:      events.TypeTelemetry,
		Timestamp: vector.Timestamp,
		Payload: map[string]interface{}{
			"endpoint_id": endpointID,
			"vector":      vector,
			"score":       score,
		},
	})

	if !score.IsAnomaly {
		return nil
	}
	return l.raiseIncident(ctx, endpointID, vector, score, run)
}

// nextVector pulls from the active attack sequence if one exists,
// otherwise from the normal generator. An exhausted sequence ends the run;
// the endpoint returns to healthy only when no open incident still
// targets it, otherwise resolution restores it.
func (l *Loop) nextVector(ctx context.Context, endpointID string) (telemetry.FeatureVector, *attackRun, error) {
	l.mu.Lock()
	run, active := l.runs[endpointID]
	if active {
		if v, ok := run.seq.Next(); ok {
			l.mu.Unlock()
			return v, run, nil
		}
		delete(l.runs, endpointID)
		l.mu.Unlock()
		if !l.incidentStillOpen(ctx, run.incidentID) {
			_ = l.registry.SetStatus(endpointID, telemetry.StatusHealthy)
		}
		logging.Info().
			Str("endpoint_id", endpointID).
			Str("attack_type", string(run.attackType)).
			Msg("attack run finished")
		v, err := l.generator.Next(endpointID)
		return v, nil, err
	}
	l.mu.Unlock()
	v, err := l.generator.Next(endpointID)
	return v, nil, err
}

func (l *Loop) incidentStillOpen(ctx context.Context, incidentID string) bool {
	if incidentID == "" {
		return false
	}
	inc, err := l.store.Get(ctx, incidentID)
	if err != nil {
		return false
	}
	return inc.Status == incident.StatusOpen
}

func (l *Loop) raiseIncident(ctx context.Context, endpointID string, vector telemetry.FeatureVector,
	score detect.AnomalyScore, run *attackRun) error {

	attackType := ""
	l.mu.Lock()
	if run != nil {
		if run.incidentCreated {
			l.mu.Unlock()
			return nil
		}
		run.incidentCreated = true
		attackType = string(run.attackType)
	} else {
		if last, ok := l.lastIncident[endpointID]; ok && time.Since(last) < l.cfg.IncidentCooldown {
			l.mu.Unlock()
			return nil
		}
	}
	l.lastIncident[endpointID] = time.Now()
	l.mu.Unlock()

	matches := l.mapper.Map(vector, score)
	contribs := l.explainer.Contributions(vector)
	explanation := l.explainer.Explain(score, contribs, matches)

	inc := incident.New(endpointID, vector, score, l.detector.Severity(), matches, contribs, explanation, attackType)
	if err := l.store.Create(ctx, inc); err != nil {
		return err
	}
	if run != nil {
		l.mu.Lock()
		run.incidentID = inc.ID
		l.mu.Unlock()
	}
	_ = l.registry.SetStatus(endpointID, telemetry.StatusCompromised)
	metrics.IncidentsCreated.WithLabelValues(string(inc.Severity)).Inc()

	logging.Warn().
		Str("incident_id", inc.ID).
		Str("endpoint_id", endpointID).
		Str("severity", string(inc.Severity)).
		Float64("ensemble_score", score.EnsembleScore).
		Str("attack_type", attackType).
		Msg("incident created")

	l.hub.Publish(events.Event{
		Type:      events.TypeIncidentCreated,
		Timestamp: inc.Timestamp,
		Payload:   inc,
	})
	return nil
}
