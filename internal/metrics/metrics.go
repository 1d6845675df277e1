// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

// Package metrics exposes the Prometheus collectors used across Sentriq.
// All collectors are registered with the default registry via promauto and
// served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detection loop metrics

	DetectionTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detection_ticks_total",
			Help: "Total number of detection loop ticks",
		},
	)

	DetectionTickErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detection_tick_errors_total",
			Help: "Total number of per-endpoint failures inside detection ticks",
		},
	)

	AttackInjections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attack_injections_total",
			Help: "Total number of simulated attack sequences injected",
		},
		[]string{"attack_type"},
	)

	EnsembleScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ensemble_score",
			Help:    "Distribution of ensemble anomaly scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 .. 1.0
		},
	)

	VectorsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectors_scored_total",
			Help: "Total number of feature vectors scored by the ensemble",
		},
		[]string{"verdict"}, // "anomaly", "normal"
	)

	// Incident metrics

	IncidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidents_created_total",
			Help: "Total number of incidents created",
		},
		[]string{"severity"},
	)

	IncidentsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "incidents_resolved_total",
			Help: "Total number of incidents transitioned to resolved",
		},
	)

	// Playbook metrics

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playbook_sessions_active",
			Help: "Number of playbook sessions currently in progress",
		},
	)

	HookExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_hook_executions_total",
			Help: "Total number of automation hook executions",
		},
		[]string{"hook", "status"}, // status: "success", "failure", "rejected"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Event hub metrics

	BroadcastsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_broadcasts_dropped_total",
			Help: "Events dropped because a subscriber queue was full",
		},
		[]string{"event_type"},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_subscribers",
			Help: "Number of attached event subscribers",
		},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)
)
