// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

// Package telemetry defines the fixed feature-vector schema, the endpoint
// registry, and the synthetic traffic generator.
//
// The generator simulates a fleet of endpoints with per-role baselines.
// Normal traffic is Gaussian jitter around those baselines; attack traffic
// is produced by AttackSequence, which ramps attack-characteristic features
// from baseline to an elevated plateau and back down over a finite window.
package telemetry
