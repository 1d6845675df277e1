// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

// Package mitre maps anomalous telemetry onto MITRE ATT&CK techniques and
// produces feature-level attributions and analyst-readable explanations.
package mitre
