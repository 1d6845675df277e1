// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

// Package playbook holds the response-procedure catalog and drives
// per-incident execution sessions, including automated-step hooks behind
// a circuit breaker.
package playbook
