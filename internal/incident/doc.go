// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

// Package incident models the incident lifecycle: creation from detection
// output, severity tiering, listing, and resolution. Stores are pluggable
// with in-memory and BadgerDB implementations.
package incident
