// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

// Package detect scores feature vectors for anomalous behavior with an
// ensemble of four sub-models: a reconstruction-error model, an
// isolation-path model, a local-density model, and a sequence model over a
// trailing history window. Each sub-model is a parameterized statistical
// heuristic with the same contract as its trained counterpart: a bounded
// deterministic score in [0,1] that degrades gracefully without history.
package detect
