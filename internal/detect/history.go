// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package detect

import (
	"sync"

	"github.com/sentriq/sentriq/internal/telemetry"
)

// History keeps the trailing window of vectors for one endpoint, feeding
// the sequence model. Bounded; older vectors are discarded.
type History struct {
	mu  sync.Mutex
	buf []telemetry.FeatureVector
	cap int
}

// NewHistory creates a history window holding up to capacity vectors.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{cap: capacity}
}

// Append records a vector, evicting the oldest when full.
func (h *History) Append(v telemetry.FeatureVector) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf = append(h.buf, v)
	if len(h.buf) > h.cap {
		h.buf = h.buf[len(h.buf)-h.cap:]
	}
}

// Window returns a copy of the trailing window, oldest first.
func (h *History) Window() []telemetry.FeatureVector {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]telemetry.FeatureVector, len(h.buf))
	copy(out, h.buf)
	return out
}

// Len returns the number of buffered vectors.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buf)
}

// HistorySet holds per-endpoint history windows.
type HistorySet struct {
	mu       sync.Mutex
	capacity int
	windows  map[string]*History
}

// NewHistorySet creates a set of per-endpoint windows of the given capacity.
func NewHistorySet(capacity int) *HistorySet {
	return &HistorySet{
		capacity: capacity,
		windows:  make(map[string]*History),
	}
}

// For returns the history window for an endpoint, creating it on first use.
func (s *HistorySet) For(endpointID string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.windows[endpointID]
	if !ok {
		h = NewHistory(s.capacity)
		s.windows[endpointID] = h
	}
	return h
}
