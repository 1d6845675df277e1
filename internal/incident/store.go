// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package incident

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sentriq/sentriq/internal/metrics"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status   Status
	Severity Severity
	Limit    int
}

func (f Filter) matches(inc *Incident) bool {
	if f.Status != "" && inc.Status != f.Status {
		return false
	}
	if f.Severity != "" && inc.Severity != f.Severity {
		return false
	}
	return true
}

// Store persists incidents. Implementations must treat resolved as a
// terminal state: resolving twice returns ErrAlreadyResolved.
type Store interface {
	Create(ctx context.Context, inc *Incident) error
	Get(ctx context.Context, id string) (*Incident, error)
	List(ctx context.Context, f Filter) ([]*Incident, error)
	Resolve(ctx context.Context, id string) (*Incident, error)
	Close() error
}

// MemoryStore keeps incidents in process memory. Used in tests and when
// no data directory is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	incidents map[string]*Incident
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{incidents: make(map[string]*Incident)}
}

func (s *MemoryStore) Create(_ context.Context, inc *Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inc
	s.incidents[inc.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inc
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		if f.matches(inc) {
			cp := *inc
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Resolve(_ context.Context, id string) (*Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	if inc.Status == StatusResolved {
		return nil, ErrAlreadyResolved
	}
	now := time.Now().UTC()
	inc.Status = StatusResolved
	inc.ResolvedAt = &now
	metrics.IncidentsResolved.Inc()
	cp := *inc
	return &cp, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortNewestFirst(incs []*Incident) {
	sort.SliceStable(incs, func(i, j int) bool {
		if !incs[i].Timestamp.Equal(incs[j].Timestamp) {
			return incs[i].Timestamp.After(incs[j].Timestamp)
		}
		return incs[i].ID < incs[j].ID
	})
}
