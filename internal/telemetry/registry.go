// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package telemetry

import (
	"sort"
	"sync"
	"time"
)

// EndpointStatus is the health state of a monitored endpoint.
type EndpointStatus string

const (
	StatusHealthy     EndpointStatus = "healthy"
	StatusCompromised EndpointStatus = "compromised"
)

// Endpoint describes one monitored host. Status is mutated only by the
// detection loop, when an incident targeting the endpoint is created or
// resolved.
type Endpoint struct {
	ID       string         `json:"id"`
	Hostname string         `json:"hostname"`
	IP       string         `json:"ip"`
	Role     string         `json:"role"`
	OS       string         `json:"os"`
	Status   EndpointStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
}

// Registry is an explicit store of endpoint state keyed by endpoint id,
// with per-key locking so concurrent ticks on distinct endpoints never
// contend with each other.
type Registry struct {
	mu      sync.RWMutex // guards the map itself
	entries map[string]*endpointEntry
}

type endpointEntry struct {
	mu sync.Mutex
	ep Endpoint
}

// NewRegistry creates an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*endpointEntry)}
}

// Add registers an endpoint. Existing entries are replaced.
func (r *Registry) Add(ep Endpoint) {
	if ep.Status == "" {
		ep.Status = StatusHealthy
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[ep.ID] = &endpointEntry{ep: ep}
}

// Get returns a snapshot of the endpoint with the given id.
func (r *Registry) Get(id string) (Endpoint, error) {
	entry, err := r.entry(id)
	if err != nil {
		return Endpoint{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.ep, nil
}

// List returns snapshots of all endpoints, ordered by id.
func (r *Registry) List() []Endpoint {
	r.mu.RLock()
	entries := make([]*endpointEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Endpoint, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.ep)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetStatus transitions an endpoint's health status.
func (r *Registry) SetStatus(id string, status EndpointStatus) error {
	entry, err := r.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.ep.Status = status
	return nil
}

// Touch records that telemetry was observed for an endpoint.
func (r *Registry) Touch(id string, at time.Time) error {
	entry, err := r.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.ep.LastSeen = at
	return nil
}

// Count returns the number of registered endpoints.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) entry(id string) (*endpointEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrEndpointNotFound
	}
	return entry, nil
}
