// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package telemetry

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// GeneratorConfig configures the synthetic telemetry generator.
type GeneratorConfig struct {
	// NumEndpoints is the size of the simulated fleet.
	NumEndpoints int `koanf:"num_endpoints"`

	// Seed seeds the generator's random source. Zero selects a
	// time-derived seed; any other value gives a reproducible fleet and
	// traffic pattern.
	Seed int64 `koanf:"seed"`
}

// DefaultGeneratorConfig returns the default generator settings.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{NumEndpoints: 75}
}

// Generator produces synthetic per-endpoint telemetry: normal traffic with
// per-role baselines and Gaussian jitter, and attack-shaped sequences via
// AttackSequence. All randomness flows through one seeded source so runs
// are reproducible under a fixed seed.
type Generator struct {
	registry *Registry

	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand

	now func() time.Time
}

var endpointRoles = []string{"workstation", "server", "database", "web_server", "file_server"}

var endpointOSes = []string{"Windows 10", "Windows Server 2019", "Ubuntu 20.04", "CentOS 8"}

// NewGenerator creates a generator and populates the registry with a
// simulated fleet of cfg.NumEndpoints endpoints (EP-0000, EP-0001, ...).
func NewGenerator(cfg GeneratorConfig, registry *Registry) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Generator{
		registry: registry,
		rng:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
	}

	for i := 0; i < cfg.NumEndpoints; i++ {
		g.registry.Add(Endpoint{
			ID:       fmt.Sprintf("EP-%04d", i),
			Hostname: fmt.Sprintf("host-%04d", i),
			IP:       fmt.Sprintf("10.%d.%d.%d", (i/65536)%256, (i/256)%256, i%256),
			Role:     endpointRoles[g.intn(len(endpointRoles))],
			OS:       endpointOSes[g.intn(len(endpointOSes))],
			Status:   StatusHealthy,
			LastSeen: g.now(),
		})
	}

	return g
}

// Registry returns the endpoint registry backing this generator.
func (g *Generator) Registry() *Registry {
	return g.registry
}

// Next produces one normal-traffic vector for the given endpoint.
func (g *Generator) Next(endpointID string) (FeatureVector, error) {
	ep, err := g.registry.Get(endpointID)
	if err != nil {
		return FeatureVector{}, err
	}
	return g.normalVector(ep, g.now()), nil
}

// Stream returns a lazy, infinite, non-restartable sequence of normal
// vectors for one endpoint.
func (g *Generator) Stream(endpointID string) (*Stream, error) {
	if _, err := g.registry.Get(endpointID); err != nil {
		return nil, err
	}
	return &Stream{gen: g, endpointID: endpointID}, nil
}

// Stream yields normal-traffic vectors one at a time.
type Stream struct {
	gen        *Generator
	endpointID string
}

// Next returns the next vector in the stream. The error is non-nil only if
// the endpoint has been removed from the registry.
func (s *Stream) Next() (FeatureVector, error) {
	return s.gen.Next(s.endpointID)
}

// normalVector samples each feature from its baseline with Gaussian jitter,
// time-of-day modulation, an occasional benign spike, and role-specific
// adjustments, clipped to the feature's documented range.
func (g *Generator) normalVector(ep Endpoint, ts time.Time) FeatureVector {
	v := FeatureVector{EndpointID: ep.ID, Timestamp: ts}
	mult := timeOfDayMultiplier(ts)

	for _, name := range featureNames {
		b := baselines[name]
		val := g.normFloat64()*b.Std + b.Mean*mult
		// 5% chance of a benign spike; normal variation, not an attack.
		if g.float64() < 0.05 {
			val *= 1.5 + g.float64()*0.5
		}
		v.set(name, clip(val, b.Min, b.Max))
	}

	applyRoleProfile(&v, ep.Role)
	return v
}

// timeOfDayMultiplier models diurnal load: busier in business hours,
// quieter at night.
func timeOfDayMultiplier(ts time.Time) float64 {
	hour := ts.Hour()
	switch {
	case hour >= 9 && hour <= 17:
		return 1.3
	case hour >= 22 || hour <= 6:
		return 0.6
	default:
		return 1.0
	}
}

// applyRoleProfile scales role-characteristic features, keeping values
// within their documented ranges.
func applyRoleProfile(v *FeatureVector, role string) {
	switch role {
	case "web_server":
		v.APICalls = clip(v.APICalls*2.0, 0, baselines[FeatureAPICalls].Max)
		v.NetworkIn = clip(v.NetworkIn*1.5, 0, baselines[FeatureNetworkIn].Max)
	case "database":
		v.DiskRead = clip(v.DiskRead*1.8, 0, baselines[FeatureDiskRead].Max)
		v.DiskWrite = clip(v.DiskWrite*1.5, 0, baselines[FeatureDiskWrite].Max)
	case "file_server":
		v.FileAccess = clip(v.FileAccess*2.5, 0, baselines[FeatureFileAccess].Max)
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

func (g *Generator) float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

func (g *Generator) normFloat64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.NormFloat64()
}

func (g *Generator) uniform(lo, hi float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.Float64()*(hi-lo)
}
