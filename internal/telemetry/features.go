// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package telemetry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Feature names, in canonical order. Serialized forms use these names
// verbatim; downstream reporting depends on exact naming.
const (
	FeatureCPUUsage        = "cpu_usage"
	FeatureMemoryUsage     = "memory_usage"
	FeatureDiskRead        = "disk_read"
	FeatureDiskWrite       = "disk_write"
	FeatureNetworkIn       = "network_in"
	FeatureNetworkOut      = "network_out"
	FeatureDNSQueries      = "dns_queries"
	FeatureAPICalls        = "api_calls"
	FeatureFailedLogins    = "failed_logins"
	FeatureAuthAttempts    = "auth_attempts"
	FeatureProcessCreation = "process_creation"
	FeatureFileAccess      = "file_access"
)

// featureNames is the canonical field ordering for iteration and wire forms.
var featureNames = []string{
	FeatureCPUUsage,
	FeatureMemoryUsage,
	FeatureDiskRead,
	FeatureDiskWrite,
	FeatureNetworkIn,
	FeatureNetworkOut,
	FeatureDNSQueries,
	FeatureAPICalls,
	FeatureFailedLogins,
	FeatureAuthAttempts,
	FeatureProcessCreation,
	FeatureFileAccess,
}

// FeatureNames returns the canonical ordered list of feature names.
// The returned slice must not be modified.
func FeatureNames() []string {
	return featureNames
}

// NumFeatures is the fixed width of a feature vector.
const NumFeatures = 12

var (
	// ErrMissingFeature indicates a vector is missing one of the required fields.
	ErrMissingFeature = errors.New("telemetry: missing feature field")

	// ErrInvalidFeature indicates a feature value is NaN, infinite, or negative.
	ErrInvalidFeature = errors.New("telemetry: invalid feature value")

	// ErrEndpointNotFound indicates an unknown endpoint id.
	ErrEndpointNotFound = errors.New("telemetry: endpoint not found")
)

// FeatureVector is a fixed-schema telemetry record: 12 named non-negative
// numeric fields sampled for one endpoint at one instant. Vectors are
// immutable once produced.
type FeatureVector struct {
	EndpointID string    `json:"endpoint_id"`
	Timestamp  time.Time `json:"timestamp"`

	CPUUsage        float64 `json:"cpu_usage"`
	MemoryUsage     float64 `json:"memory_usage"`
	DiskRead        float64 `json:"disk_read"`
	DiskWrite       float64 `json:"disk_write"`
	NetworkIn       float64 `json:"network_in"`
	NetworkOut      float64 `json:"network_out"`
	DNSQueries      float64 `json:"dns_queries"`
	APICalls        float64 `json:"api_calls"`
	FailedLogins    float64 `json:"failed_logins"`
	AuthAttempts    float64 `json:"auth_attempts"`
	ProcessCreation float64 `json:"process_creation"`
	FileAccess      float64 `json:"file_access"`
}

// Value returns the value of the named feature. Unknown names return 0.
func (v FeatureVector) Value(name string) float64 {
	switch name {
	case FeatureCPUUsage:
		return v.CPUUsage
	case FeatureMemoryUsage:
		return v.MemoryUsage
	case FeatureDiskRead:
		return v.DiskRead
	case FeatureDiskWrite:
		return v.DiskWrite
	case FeatureNetworkIn:
		return v.NetworkIn
	case FeatureNetworkOut:
		return v.NetworkOut
	case FeatureDNSQueries:
		return v.DNSQueries
	case FeatureAPICalls:
		return v.APICalls
	case FeatureFailedLogins:
		return v.FailedLogins
	case FeatureAuthAttempts:
		return v.AuthAttempts
	case FeatureProcessCreation:
		return v.ProcessCreation
	case FeatureFileAccess:
		return v.FileAccess
	}
	return 0
}

// set assigns the named feature. Unknown names are ignored.
func (v *FeatureVector) set(name string, val float64) {
	switch name {
	case FeatureCPUUsage:
		v.CPUUsage = val
	case FeatureMemoryUsage:
		v.MemoryUsage = val
	case FeatureDiskRead:
		v.DiskRead = val
	case FeatureDiskWrite:
		v.DiskWrite = val
	case FeatureNetworkIn:
		v.NetworkIn = val
	case FeatureNetworkOut:
		v.NetworkOut = val
	case FeatureDNSQueries:
		v.DNSQueries = val
	case FeatureAPICalls:
		v.APICalls = val
	case FeatureFailedLogins:
		v.FailedLogins = val
	case FeatureAuthAttempts:
		v.AuthAttempts = val
	case FeatureProcessCreation:
		v.ProcessCreation = val
	case FeatureFileAccess:
		v.FileAccess = val
	}
}

// Validate checks that every feature value is a finite, non-negative number.
func (v FeatureVector) Validate() error {
	for _, name := range featureNames {
		val := v.Value(name)
		if math.IsNaN(val) || math.IsInf(val, 0) || val < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidFeature, name, val)
		}
	}
	return nil
}

// VectorFromMap builds a FeatureVector from a name-to-value mapping,
// rejecting inputs that omit any of the 12 required fields. This is the
// entry point for externally supplied vectors (API scoring requests).
func VectorFromMap(endpointID string, ts time.Time, features map[string]float64) (FeatureVector, error) {
	v := FeatureVector{EndpointID: endpointID, Timestamp: ts}
	for _, name := range featureNames {
		val, ok := features[name]
		if !ok {
			return FeatureVector{}, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		v.set(name, val)
	}
	if err := v.Validate(); err != nil {
		return FeatureVector{}, err
	}
	return v, nil
}

// Baseline describes the normal operating range of one feature.
type Baseline struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// baselines is the per-feature normal profile. Units: cpu/memory are
// percentages, disk and network rates are MB/s, the rest are event counts
// per sampling interval.
var baselines = map[string]Baseline{
	FeatureCPUUsage:        {Mean: 25.0, Std: 8.0, Min: 0, Max: 100},
	FeatureMemoryUsage:     {Mean: 45.0, Std: 12.0, Min: 0, Max: 100},
	FeatureDiskRead:        {Mean: 200.0, Std: 80.0, Min: 0, Max: 5000},
	FeatureDiskWrite:       {Mean: 100.0, Std: 50.0, Min: 0, Max: 5000},
	FeatureNetworkIn:       {Mean: 150.0, Std: 50.0, Min: 0, Max: 2000},
	FeatureNetworkOut:      {Mean: 80.0, Std: 30.0, Min: 0, Max: 2000},
	FeatureDNSQueries:      {Mean: 30.0, Std: 15.0, Min: 0, Max: 500},
	FeatureAPICalls:        {Mean: 100.0, Std: 40.0, Min: 0, Max: 2000},
	FeatureFailedLogins:    {Mean: 0.5, Std: 0.8, Min: 0, Max: 50},
	FeatureAuthAttempts:    {Mean: 2.0, Std: 1.5, Min: 0, Max: 50},
	FeatureProcessCreation: {Mean: 5.0, Std: 3.0, Min: 0, Max: 100},
	FeatureFileAccess:      {Mean: 50.0, Std: 20.0, Min: 0, Max: 1000},
}

// Baselines returns the per-feature normal profile, keyed by feature name.
func Baselines() map[string]Baseline {
	out := make(map[string]Baseline, len(baselines))
	for k, v := range baselines {
		out[k] = v
	}
	return out
}

// BaselineFor returns the baseline for one feature.
func BaselineFor(name string) (Baseline, bool) {
	b, ok := baselines[name]
	return b, ok
}
