// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package playbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sentriq/sentriq/internal/logging"
	"github.com/sentriq/sentriq/internal/metrics"
)

// HookRunner executes one named automation hook against an incident.
// Implementations talk to external systems (EDR, firewall, IdP); a
// returned error leaves the step pending so the caller can retry.
type HookRunner interface {
	Run(ctx context.Context, hook, incidentID string) error
}

// LogRunner is the built-in runner: it records the action and succeeds.
// Stands in for real automation integrations in single-node deployments.
type LogRunner struct{}

func (LogRunner) Run(_ context.Context, hook, incidentID string) error {
	logging.Info().
		Str("hook", hook).
		Str("incident_id", incidentID).
		Msg("automation hook executed")
	return nil
}

// HookConfig bounds hook execution.
type HookConfig struct {
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
}

func DefaultHookConfig() HookConfig {
	return HookConfig{
		Timeout:          10 * time.Second,
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
	}
}

// HookExecutor wraps a HookRunner with a timeout and a circuit breaker so
// a stuck or failing external integration cannot freeze sessions or be
// hammered while down.
type HookExecutor struct {
	runner  HookRunner
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[struct{}]
}

func NewHookExecutor(runner HookRunner, cfg HookConfig) *HookExecutor {
	settings := gobreaker.Settings{
		Name: "automation-hooks",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		Timeout: cfg.OpenTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("automation hook breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	}
	return &HookExecutor{
		runner:  runner,
		timeout: cfg.Timeout,
		cb:      gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Execute runs the hook with a deadline. All failure modes, including an
// open breaker, surface as ErrHookFailed.
func (e *HookExecutor) Execute(ctx context.Context, hook, incidentID string) error {
	_, err := e.cb.Execute(func() (struct{}, error) {
		runCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return struct{}{}, e.runner.Run(runCtx, hook, incidentID)
	})
	if err != nil {
		metrics.HookExecutions.WithLabelValues(hook, "failure").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: breaker open for %s", ErrHookFailed, hook)
		}
		return fmt.Errorf("%w: %s: %v", ErrHookFailed, hook, err)
	}
	metrics.HookExecutions.WithLabelValues(hook, "success").Inc()
	return nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
