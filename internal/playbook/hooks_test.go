// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package playbook

import (
	"context"
	"errors"
	"testing"
	"time"
)

// slowRunner blocks until its context is cancelled.
type slowRunner struct{}

func (slowRunner) Run(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHookExecutorSuccess(t *testing.T) {
	e := NewHookExecutor(LogRunner{}, DefaultHookConfig())
	if err := e.Execute(context.Background(), "disableUser", "INC-000001"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestHookExecutorTimeout(t *testing.T) {
	cfg := DefaultHookConfig()
	cfg.Timeout = 20 * time.Millisecond

	e := NewHookExecutor(slowRunner{}, cfg)
	err := e.Execute(context.Background(), "disableUser", "INC-000001")
	if !errors.Is(err, ErrHookFailed) {
		t.Fatalf("err = %v, want ErrHookFailed", err)
	}
}

func TestHookExecutorBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultHookConfig()
	cfg.FailureThreshold = 3
	runner := &failingRunner{failures: 100}
	e := NewHookExecutor(runner, cfg)

	for i := 0; i < 3; i++ {
		if err := e.Execute(context.Background(), "killProcess", "INC-000001"); !errors.Is(err, ErrHookFailed) {
			t.Fatalf("call %d err = %v, want ErrHookFailed", i, err)
		}
	}

	// The breaker is open now: the runner must not be reached again.
	if err := e.Execute(context.Background(), "killProcess", "INC-000001"); !errors.Is(err, ErrHookFailed) {
		t.Fatalf("err = %v, want ErrHookFailed while open", err)
	}
	runner.mu.Lock()
	calls := runner.calls
	runner.mu.Unlock()
	if calls != 3 {
		t.Errorf("runner called %d times, want 3 (breaker should short-circuit)", calls)
	}
}
