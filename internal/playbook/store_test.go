// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package playbook

import (
	"context"
	"errors"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
)

func newSessionStore(t *testing.T) (*BadgerSessionStore, *badger.DB) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerSessionStore(db), db
}

func TestSessionStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	store, _ := newSessionStore(t)

	m := NewManager(NewHookExecutor(LogRunner{}, DefaultHookConfig()), nil, store)
	s, err := m.StartSession(ctx, "INC-000001", "PB-AUTH-03")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("len(loaded) = %d, want 1", len(loaded))
	}
	got := loaded[0]
	if got.SessionID != s.SessionID || got.IncidentID != "INC-000001" || got.PlaybookID != "PB-AUTH-03" {
		t.Errorf("loaded = %+v", got)
	}
	pb, _ := m.Playbook("PB-AUTH-03")
	if got.StepStatuses[pb.Steps[0].ID] != StepInProgress {
		t.Errorf("first step status = %s after reload", got.StepStatuses[pb.Steps[0].ID])
	}
}

func TestSessionStoreIndexReleasedOnCompletion(t *testing.T) {
	ctx := context.Background()
	store, db := newSessionStore(t)

	m := NewManager(NewHookExecutor(LogRunner{}, DefaultHookConfig()), nil, store)
	s, err := m.StartSession(ctx, "INC-000001", "PB-AUTH-03")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	idxKey := []byte(sessionIncidentKeyPrefix + "INC-000001")
	if err := db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(idxKey)
		return err
	}); err != nil {
		t.Fatalf("active index missing while session runs: %v", err)
	}

	pb, _ := m.Playbook("PB-AUTH-03")
	for _, step := range pb.Steps {
		if _, err := m.Advance(ctx, s.SessionID, step.ID, AdvanceSkip, ""); err != nil {
			t.Fatalf("Advance(%s): %v", step.ID, err)
		}
	}

	err = db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(idxKey)
		return err
	})
	if !errors.Is(err, badger.ErrKeyNotFound) {
		t.Fatalf("active index still present after completion: %v", err)
	}
}

func TestManagerRestore(t *testing.T) {
	ctx := context.Background()
	store, _ := newSessionStore(t)

	first := NewManager(NewHookExecutor(LogRunner{}, DefaultHookConfig()), nil, store)
	running, err := first.StartSession(ctx, "INC-000001", "PB-AUTH-03")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	finished, err := first.StartSession(ctx, "INC-000002", "PB-DDOS-06")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	pb, _ := first.Playbook("PB-DDOS-06")
	for _, step := range pb.Steps {
		if _, err := first.Advance(ctx, finished.SessionID, step.ID, AdvanceSkip, ""); err != nil {
			t.Fatalf("Advance(%s): %v", step.ID, err)
		}
	}

	// A fresh manager over the same store sees both sessions and still
	// holds the one-active-session rule for the running incident.
	second := NewManager(NewHookExecutor(LogRunner{}, DefaultHookConfig()), nil, store)
	restored, err := second.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored != 2 {
		t.Fatalf("restored = %d, want 2", restored)
	}

	got, err := second.Session(running.SessionID)
	if err != nil {
		t.Fatalf("Session after restore: %v", err)
	}
	if got.Completed || got.CurrentStepIndex != 0 {
		t.Errorf("restored session = %+v", got)
	}
	if _, err := second.StartSession(ctx, "INC-000001", "PB-MAL-05"); !errors.Is(err, ErrSessionConflict) {
		t.Errorf("err = %v, want ErrSessionConflict for restored active incident", err)
	}
	if _, err := second.StartSession(ctx, "INC-000002", "PB-MAL-05"); err != nil {
		t.Errorf("completed incident should be free after restore: %v", err)
	}
}
