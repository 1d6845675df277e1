// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package playbook

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	sessionKeyPrefix = "session:"
	// sessionIncidentKeyPrefix indexes the active session per incident, so
	// the one-session-per-incident rule survives a restart.
	sessionIncidentKeyPrefix = "session_incident:"
)

// SessionStore persists playbook sessions across restarts. The manager
// remains the authority at runtime; the store is written through on every
// state change and read once at startup.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context) ([]*Session, error)
}

// BadgerSessionStore keeps sessions in BadgerDB under prefixed keys.
type BadgerSessionStore struct {
	db *badger.DB
}

func NewBadgerSessionStore(db *badger.DB) *BadgerSessionStore {
	return &BadgerSessionStore{db: db}
}

// Save writes the session and maintains the per-incident active index:
// a completed session releases its incident.
func (s *BadgerSessionStore) Save(_ context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.SessionID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(sessionKeyPrefix+session.SessionID), data); err != nil {
			return err
		}
		idxKey := []byte(sessionIncidentKeyPrefix + session.IncidentID)
		if session.Completed {
			if err := txn.Delete(idxKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return nil
		}
		return txn.Set(idxKey, []byte(session.SessionID))
	})
}

// Load returns every persisted session.
func (s *BadgerSessionStore) Load(_ context.Context) ([]*Session, error) {
	var out []*Session
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var session Session
				if err := json.Unmarshal(val, &session); err != nil {
					return fmt.Errorf("unmarshal session %s: %w", it.Item().Key(), err)
				}
				out = append(out, &session)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
