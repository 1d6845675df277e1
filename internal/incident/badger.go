// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package incident

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/sentriq/sentriq/internal/metrics"
)

const incidentKeyPrefix = "incident:"

// BadgerStore persists incidents in BadgerDB so open incidents survive a
// restart. Keys are incident:<id>.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an already-open BadgerDB handle. The caller owns
// the handle lifecycle; Close here is a no-op.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Create(_ context.Context, inc *Incident) error {
	data, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("marshal incident: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(incidentKeyPrefix+inc.ID), data)
	})
}

func (s *BadgerStore) Get(_ context.Context, id string) (*Incident, error) {
	var inc Incident
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(incidentKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get incident: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &inc)
		})
	})
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func (s *BadgerStore) List(_ context.Context, f Filter) ([]*Incident, error) {
	var out []*Incident
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(incidentKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var inc Incident
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &inc)
			})
			if err != nil {
				return fmt.Errorf("decode incident: %w", err)
			}
			if f.matches(&inc) {
				cp := inc
				out = append(out, &cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *BadgerStore) Resolve(ctx context.Context, id string) (*Incident, error) {
	var resolved *Incident
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(incidentKeyPrefix + id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get incident: %w", err)
		}
		var inc Incident
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &inc)
		}); err != nil {
			return fmt.Errorf("decode incident: %w", err)
		}
		if inc.Status == StatusResolved {
			return ErrAlreadyResolved
		}
		now := time.Now().UTC()
		inc.Status = StatusResolved
		inc.ResolvedAt = &now
		data, err := json.Marshal(&inc)
		if err != nil {
			return fmt.Errorf("marshal incident: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set incident: %w", err)
		}
		resolved = &inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncidentsResolved.Inc()
	return resolved, nil
}

func (s *BadgerStore) Close() error { return nil }
