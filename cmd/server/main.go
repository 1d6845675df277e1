// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

// Command server runs the Sentriq detection service: a simulated endpoint
// fleet, the ensemble detector, incident lifecycle, playbook sessions,
// and the HTTP/websocket API, all under one supervisor tree.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	"github.com/sentriq/sentriq/internal/api"
	"github.com/sentriq/sentriq/internal/config"
	"github.com/sentriq/sentriq/internal/detect"
	"github.com/sentriq/sentriq/internal/events"
	"github.com/sentriq/sentriq/internal/incident"
	"github.com/sentriq/sentriq/internal/logging"
	"github.com/sentriq/sentriq/internal/loop"
	"github.com/sentriq/sentriq/internal/playbook"
	"github.com/sentriq/sentriq/internal/supervisor"
	"github.com/sentriq/sentriq/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load configuration")
	}
	logging.Init(cfg.Logging)

	logging.Info().
		Int("endpoints", cfg.Telemetry.NumEndpoints).
		Float64("threshold", cfg.Detection.Threshold).
		Dur("interval", cfg.Loop.Interval).
		Msg("sentriq starting")

	registry := telemetry.NewRegistry()
	generator := telemetry.NewGenerator(cfg.Telemetry, registry)
	detector := detect.NewDetector(cfg.Detection)
	hub := events.NewHub(cfg.Events.Buffer)

	store, db, err := openStore(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("open incident store")
	}
	defer func() {
		if db != nil {
			if err := db.Close(); err != nil {
				logging.Err(err).Msg("close badger")
			}
		}
	}()

	detectionLoop := loop.New(loop.Config{
		Interval:             cfg.Loop.Interval,
		EndpointsPerTick:     cfg.Loop.EndpointsPerTick,
		InjectionProbability: cfg.Loop.InjectionProbability,
		AttackMinSeconds:     cfg.Loop.AttackMinSeconds,
		AttackMaxSeconds:     cfg.Loop.AttackMaxSeconds,
		IncidentCooldown:     cfg.Loop.IncidentCooldown,
	}, generator, registry, detector, store, hub, cfg.Telemetry.Seed)

	hooks := playbook.NewHookExecutor(playbook.LogRunner{}, cfg.Hooks)
	var sessionStore playbook.SessionStore
	if db != nil {
		sessionStore = playbook.NewBadgerSessionStore(db)
	}
	manager := playbook.NewManager(hooks, loopResolver{detectionLoop}, sessionStore)
	if restored, err := manager.Restore(context.Background()); err != nil {
		logging.Fatal().Err(err).Msg("restore playbook sessions")
	} else if restored > 0 {
		logging.Info().Int("sessions", restored).Msg("playbook sessions restored")
	}

	handler := api.NewHandler(generator, registry, detector, store, manager, detectionLoop, hub)
	server := api.NewServer(api.ServerOptions{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, api.NewRouter(handler, cfg.Server.CORSOrigins))

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(slog.Default(), treeCfg)
	tree.AddDetectionService(detectionLoop)
	tree.AddAPIService(server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	hub.Close()
	if err != nil && ctx.Err() == nil {
		logging.Err(err).Msg("supervisor exited")
		os.Exit(1)
	}
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("services failed to stop in time")
	}
	logging.Info().Msg("sentriq stopped")
}

// openStore picks the incident store: BadgerDB when a data directory is
// configured, in-memory otherwise.
func openStore(cfg config.StoreConfig) (incident.Store, *badger.DB, error) {
	if cfg.Dir == "" {
		logging.Info().Msg("using in-memory incident store")
		return incident.NewMemoryStore(), nil, nil
	}
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, err
	}
	logging.Info().Str("dir", cfg.Dir).Msg("using badger incident store")
	return incident.NewBadgerStore(db), db, nil
}

// loopResolver adapts the detection loop to the playbook manager's
// resolver interface, so a completed session restores the endpoint too.
// A session completing against an already-closed incident is not an
// error worth failing the advance for.
type loopResolver struct {
	loop *loop.Loop
}

func (r loopResolver) ResolveIncident(ctx context.Context, incidentID string) error {
	_, err := r.loop.ResolveIncident(ctx, incidentID)
	if errors.Is(err, incident.ErrAlreadyResolved) {
		return nil
	}
	return err
}
