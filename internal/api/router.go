// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

// Package api exposes the HTTP surface: fleet and telemetry queries,
// on-demand scoring, incident lifecycle, playbook sessions, and the
// websocket event feed.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentriq/sentriq/internal/logging"
)

// NewRouter assembles the chi router with middleware and all routes.
func NewRouter(h *Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/endpoints", h.ListEndpoints)
		r.Get("/telemetry/{endpointID}", h.GetTelemetry)
		r.Post("/attacks/{endpointID}", h.InjectAttack)
		r.Post("/score", h.Score)

		r.Get("/incidents", h.ListIncidents)
		r.Get("/incidents/{id}", h.GetIncident)
		r.Post("/incidents/{id}/close", h.CloseIncident)

		r.Get("/playbooks", h.ListPlaybooks)
		r.Get("/playbooks/recommend", h.RecommendPlaybooks)
		r.Get("/playbooks/{id}", h.GetPlaybook)
		r.Post("/sessions", h.StartSession)
		r.Get("/sessions/{id}", h.GetSession)
		r.Post("/sessions/{id}/steps/{stepID}/advance", h.AdvanceStep)

		r.Get("/techniques/{id}/remediation", h.GetRemediation)
		r.Get("/stats", h.Stats)
	})

	r.Get("/ws", h.Websocket)
	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
