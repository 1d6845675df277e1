// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/sentriq/sentriq/internal/detect"
	"github.com/sentriq/sentriq/internal/events"
	"github.com/sentriq/sentriq/internal/incident"
	"github.com/sentriq/sentriq/internal/loop"
	"github.com/sentriq/sentriq/internal/mitre"
	"github.com/sentriq/sentriq/internal/playbook"
	"github.com/sentriq/sentriq/internal/telemetry"
)

// Handler wires the HTTP surface to the detection core.
type Handler struct {
	generator *telemetry.Generator
	registry  *telemetry.Registry
	detector  *detect.Detector
	mapper    *mitre.Mapper
	explainer *mitre.Explainer
	store     incident.Store
	manager   *playbook.Manager
	loop      *loop.Loop
	hub       *events.Hub
	validate  *validator.Validate
	started   time.Time
}

func NewHandler(gen *telemetry.Generator, reg *telemetry.Registry, det *detect.Detector,
	store incident.Store, manager *playbook.Manager, l *loop.Loop, hub *events.Hub) *Handler {
	return &Handler{
		generator: gen,
		registry:  reg,
		detector:  det,
		mapper:    mitre.NewMapper(),
		explainer: mitre.NewExplainer(det.Severity()),
		store:     store,
		manager:   manager,
		loop:      l,
		hub:       hub,
		validate:  validator.New(),
		started:   time.Now(),
	}
}

func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// ListEndpoints handles GET /api/v1/endpoints.
func (h *Handler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

// GetTelemetry handles GET /api/v1/telemetry/{endpointID}: one freshly
// generated vector for the endpoint.
func (h *Handler) GetTelemetry(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")
	v, err := h.generator.Next(endpointID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type attackRequest struct {
	AttackType      string `json:"attack_type" validate:"required"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0"`
}

// InjectAttack handles POST /api/v1/attacks/{endpointID}.
func (h *Handler) InjectAttack(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")
	var req attackRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attackType := telemetry.AttackType(req.AttackType)
	if _, err := telemetry.ProfileFor(attackType); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.loop.InjectAttack(endpointID, attackType, req.DurationSeconds); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"endpoint_id": endpointID,
		"attack_type": req.AttackType,
		"status":      "injected",
	})
}

type scoreRequest struct {
	EndpointID string               `json:"endpoint_id"`
	Features   map[string]float64   `json:"features" validate:"required"`
	History    []map[string]float64 `json:"history"`
}

type scoreResponse struct {
	Score         detect.AnomalyScore         `json:"score"`
	Techniques    []mitre.TechniqueMatch      `json:"mitre_techniques"`
	Contributions []mitre.FeatureContribution `json:"feature_contributions"`
	Explanation   string                      `json:"explanation"`
}

// Score handles POST /api/v1/score: on-demand scoring of a caller-supplied
// vector, with optional history for the sequence model.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	vector, err := telemetry.VectorFromMap(req.EndpointID, now, req.Features)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	history := make([]telemetry.FeatureVector, 0, len(req.History))
	for _, m := range req.History {
		hv, err := telemetry.VectorFromMap(req.EndpointID, now, m)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		history = append(history, hv)
	}

	score, err := h.detector.Score(vector, history)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	matches := h.mapper.Map(vector, score)
	contribs := h.explainer.Contributions(vector)
	writeJSON(w, http.StatusOK, scoreResponse{
		Score:         score,
		Techniques:    matches,
		Contributions: contribs,
		Explanation:   h.explainer.Explain(score, contribs, matches),
	})
}

// ListIncidents handles GET /api/v1/incidents with status, severity, and
// limit filters.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	f := incident.Filter{Limit: 100}
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		f.Status = incident.Status(v)
	}
	if v := q.Get("severity"); v != "" {
		f.Severity = incident.Severity(v)
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			f.Limit = limit
		}
	}
	incidents, err := h.store.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incidents)
}

// GetIncident handles GET /api/v1/incidents/{id}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

// CloseIncident handles POST /api/v1/incidents/{id}/close. Closing an
// already-resolved incident is a conflict, not an idempotent no-op, so
// callers notice double-closes. Resolution goes through the detection
// loop so the targeted endpoint returns to healthy.
func (h *Handler) CloseIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.loop.ResolveIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

// GetRemediation handles GET /api/v1/techniques/{id}/remediation.
func (h *Handler) GetRemediation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tech, ok := mitre.GetTechnique(id)
	if !ok {
		writeError(w, http.StatusNotFound, "technique not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"technique_id": tech.ID,
		"name":         tech.Name,
		"tactic":       tech.Tactic,
		"remediation":  tech.Remediation,
	})
}

// Stats handles GET /api/v1/stats: fleet and incident totals for the
// dashboard.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	endpoints := h.registry.List()
	healthy := 0
	for _, ep := range endpoints {
		if ep.Status == telemetry.StatusHealthy {
			healthy++
		}
	}

	incidents, err := h.store.List(r.Context(), incident.Filter{})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	open := 0
	bySeverity := map[string]int{}
	var scoreSum float64
	for _, inc := range incidents {
		if inc.Status == incident.StatusOpen {
			open++
		}
		bySeverity[string(inc.Severity)]++
		scoreSum += inc.Scores.EnsembleScore
	}
	meanScore := 0.0
	if len(incidents) > 0 {
		meanScore = scoreSum / float64(len(incidents))
	}

	activeSessions := 0
	for _, s := range h.manager.Sessions() {
		if !s.Completed {
			activeSessions++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"endpoints": map[string]int{
			"total":       len(endpoints),
			"healthy":     healthy,
			"compromised": len(endpoints) - healthy,
		},
		"incidents": map[string]interface{}{
			"total":               len(incidents),
			"open":                open,
			"by_severity":         bySeverity,
			"mean_ensemble_score": meanScore,
		},
		"sessions": map[string]int{
			"active": activeSessions,
		},
		"active_attacks": h.loop.ActiveAttacks(),
	})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	open, err := h.store.List(r.Context(), incident.Filter{Status: incident.StatusOpen})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "incident store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"endpoints":      h.registry.Count(),
		"open_incidents": len(open),
		"subscribers":    h.hub.SubscriberCount(),
	})
}
