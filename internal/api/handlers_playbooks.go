// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentriq/sentriq/internal/playbook"
)

// ListPlaybooks handles GET /api/v1/playbooks.
func (h *Handler) ListPlaybooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Playbooks())
}

// GetPlaybook handles GET /api/v1/playbooks/{id}.
func (h *Handler) GetPlaybook(w http.ResponseWriter, r *http.Request) {
	pb, err := h.manager.Playbook(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pb)
}

// RecommendPlaybooks handles GET /api/v1/playbooks/recommend?attack_type=.
func (h *Handler) RecommendPlaybooks(w http.ResponseWriter, r *http.Request) {
	attackType := r.URL.Query().Get("attack_type")
	if attackType == "" {
		writeError(w, http.StatusBadRequest, "attack_type query parameter required")
		return
	}
	writeJSON(w, http.StatusOK, h.manager.Recommend(attackType))
}

type sessionRequest struct {
	IncidentID string `json:"incident_id" validate:"required"`
	PlaybookID string `json:"playbook_id" validate:"required"`
}

// StartSession handles POST /api/v1/sessions. The incident must exist;
// a second active session for the same incident is a conflict.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.store.Get(r.Context(), req.IncidentID); err != nil {
		writeDomainError(w, err)
		return
	}
	session, err := h.manager.StartSession(r.Context(), req.IncidentID, req.PlaybookID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// GetSession handles GET /api/v1/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.manager.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type advanceRequest struct {
	Action string `json:"action" validate:"required,oneof=complete skip execute"`
	Note   string `json:"note"`
}

// AdvanceStep handles POST /api/v1/sessions/{id}/steps/{stepID}/advance.
func (h *Handler) AdvanceStep(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.manager.Advance(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "stepID"),
		playbook.AdvanceAction(req.Action), req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
