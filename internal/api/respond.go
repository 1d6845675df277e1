// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sentriq/sentriq/internal/detect"
	"github.com/sentriq/sentriq/internal/incident"
	"github.com/sentriq/sentriq/internal/logging"
	"github.com/sentriq/sentriq/internal/loop"
	"github.com/sentriq/sentriq/internal/playbook"
	"github.com/sentriq/sentriq/internal/telemetry"
)

// writeJSON encodes data as JSON and writes to the response.
// Logs errors but doesn't fail since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Err(err).Msg("encode JSON response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps domain sentinel errors onto HTTP statuses:
// invalid input 400, unknown ids 404, lifecycle conflicts 409, failed
// automation hooks 502.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, detect.ErrInvalidInput),
		errors.Is(err, telemetry.ErrMissingFeature),
		errors.Is(err, telemetry.ErrInvalidFeature),
		errors.Is(err, telemetry.ErrUnknownAttackType),
		errors.Is(err, playbook.ErrStepNotAutomated):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, telemetry.ErrEndpointNotFound),
		errors.Is(err, incident.ErrNotFound),
		errors.Is(err, playbook.ErrPlaybookNotFound),
		errors.Is(err, playbook.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, incident.ErrAlreadyResolved),
		errors.Is(err, playbook.ErrSessionConflict),
		errors.Is(err, playbook.ErrStepNotCurrent),
		errors.Is(err, loop.ErrAttackActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, playbook.ErrHookFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logging.Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
