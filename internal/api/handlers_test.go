// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sentriq/sentriq/internal/detect"
	"github.com/sentriq/sentriq/internal/events"
	"github.com/sentriq/sentriq/internal/incident"
	"github.com/sentriq/sentriq/internal/loop"
	"github.com/sentriq/sentriq/internal/playbook"
	"github.com/sentriq/sentriq/internal/telemetry"
)

type testEnv struct {
	router   http.Handler
	store    *incident.MemoryStore
	registry *telemetry.Registry
	manager  *playbook.Manager
	hub      *events.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	registry := telemetry.NewRegistry()
	gen := telemetry.NewGenerator(telemetry.GeneratorConfig{NumEndpoints: 4, Seed: 42}, registry)
	det := detect.NewDetector(detect.DefaultConfig())
	store := incident.NewMemoryStore()
	hub := events.NewHub(64)
	t.Cleanup(hub.Close)

	l := loop.New(loop.Config{
		Interval:         time.Second,
		EndpointsPerTick: 4,
		AttackMinSeconds: 10,
		AttackMaxSeconds: 10,
		IncidentCooldown: time.Minute,
	}, gen, registry, det, store, hub, 42)
	manager := playbook.NewManager(
		playbook.NewHookExecutor(playbook.LogRunner{}, playbook.DefaultHookConfig()),
		loopResolver{l},
		nil,
	)

	h := NewHandler(gen, registry, det, store, manager, l, hub)
	return &testEnv{
		router:   NewRouter(h, []string{"*"}),
		store:    store,
		registry: registry,
		manager:  manager,
		hub:      hub,
	}
}

// loopResolver resolves incidents through the detection loop, mirroring
// the production wiring so endpoint status is restored too.
type loopResolver struct {
	loop *loop.Loop
}

func (r loopResolver) ResolveIncident(ctx context.Context, incidentID string) error {
	_, err := r.loop.ResolveIncident(ctx, incidentID)
	return err
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func baselineFeatures() map[string]float64 {
	m := make(map[string]float64)
	for name, b := range telemetry.Baselines() {
		m[name] = b.Mean
	}
	return m
}

func seedIncident(t *testing.T, e *testEnv, id string) {
	t.Helper()
	v := telemetry.FeatureVector{EndpointID: "EP-0000", Timestamp: time.Now().UTC(), CPUUsage: 30}
	inc := incident.New("EP-0000", v,
		detect.AnomalyScore{EnsembleScore: 0.9, IsAnomaly: true, Confidence: 0.9},
		detect.DefaultSeverityThresholds(), nil, nil, "seeded", "brute_force")
	inc.ID = id
	if err := e.store.Create(context.Background(), inc); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["endpoints"] != float64(4) {
		t.Errorf("endpoints = %v, want 4", body["endpoints"])
	}
}

func TestListEndpoints(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/endpoints", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var eps []telemetry.Endpoint
	decodeBody(t, rec, &eps)
	if len(eps) != 4 {
		t.Errorf("len(endpoints) = %d, want 4", len(eps))
	}
}

func TestGetTelemetry(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/telemetry/EP-0000", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var v telemetry.FeatureVector
	decodeBody(t, rec, &v)
	if v.EndpointID != "EP-0000" {
		t.Errorf("endpoint_id = %s", v.EndpointID)
	}

	if rec := e.do(t, http.MethodGet, "/api/v1/telemetry/EP-9999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown endpoint status = %d, want 404", rec.Code)
	}
}

func TestScore(t *testing.T) {
	e := newTestEnv(t)

	t.Run("baseline is normal", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/v1/score", map[string]interface{}{
			"endpoint_id": "EP-0000",
			"features":    baselineFeatures(),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var resp scoreResponse
		decodeBody(t, rec, &resp)
		if resp.Score.IsAnomaly {
			t.Errorf("baseline flagged anomalous: %+v", resp.Score)
		}
		if resp.Score.EnsembleScore >= 0.1 {
			t.Errorf("ensemble = %v, want < 0.1", resp.Score.EnsembleScore)
		}
	})

	t.Run("brute force is critical", func(t *testing.T) {
		features := baselineFeatures()
		features["failed_logins"] = 15
		features["auth_attempts"] = 25
		features["network_in"] = 400
		features["network_out"] = 200

		rec := e.do(t, http.MethodPost, "/api/v1/score", map[string]interface{}{
			"features": features,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var resp scoreResponse
		decodeBody(t, rec, &resp)
		if !resp.Score.IsAnomaly || resp.Score.EnsembleScore < 0.80 {
			t.Errorf("score = %+v, want critical anomaly", resp.Score)
		}
		if len(resp.Techniques) == 0 || resp.Techniques[0].TechniqueID != "T1110" {
			t.Errorf("techniques = %+v, want T1110 first", resp.Techniques)
		}
		if resp.Explanation == "" {
			t.Error("empty explanation")
		}
	})

	t.Run("missing feature rejected", func(t *testing.T) {
		features := baselineFeatures()
		delete(features, "cpu_usage")
		rec := e.do(t, http.MethodPost, "/api/v1/score", map[string]interface{}{
			"features": features,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing features field rejected", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/api/v1/score", map[string]interface{}{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestInjectAttack(t *testing.T) {
	e := newTestEnv(t)

	body := map[string]interface{}{"attack_type": "brute_force", "duration_seconds": 10}
	if rec := e.do(t, http.MethodPost, "/api/v1/attacks/EP-0000", body); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	// Second injection against the same endpoint conflicts.
	if rec := e.do(t, http.MethodPost, "/api/v1/attacks/EP-0000", body); rec.Code != http.StatusConflict {
		t.Errorf("double inject status = %d, want 409", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/v1/attacks/EP-9999", body); rec.Code != http.StatusNotFound {
		t.Errorf("unknown endpoint status = %d, want 404", rec.Code)
	}
	bad := map[string]interface{}{"attack_type": "fork_bomb"}
	if rec := e.do(t, http.MethodPost, "/api/v1/attacks/EP-0001", bad); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown attack type status = %d, want 400", rec.Code)
	}
}

func TestIncidentLifecycle(t *testing.T) {
	e := newTestEnv(t)
	seedIncident(t, e, "INC-AAA001")

	rec := e.do(t, http.MethodGet, "/api/v1/incidents", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var incs []incident.Incident
	decodeBody(t, rec, &incs)
	if len(incs) != 1 || incs[0].ID != "INC-AAA001" {
		t.Fatalf("incidents = %+v", incs)
	}

	if rec := e.do(t, http.MethodGet, "/api/v1/incidents/INC-AAA001", nil); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/v1/incidents/INC-NOPE", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get unknown status = %d, want 404", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/incidents/INC-AAA001/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close status = %d", rec.Code)
	}
	var closed incident.Incident
	decodeBody(t, rec, &closed)
	if closed.Status != incident.StatusResolved {
		t.Errorf("status = %s, want resolved", closed.Status)
	}

	if rec := e.do(t, http.MethodPost, "/api/v1/incidents/INC-AAA001/close", nil); rec.Code != http.StatusConflict {
		t.Errorf("double close status = %d, want 409", rec.Code)
	}
}

func TestCloseIncidentRestoresEndpoint(t *testing.T) {
	e := newTestEnv(t)
	seedIncident(t, e, "INC-AAA001")
	if err := e.registry.SetStatus("EP-0000", telemetry.StatusCompromised); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if rec := e.do(t, http.MethodPost, "/api/v1/incidents/INC-AAA001/close", nil); rec.Code != http.StatusOK {
		t.Fatalf("close status = %d", rec.Code)
	}

	ep, err := e.registry.Get("EP-0000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ep.Status != telemetry.StatusHealthy {
		t.Errorf("endpoint status = %s after close, want healthy", ep.Status)
	}
}

func TestSessionLifecycle(t *testing.T) {
	e := newTestEnv(t)
	seedIncident(t, e, "INC-AAA001")

	start := map[string]string{"incident_id": "INC-AAA001", "playbook_id": "PB-AUTH-03"}
	rec := e.do(t, http.MethodPost, "/api/v1/sessions", start)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	var session playbook.Session
	decodeBody(t, rec, &session)
	if session.Completed || session.CurrentStepIndex != 0 {
		t.Fatalf("session = %+v", session)
	}

	// A second session for the busy incident, and sessions against
	// unknown inputs, are refused.
	if rec := e.do(t, http.MethodPost, "/api/v1/sessions", start); rec.Code != http.StatusConflict {
		t.Errorf("second session status = %d, want 409", rec.Code)
	}
	missing := map[string]string{"incident_id": "INC-NOPE", "playbook_id": "PB-AUTH-03"}
	if rec := e.do(t, http.MethodPost, "/api/v1/sessions", missing); rec.Code != http.StatusNotFound {
		t.Errorf("unknown incident status = %d, want 404", rec.Code)
	}
	badPB := map[string]string{"incident_id": "INC-AAA001", "playbook_id": "PB-NOPE-99"}
	if rec := e.do(t, http.MethodPost, "/api/v1/sessions", badPB); rec.Code != http.StatusNotFound {
		t.Errorf("unknown playbook status = %d, want 404", rec.Code)
	}

	pb, err := e.manager.Playbook("PB-AUTH-03")
	if err != nil {
		t.Fatalf("Playbook: %v", err)
	}

	// Acting on a step other than the current one is a conflict.
	skip := map[string]string{"action": "skip"}
	wrongURL := "/api/v1/sessions/" + session.SessionID + "/steps/" + pb.Steps[2].ID + "/advance"
	if rec := e.do(t, http.MethodPost, wrongURL, skip); rec.Code != http.StatusConflict {
		t.Errorf("wrong step status = %d, want 409", rec.Code)
	}

	// Skip every step; the session completes and the incident resolves.
	for _, step := range pb.Steps {
		url := "/api/v1/sessions/" + session.SessionID + "/steps/" + step.ID + "/advance"
		rec := e.do(t, http.MethodPost, url, skip)
		if rec.Code != http.StatusOK {
			t.Fatalf("advance %s status = %d: %s", step.ID, rec.Code, rec.Body.String())
		}
		decodeBody(t, rec, &session)
	}
	if !session.Completed {
		t.Error("session not completed after skipping all steps")
	}

	rec = e.do(t, http.MethodGet, "/api/v1/incidents/INC-AAA001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get incident status = %d", rec.Code)
	}
	var inc incident.Incident
	decodeBody(t, rec, &inc)
	if inc.Status != incident.StatusResolved {
		t.Errorf("incident status = %s after session completion, want resolved", inc.Status)
	}

	// Invalid action values never reach the manager.
	url := "/api/v1/sessions/" + session.SessionID + "/steps/" + pb.Steps[0].ID + "/advance"
	if rec := e.do(t, http.MethodPost, url, map[string]string{"action": "detonate"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad action status = %d, want 400", rec.Code)
	}
}

func TestPlaybookEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/playbooks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var defs []playbook.Definition
	decodeBody(t, rec, &defs)
	if len(defs) != 11 {
		t.Errorf("len(playbooks) = %d, want 11", len(defs))
	}

	if rec := e.do(t, http.MethodGet, "/api/v1/playbooks/PB-RANSOM-02", nil); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/v1/playbooks/PB-NOPE-99", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get unknown status = %d, want 404", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/playbooks/recommend?attack_type=ransomware", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recommend status = %d", rec.Code)
	}
	decodeBody(t, rec, &defs)
	if len(defs) == 0 || defs[0].ID != "PB-RANSOM-02" {
		t.Errorf("recommend = %+v", defs)
	}

	if rec := e.do(t, http.MethodGet, "/api/v1/playbooks/recommend", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("recommend without attack_type status = %d, want 400", rec.Code)
	}
}

func TestRemediation(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/techniques/T1110/remediation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	decodeBody(t, rec, &body)
	if body["technique_id"] != "T1110" {
		t.Errorf("technique_id = %v", body["technique_id"])
	}
	steps, ok := body["remediation"].([]interface{})
	if !ok || len(steps) == 0 {
		t.Errorf("remediation = %v", body["remediation"])
	}

	if rec := e.do(t, http.MethodGet, "/api/v1/techniques/T9999/remediation", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown technique status = %d, want 404", rec.Code)
	}
}

func TestStats(t *testing.T) {
	e := newTestEnv(t)
	seedIncident(t, e, "INC-AAA001")

	rec := e.do(t, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Endpoints map[string]int `json:"endpoints"`
		Incidents struct {
			Total int `json:"total"`
			Open  int `json:"open"`
		} `json:"incidents"`
	}
	decodeBody(t, rec, &body)
	if body.Endpoints["total"] != 4 {
		t.Errorf("endpoints.total = %d, want 4", body.Endpoints["total"])
	}
	if body.Incidents.Total != 1 || body.Incidents.Open != 1 {
		t.Errorf("incidents = %+v", body.Incidents)
	}
}
