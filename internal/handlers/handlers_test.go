package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nervecenter-backend/internal/hub"
	"nervecenter-backend/internal/models"
)

// failingPersistence simulates an unreachable durable store.
type failingPersistence struct{}

func (failingPersistence) SaveAgent(ctx context.Context, agent *models.Agent) error {
	return errors.New("store unreachable")
}
func (failingPersistence) SaveThreat(ctx context.Context, threat *models.Threat) error {
	return errors.New("store unreachable")
}
func (failingPersistence) SaveEvidence(ctx context.Context, ev *models.Evidence) error {
	return errors.New("store unreachable")
}
func (failingPersistence) SaveEvent(ctx context.Context, event *models.Event) error {
	return errors.New("store unreachable")
}
func (failingPersistence) SaveSystemHealth(ctx context.Context, sample *models.SystemHealthSample) error {
	return errors.New("store unreachable")
}

// stubStore answers the health check and reset paths.
type stubStore struct {
	healthy bool
}

func (s *stubStore) HealthCheck(ctx context.Context) models.DatabaseHealth {
	if s.healthy {
		return models.DatabaseHealth{Status: models.HealthHealthy}
	}
	return models.DatabaseHealth{Status: "unavailable", Detail: "store unreachable"}
}

func (s *stubStore) Reset(ctx context.Context) error {
	if !s.healthy {
		return errors.New("store unreachable")
	}
	return nil
}

func newTestServer(t *testing.T, persistence hub.Persistence, store Store) *httptest.Server {
	t.Helper()
	h := hub.New(persistence, nil)
	api := New(h, store, nil, 0)

	r := chi.NewRouter()
	api.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSONList(t *testing.T, url string) (*http.Response, []map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestRootAndHealth(t *testing.T) {
	srv := newTestServer(t, nil, &stubStore{healthy: true})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "active", body["status"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["agents_connected"])
	db, ok := body["database"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "healthy", db["status"])
}

func TestThreatLifecycleScenario(t *testing.T) {
	srv := newTestServer(t, nil, &stubStore{healthy: true})

	// Register, report metrics, confirm summary fields.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/agents/register",
		map[string]any{"id": "a1", "hostname": "h1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "a1", body["agent_id"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/agents/a1/metrics",
		map[string]any{"cpu": 95, "memory": 50, "disk": 10, "network": 5, "processes": 80})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, agents := getJSONList(t, srv.URL+"/agents")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, agents, 1)
	assert.Equal(t, "a1", agents[0]["id"])
	assert.Equal(t, 95.0, agents[0]["cpu"])
	assert.Equal(t, 0.0, agents[0]["threats"])

	// Threat creation bumps the agent's live counter.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/threats",
		map[string]any{"agent_id": "a1", "type": "cpu_anomaly", "severity": "high"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	threatID, ok := body["threat_id"].(string)
	require.True(t, ok)
	eventID, ok := body["event_id"].(string)
	require.True(t, ok)
	assert.Equal(t, "threat-"+threatID, eventID)

	_, agents = getJSONList(t, srv.URL+"/agents")
	assert.Equal(t, 1.0, agents[0]["threats"])

	// Acknowledging drops it back.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/events/"+eventID+"/acknowledge", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, eventID, data["event_id"])
	assert.Equal(t, models.Acknowledged, data["status"])

	_, agents = getJSONList(t, srv.URL+"/agents")
	assert.Equal(t, 0.0, agents[0]["threats"])

	// Second acknowledge still succeeds.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/events/"+eventID+"/acknowledge", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
}

func TestIngestMetrics_AutoProvisions(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/agents/fresh/metrics",
		map[string]any{"cpu": 10, "memory": 20})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, agents := getJSONList(t, srv.URL+"/agents")
	require.Len(t, agents, 1)
	assert.Equal(t, "fresh", agents[0]["id"])
	assert.Equal(t, 0.0, agents[0]["threats"])
}

func TestGetAgentMetrics(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	for i := 0; i < 5; i++ {
		doJSON(t, http.MethodPost, srv.URL+"/agents/a1/metrics", map[string]any{"cpu": float64(i)})
	}

	resp, samples := getJSONList(t, srv.URL+"/agents/a1/metrics?limit=3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, samples, 3)
	assert.Equal(t, 4.0, samples[2]["cpu"])

	// Unknown agent is a 404.
	resp, err := http.Get(srv.URL + "/agents/ghost/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateEvidence_Validation(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/evidence",
		map[string]any{"agent_id": "a1", "type": "net", "severity": "low", "description": "d"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	missing, ok := body["missing_fields"].([]any)
	require.True(t, ok)
	assert.Contains(t, missing, "title")

	// The rejected record must not appear in the event feed.
	_, events := getJSONList(t, srv.URL+"/events")
	assert.Empty(t, events)
}

func TestCreateEvidence_StringEncodedRawData(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/evidence", map[string]any{
		"agent_id": "a1", "type": "net", "severity": "low",
		"title": "probe", "description": "d",
		"raw_data": `{"attack_type":"port_scan"}`,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	eventID := body["event_id"].(string)
	resp, detail := doJSON(t, http.MethodGet, srv.URL+"/events/"+eventID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	details, ok := detail["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "port_scan", details["attack_type"])
}

func TestGetEvents_SortedAndLimited(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	for i := 0; i < 4; i++ {
		doJSON(t, http.MethodPost, srv.URL+"/threats", map[string]any{"name": "t"})
	}
	doJSON(t, http.MethodPost, srv.URL+"/evidence", map[string]any{
		"agent_id": "a1", "type": "net", "severity": "low", "title": "e", "description": "d",
	})

	resp, events := getJSONList(t, srv.URL+"/events")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		prev, err := time.Parse(time.RFC3339Nano, events[i-1]["timestamp"].(string))
		require.NoError(t, err)
		cur, err := time.Parse(time.RFC3339Nano, events[i]["timestamp"].(string))
		require.NoError(t, err)
		assert.False(t, prev.Before(cur))
	}

	_, events = getJSONList(t, srv.URL+"/events?limit=2")
	assert.Len(t, events, 2)
}

func TestGetEvent_NotFound(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	for _, id := range []string{"threat-ghost", "garbage", "event-evidence-missing"} {
		resp, err := http.Get(srv.URL + "/events/" + id)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "id %q", id)
	}
}

func TestAcknowledge_NotFound(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/events/threat-ghost/acknowledge", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestDegradedMode_OperationsSucceed(t *testing.T) {
	srv := newTestServer(t, failingPersistence{}, &stubStore{healthy: false})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/evidence", map[string]any{
		"agent_id": "a1", "type": "net", "severity": "low", "title": "t", "description": "d",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["saved_to_db"])

	// Degradation is visible only through the nested database status.
	_, health := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, "healthy", health["status"])
	db := health["database"].(map[string]any)
	assert.NotEqual(t, "healthy", db["status"])
}

func TestSystemStatus(t *testing.T) {
	srv := newTestServer(t, nil, &stubStore{healthy: true})

	doJSON(t, http.MethodPost, srv.URL+"/agents/register", map[string]any{"id": "a1"})
	doJSON(t, http.MethodPost, srv.URL+"/threats", map[string]any{"agent_id": "a1"})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/system/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	agents := body["agents"].(map[string]any)
	assert.Equal(t, 1.0, agents["total"])
	assert.Equal(t, 1.0, agents["active"])

	threats := body["threats"].(map[string]any)
	assert.Equal(t, 1.0, threats["active"])
}

func TestNetworkMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	doJSON(t, http.MethodPost, srv.URL+"/agents/a1/metrics",
		map[string]any{"network": 12.5, "processes": 30})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/network-metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 12.5, body["total_throughput"])
}

func TestAdminReset(t *testing.T) {
	srv := newTestServer(t, nil, &stubStore{healthy: true})

	doJSON(t, http.MethodPost, srv.URL+"/agents/register", map[string]any{"id": "a1"})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/admin/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["database_cleared"])

	_, agents := getJSONList(t, srv.URL+"/agents")
	assert.Empty(t, agents)
}

func TestMetricsEndpointExposed(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
