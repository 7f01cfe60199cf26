// Package handlers exposes the hub over HTTP. Routes speak JSON and keep
// the field names the dashboard already consumes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nervecenter-backend/internal/cache"
	"nervecenter-backend/internal/hub"
	"nervecenter-backend/internal/metrics"
	"nervecenter-backend/internal/models"
)

const (
	defaultSampleLimit = 50
	defaultEventLimit  = 100
)

// Store is the slice of the durable store the handlers need directly.
type Store interface {
	HealthCheck(ctx context.Context) models.DatabaseHealth
	Reset(ctx context.Context) error
}

type Handler struct {
	hub         *hub.Hub
	store       Store
	presence    cache.Client
	presenceTTL time.Duration
}

// New wires the HTTP layer. store and presence may be nil when the durable
// store or Redis is not configured.
func New(h *hub.Hub, store Store, presence cache.Client, presenceTTL time.Duration) *Handler {
	return &Handler{hub: h, store: store, presence: presence, presenceTTL: presenceTTL}
}

// touchPresence refreshes the agent's liveness key. Best-effort; presence
// falls back to in-memory lastSeen when Redis is absent or down.
func (h *Handler) touchPresence(agentID string) {
	if h.presence == nil {
		return
	}
	if err := h.presence.Touch(agentID, time.Now().UTC(), h.presenceTTL); err != nil {
		log.Printf("WARN Presence touch failed for %s: %v", agentID, err)
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Agents
	r.Get("/agents", h.GetAgents)
	r.Post("/agents/register", h.RegisterAgent)
	r.Post("/agents/{id}/metrics", h.IngestMetrics)
	r.Get("/agents/{id}/metrics", h.GetAgentMetrics)

	// Findings
	r.Get("/threats", h.GetThreats)
	r.Post("/threats", h.CreateThreat)
	r.Post("/evidence", h.CreateEvidence)

	// Events
	r.Get("/events", h.GetEvents)
	r.Get("/events/{eventID}", h.GetEvent)
	r.Post("/events/{eventID}/acknowledge", h.AcknowledgeEvent)

	// Derived snapshots
	r.Get("/system-health", h.GetSystemHealth)
	r.Get("/network-metrics", h.GetNetworkMetrics)
	r.Get("/system/status", h.GetSystemStatus)

	// Admin
	r.Post("/admin/reset", h.AdminReset)
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Nerve Center API",
		"status":    "active",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	_, active, activeThreats := h.hub.Counts()

	dbHealth := models.DatabaseHealth{Status: "unconfigured"}
	if h.store != nil {
		dbHealth = h.store.HealthCheck(r.Context())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"component":        "nerve_center",
		"agents_connected": active,
		"threats_active":   activeThreats,
		"database":         dbHealth,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) GetAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.ListAgents())
}

func (h *Handler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Hostname  string `json:"hostname"`
		IPAddress string `json:"ip_address"`
		OSType    string `json:"os_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agent, created := h.hub.UpsertAgent(r.Context(), hub.AgentUpdate{
		ID:        req.ID,
		Name:      req.Name,
		Hostname:  req.Hostname,
		IPAddress: req.IPAddress,
		OSType:    req.OSType,
	})

	h.touchPresence(agent.ID)

	msg := "Agent updated"
	if created {
		msg = "Agent registered"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"agent_id": agent.ID,
		"message":  msg,
	})
}

func (h *Handler) IngestMetrics(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	var req struct {
		CPU       float64 `json:"cpu"`
		Memory    float64 `json:"memory"`
		Disk      float64 `json:"disk"`
		Network   float64 `json:"network"`
		Processes int     `json:"processes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.hub.AppendSample(r.Context(), agentID, models.MetricSample{
		AgentID:   agentID,
		CPU:       req.CPU,
		Memory:    req.Memory,
		Disk:      req.Disk,
		Network:   req.Network,
		Processes: req.Processes,
		Timestamp: time.Now().UTC(),
	})
	metrics.SamplesTotal.Inc()
	h.touchPresence(agentID)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Metrics received",
	})
}

func (h *Handler) GetAgentMetrics(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	limit := queryLimit(r, defaultSampleLimit)

	samples, err := h.hub.RecentSamples(agentID, limit)
	if err != nil {
		if errors.Is(err, hub.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, "Agent not found")
			return
		}
		writeServerError(w, "Get agent metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (h *Handler) GetThreats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.ListThreats())
}

func (h *Handler) CreateThreat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Type        string `json:"type"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
		AgentID     string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	threat, event, saved := h.hub.CreateThreat(r.Context(), hub.ThreatInput{
		ID:          req.ID,
		Name:        req.Name,
		Type:        req.Type,
		Severity:    req.Severity,
		Description: req.Description,
		AgentID:     req.AgentID,
	})
	metrics.ThreatsTotal.WithLabelValues(threat.Severity).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"threat_id":   threat.ID,
		"event_id":    event.ID,
		"saved_to_db": saved,
		"message":     "Threat recorded",
	})
}

func (h *Handler) CreateEvidence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string          `json:"id"`
		AgentID     string          `json:"agent_id"`
		Type        string          `json:"type"`
		Severity    string          `json:"severity"`
		Title       string          `json:"title"`
		Description string          `json:"description"`
		RawData     json.RawMessage `json:"raw_data"`
		Confidence  *float64        `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rawData, err := parseRawData(req.RawData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "raw_data must be a JSON object or a JSON-encoded object string")
		return
	}

	ev, event, saved, err := h.hub.CreateEvidence(r.Context(), hub.EvidenceInput{
		ID:          req.ID,
		AgentID:     req.AgentID,
		Type:        req.Type,
		Severity:    req.Severity,
		Title:       req.Title,
		Description: req.Description,
		RawData:     rawData,
		Confidence:  req.Confidence,
	})
	if err != nil {
		var verr *hub.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success":        false,
				"error":          verr.Error(),
				"missing_fields": verr.Missing,
			})
			return
		}
		writeServerError(w, "Create evidence", err)
		return
	}
	metrics.EvidenceTotal.WithLabelValues(ev.Severity).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"evidence_id": ev.ID,
		"event_id":    event.ID,
		"saved_to_db": saved,
		"message":     "Evidence recorded",
	})
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultEventLimit)
	writeJSON(w, http.StatusOK, h.hub.Events(limit))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ref, err := models.ParseEventRef(chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}

	event, err := h.hub.Event(ref)
	if err != nil {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) AcknowledgeEvent(w http.ResponseWriter, r *http.Request) {
	ref, err := models.ParseEventRef(chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}

	event, err := h.hub.AcknowledgeEvent(r.Context(), ref)
	if err != nil {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	metrics.EventsAcknowledged.Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"event_id": event.ID,
			"status":   event.Status,
			"message":  "Event acknowledged",
		},
	})
}

func (h *Handler) GetSystemHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.SystemHealth())
}

func (h *Handler) GetNetworkMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.NetworkMetrics())
}

func (h *Handler) GetSystemStatus(w http.ResponseWriter, r *http.Request) {
	total, active, activeThreats := h.hub.Counts()
	totalThreats := len(h.hub.ListThreats())

	dbHealth := models.DatabaseHealth{Status: "unconfigured"}
	if h.store != nil {
		dbHealth = h.store.HealthCheck(r.Context())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nerve_center": map[string]any{
			"status":         "healthy",
			"uptime_seconds": int64(h.hub.Uptime().Seconds()),
		},
		"agents": map[string]any{
			"total":   total,
			"active":  active,
			"offline": total - active,
		},
		"threats": map[string]any{
			"active":   activeThreats,
			"resolved": totalThreats - activeThreats,
		},
		"database": dbHealth,
	})
}

func (h *Handler) AdminReset(w http.ResponseWriter, r *http.Request) {
	h.hub.ResetState()

	cleared := false
	if h.store != nil {
		if err := h.store.Reset(r.Context()); err == nil {
			cleared = true
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"database_cleared": cleared,
		"message":          "Hub state reset",
	})
}

// parseRawData accepts raw_data either as an inline JSON object or as a
// string holding encoded JSON, which some agent builds still send.
func parseRawData(raw json.RawMessage) (models.Document, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err == nil {
		return doc, nil
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, errors.New("raw_data is neither object nor string")
	}
	if err := json.Unmarshal([]byte(encoded), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
