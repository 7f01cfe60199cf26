package hub

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"nervecenter-backend/internal/models"
)

// AgentUpdate carries the fields a registration may set. Empty fields are
// left untouched on an existing record.
type AgentUpdate struct {
	ID        string
	Name      string
	Hostname  string
	IPAddress string
	OSType    string
}

// UpsertAgent creates the agent if absent or merges the supplied fields
// into the existing record, refreshing lastSeen either way. Re-contact
// flips an offline agent back to active. Returns the resulting record and
// whether it was newly created.
func (h *Hub) UpsertAgent(ctx context.Context, upd AgentUpdate) (models.Agent, bool) {
	if upd.ID == "" {
		upd.ID = uuid.New().String()
	}

	h.mu.Lock()
	agent, created := h.provisionLocked(upd.ID)
	if upd.Name != "" {
		agent.Name = upd.Name
	}
	if upd.Hostname != "" {
		agent.Hostname = upd.Hostname
	}
	if upd.IPAddress != "" {
		agent.IPAddress = upd.IPAddress
	}
	if upd.OSType != "" {
		agent.OSType = upd.OSType
	}
	agent.Status = models.AgentActive
	agent.LastSeen = time.Now().UTC()
	snapshot := *agent
	h.mu.Unlock()

	if created {
		log.Printf("INFO Registered new agent: %s", snapshot.ID)
	}
	h.persistAgent(ctx, snapshot)
	return snapshot, created
}

// GetAgent returns the agent record or ErrAgentNotFound.
func (h *Hub) GetAgent(id string) (models.Agent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	agent, ok := h.agents[id]
	if !ok {
		return models.Agent{}, ErrAgentNotFound
	}
	return *agent, nil
}

// ListAgents returns all agents sorted by id.
func (h *Hub) ListAgents() []models.Agent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Agent, 0, len(h.agents))
	for _, agent := range h.agents {
		out = append(out, *agent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IncrementThreatCount adjusts an agent's live threat counter, clamped at
// zero. Unknown ids are a logged no-op.
func (h *Hub) IncrementThreatCount(ctx context.Context, id string, delta int) {
	h.mu.Lock()
	agent, ok := h.agents[id]
	if !ok {
		h.mu.Unlock()
		log.Printf("WARN Threat count update for unknown agent %s ignored", id)
		return
	}
	h.adjustThreatCountLocked(agent, delta)
	snapshot := *agent
	h.mu.Unlock()

	h.persistAgent(ctx, snapshot)
}

// PromoteAgent raises an agent's rank by one, capped at RankMax. Used by
// the ranking cycle's promotion policy.
func (h *Hub) PromoteAgent(ctx context.Context, id string) {
	h.mu.Lock()
	agent, ok := h.agents[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	if agent.Rank >= models.RankMax {
		h.mu.Unlock()
		return
	}
	agent.Rank++
	snapshot := *agent
	h.mu.Unlock()

	log.Printf("INFO Agent %s promoted to rank %d", snapshot.ID, snapshot.Rank)
	h.persistAgent(ctx, snapshot)
}

// MarkAgentOffline flips an agent to offline status. Returns false for
// unknown agents or agents already offline.
func (h *Hub) MarkAgentOffline(ctx context.Context, id string) bool {
	h.mu.Lock()
	agent, ok := h.agents[id]
	if !ok || agent.Status == models.AgentOffline {
		h.mu.Unlock()
		return false
	}
	agent.Status = models.AgentOffline
	snapshot := *agent
	h.mu.Unlock()

	log.Printf("INFO Agent %s marked offline", id)
	h.persistAgent(ctx, snapshot)
	return true
}

// provisionLocked returns the agent record, creating a placeholder with
// default fields when the id is unknown. Auto-provisioning keeps metrics
// and finding ingestion from being rejected just because an agent is new.
// Callers hold h.mu.
func (h *Hub) provisionLocked(id string) (*models.Agent, bool) {
	if agent, ok := h.agents[id]; ok {
		return agent, false
	}
	name := "Agent-" + id
	if len(id) >= 8 {
		name = "Agent-" + id[:8]
	}
	agent := &models.Agent{
		ID:        id,
		Name:      name,
		Hostname:  "unknown",
		Status:    models.AgentActive,
		Rank:      1,
		LastSeen:  time.Now().UTC(),
		IPAddress: "0.0.0.0",
		OSType:    "unknown",
	}
	h.agents[id] = agent
	return agent, true
}

// adjustThreatCountLocked clamps the counter at zero. Callers hold h.mu.
func (h *Hub) adjustThreatCountLocked(agent *models.Agent, delta int) {
	agent.Threats += delta
	if agent.Threats < 0 {
		agent.Threats = 0
	}
}
