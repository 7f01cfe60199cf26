package hub

import (
	"context"
	"sort"
	"time"

	"nervecenter-backend/internal/models"
)

// UpsertSystemHealth replaces the live health row for the sample's
// component and writes it through. The background cycles are the only
// writer of these rows.
func (h *Hub) UpsertSystemHealth(ctx context.Context, sample models.SystemHealthSample) {
	if sample.LastCheck.IsZero() {
		sample.LastCheck = time.Now().UTC()
	}
	h.mu.Lock()
	h.health[sample.Component] = sample
	h.mu.Unlock()

	h.persistSystemHealth(ctx, sample)
}

// SystemHealth returns the live per-component health rows sorted by
// component name.
func (h *Hub) SystemHealth() []models.SystemHealthSample {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.SystemHealthSample, 0, len(h.health))
	for _, sample := range h.health {
		out = append(out, sample)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

// Counts reports total agents, active agents and active threats in one
// consistent snapshot.
func (h *Hub) Counts() (totalAgents, activeAgents, activeThreats int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	totalAgents = len(h.agents)
	for _, agent := range h.agents {
		if agent.Status == models.AgentActive {
			activeAgents++
		}
	}
	for _, t := range h.threats {
		if t.Status == models.ThreatActive {
			activeThreats++
		}
	}
	return totalAgents, activeAgents, activeThreats
}

// NetworkMetrics aggregates each agent's newest sample into the derived
// network snapshot. Computed on read, never stored.
func (h *Hub) NetworkMetrics() models.NetworkSnapshot {
	h.mu.Lock()
	snap := models.NetworkSnapshot{
		Timestamp: time.Now().UTC(),
		Agents:    make([]models.AgentNetwork, 0, len(h.agents)),
	}
	for id, agent := range h.agents {
		latest, ok := h.latestSampleLocked(id)
		if !ok {
			continue
		}
		snap.TotalThroughput += latest.Network
		snap.Agents = append(snap.Agents, models.AgentNetwork{
			AgentID:   id,
			Hostname:  agent.Hostname,
			Network:   latest.Network,
			Processes: latest.Processes,
		})
	}
	h.mu.Unlock()

	sort.Slice(snap.Agents, func(i, j int) bool { return snap.Agents[i].AgentID < snap.Agents[j].AgentID })
	return snap
}
