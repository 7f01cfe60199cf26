package hub

import (
	"context"
	"time"

	"nervecenter-backend/internal/models"
)

// maxSamplesPerAgent bounds each agent's metric history; the oldest sample
// is evicted first.
const maxSamplesPerAgent = 100

// AppendSample records a metric sample for the agent and updates the
// registry's cpu/memory/lastSeen summary in the same critical section, so
// a reader never observes a fresher history than the summary or vice
// versa. Unknown agents are auto-provisioned, never rejected.
func (h *Hub) AppendSample(ctx context.Context, agentID string, sample models.MetricSample) models.Agent {
	sample.AgentID = agentID
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	agent, _ := h.provisionLocked(agentID)
	agent.CPU = sample.CPU
	agent.Memory = sample.Memory
	agent.LastSeen = sample.Timestamp
	agent.Status = models.AgentActive

	ring := append(h.samples[agentID], sample)
	if len(ring) > maxSamplesPerAgent {
		ring = ring[len(ring)-maxSamplesPerAgent:]
	}
	h.samples[agentID] = ring
	snapshot := *agent
	h.mu.Unlock()

	h.persistAgent(ctx, snapshot)
	return snapshot
}

// RecentSamples returns up to limit of the agent's most recent samples in
// arrival order. Unknown agents are ErrAgentNotFound.
func (h *Hub) RecentSamples(agentID string, limit int) ([]models.MetricSample, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.agents[agentID]; !ok {
		return nil, ErrAgentNotFound
	}
	ring := h.samples[agentID]
	if limit <= 0 || limit > len(ring) {
		limit = len(ring)
	}
	out := make([]models.MetricSample, limit)
	copy(out, ring[len(ring)-limit:])
	return out, nil
}

// latestSampleLocked returns the agent's newest sample. Callers hold h.mu.
func (h *Hub) latestSampleLocked(agentID string) (models.MetricSample, bool) {
	ring := h.samples[agentID]
	if len(ring) == 0 {
		return models.MetricSample{}, false
	}
	return ring[len(ring)-1], true
}
