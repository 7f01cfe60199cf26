package hub

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"nervecenter-backend/internal/models"
)

// ThreatInput carries the caller-supplied threat fields. Every field is
// optional; a record is always produced.
type ThreatInput struct {
	ID          string
	Name        string
	Type        string
	Severity    string
	Description string
	AgentID     string
}

// EvidenceInput carries the caller-supplied evidence fields. AgentID,
// Type, Severity, Title and Description are required.
type EvidenceInput struct {
	ID          string
	AgentID     string
	Type        string
	Severity    string
	Title       string
	Description string
	RawData     models.Document
	Confidence  *float64
}

// CreateThreat validates nothing beyond defaults: a threat with no fields
// still yields a record with a generated id. When an agent is referenced,
// its current hostname/os/ip are snapshotted into the record, the agent's
// live threat counter is incremented, and unknown agents are provisioned
// first so the durable store never sees a dangling reference. The returned
// bool reports whether the write-through reached the durable store.
func (h *Hub) CreateThreat(ctx context.Context, in ThreatInput) (models.Threat, models.Event, bool) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.Name == "" {
		in.Name = "Unknown Threat"
	}
	if in.Type == "" {
		in.Type = "unknown"
	}
	if in.Severity == "" {
		in.Severity = models.SeverityMedium
	}

	threat := models.Threat{
		ID:          in.ID,
		Name:        in.Name,
		Type:        in.Type,
		Severity:    in.Severity,
		Description: in.Description,
		Status:      models.ThreatActive,
		DetectedAt:  time.Now().UTC(),
		AgentID:     in.AgentID,
	}

	h.mu.Lock()
	var agentSnapshot *models.Agent
	if in.AgentID != "" {
		agent, created := h.provisionLocked(in.AgentID)
		if created {
			log.Printf("INFO Provisioned placeholder agent %s for threat %s", in.AgentID, threat.ID)
		}
		threat.AgentInfo = &models.AgentInfo{
			Hostname:  agent.Hostname,
			OSType:    agent.OSType,
			IPAddress: agent.IPAddress,
		}
		h.adjustThreatCountLocked(agent, 1)
		copied := *agent
		agentSnapshot = &copied
	}
	h.threats[threat.ID] = &threat
	event := h.registerEventLocked(eventFromThreat(threat))
	h.mu.Unlock()

	log.Printf("INFO New threat detected: %s (%s)", threat.Name, threat.ID)
	saved := h.persistThreat(ctx, threat)
	h.persistEvent(ctx, event)
	if agentSnapshot != nil {
		h.persistAgent(ctx, *agentSnapshot)
	}
	h.publishEvent(event)
	return threat, event, saved
}

// CreateEvidence validates the required fields, provisions the referenced
// agent when unknown, enriches raw_data with the agent snapshot and latest
// metrics, and records the evidence plus its derived event. Evidence never
// touches the agent's threat counter.
func (h *Hub) CreateEvidence(ctx context.Context, in EvidenceInput) (models.Evidence, models.Event, bool, error) {
	var missing []string
	if in.AgentID == "" {
		missing = append(missing, "agent_id")
	}
	if in.Type == "" {
		missing = append(missing, "type")
	}
	if in.Severity == "" {
		missing = append(missing, "severity")
	}
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return models.Evidence{}, models.Event{}, false, &ValidationError{Missing: missing}
	}

	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	confidence := 0.8
	if in.Confidence != nil {
		confidence = *in.Confidence
	}

	h.mu.Lock()
	agent, created := h.provisionLocked(in.AgentID)
	if created {
		log.Printf("INFO Provisioned placeholder agent %s for evidence %s", in.AgentID, in.ID)
	}
	latest, _ := h.latestSampleLocked(in.AgentID)
	ev := models.Evidence{
		ID:          in.ID,
		AgentID:     in.AgentID,
		Type:        in.Type,
		Severity:    in.Severity,
		Title:       in.Title,
		Description: in.Description,
		RawData:     enrichRawData(in.RawData, *agent, latest),
		Status:      models.EvidenceOpen,
		Confidence:  confidence,
		Timestamp:   time.Now().UTC(),
	}
	h.evidence[ev.ID] = &ev
	event := h.registerEventLocked(eventFromEvidence(ev))
	h.mu.Unlock()

	log.Printf("INFO New evidence created: %s (%s)", ev.Title, ev.ID)
	saved := h.persistEvidence(ctx, ev)
	h.persistEvent(ctx, event)
	h.publishEvent(event)
	return ev, event, saved, nil
}

// ListThreats returns all threats, newest first.
func (h *Hub) ListThreats() []models.Threat {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Threat, 0, len(h.threats))
	for _, t := range h.threats {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	return out
}

// enrichRawData merges the caller's payload with the agent snapshot, the
// latest known resource metrics and generated follow-up recommendations.
// Caller-supplied keys win.
func enrichRawData(raw models.Document, agent models.Agent, latest models.MetricSample) models.Document {
	out := raw.Clone()
	if out == nil {
		out = models.Document{}
	}
	if !out.Has("metrics") {
		out["metrics"] = models.Object(models.Document{
			"cpu":       models.Number(latest.CPU),
			"memory":    models.Number(latest.Memory),
			"disk":      models.Number(latest.Disk),
			"network":   models.Number(latest.Network),
			"processes": models.Int(latest.Processes),
		})
	}
	if !out.Has("system_info") {
		out["system_info"] = models.Object(models.Document{
			"hostname":   models.String(agent.Hostname),
			"os_type":    models.String(agent.OSType),
			"ip_address": models.String(agent.IPAddress),
		})
	}
	if !out.Has("recommendations") {
		out["recommendations"] = models.Object(models.Document{
			"immediate_actions": models.Strings(
				"Isolate agent "+agent.Hostname+" from network",
				"Run full system scan on agent "+agent.Hostname,
			),
			"further_investigation": models.Strings(
				"Analyze process patterns for agent "+agent.Hostname,
				"Review network traffic from agent "+agent.Hostname,
			),
		})
	}
	return out
}
