package hub

import (
	"context"
	"log"
	"sort"

	"nervecenter-backend/internal/models"
)

// registerEventLocked assigns the event its insertion sequence. The
// timeline itself is derived on read; only the sequence is remembered so
// timestamp ties keep a stable order. Callers hold h.mu.
func (h *Hub) registerEventLocked(event models.Event) models.Event {
	h.nextSeq++
	h.seqs[event.ID] = h.nextSeq
	event.Seq = h.nextSeq
	return event
}

func eventFromThreat(t models.Threat) models.Event {
	ref := models.EventRef{Kind: models.EventKindThreat, ID: t.ID}
	details := models.Document{
		"threat_type": models.String(t.Type),
	}
	if t.AgentInfo != nil {
		details["hostname"] = models.String(t.AgentInfo.Hostname)
	}
	return models.Event{
		ID:          ref.String(),
		Type:        string(models.EventKindThreat),
		Severity:    t.Severity,
		Title:       t.Name,
		Description: t.Description,
		AgentID:     t.AgentID,
		Timestamp:   t.DetectedAt,
		Status:      t.Status,
		Confidence:  0.8,
		Details:     details,
	}
}

func eventFromEvidence(e models.Evidence) models.Event {
	ref := models.EventRef{Kind: models.EventKindEvidence, ID: e.ID}
	return models.Event{
		ID:          ref.String(),
		Type:        string(models.EventKindEvidence),
		Severity:    e.Severity,
		Title:       e.Title,
		Description: e.Description,
		AgentID:     e.AgentID,
		Timestamp:   e.Timestamp,
		Status:      e.Status,
		Confidence:  e.Confidence,
		Details:     e.RawData,
	}
}

// Events merges threats and evidence into the chronological timeline,
// newest first; equal timestamps order by insertion sequence, later
// insert first. limit <= 0 means no cap.
func (h *Hub) Events(limit int) []models.Event {
	h.mu.Lock()
	out := make([]models.Event, 0, len(h.threats)+len(h.evidence))
	for _, t := range h.threats {
		event := eventFromThreat(*t)
		event.Seq = h.seqs[event.ID]
		out = append(out, event)
	}
	for _, e := range h.evidence {
		event := eventFromEvidence(*e)
		event.Seq = h.seqs[event.ID]
		out = append(out, event)
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Seq > out[j].Seq
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Event resolves a single event for the detail view.
func (h *Hub) Event(ref models.EventRef) (models.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch ref.Kind {
	case models.EventKindThreat:
		if t, ok := h.threats[ref.ID]; ok {
			event := eventFromThreat(*t)
			event.Seq = h.seqs[event.ID]
			return event, nil
		}
	case models.EventKindEvidence:
		if e, ok := h.evidence[ref.ID]; ok {
			event := eventFromEvidence(*e)
			event.Seq = h.seqs[event.ID]
			return event, nil
		}
	}
	return models.Event{}, ErrEventNotFound
}

// AcknowledgeEvent sets the underlying record's status to acknowledged.
// The first acknowledgment of a threat decrements its agent's live threat
// counter (floor 0); repeats succeed without double-decrementing.
func (h *Hub) AcknowledgeEvent(ctx context.Context, ref models.EventRef) (models.Event, error) {
	h.mu.Lock()
	var (
		event         models.Event
		agentSnapshot *models.Agent
	)
	switch ref.Kind {
	case models.EventKindThreat:
		t, ok := h.threats[ref.ID]
		if !ok {
			h.mu.Unlock()
			return models.Event{}, ErrEventNotFound
		}
		if t.Status == models.ThreatActive {
			if agent, ok := h.agents[t.AgentID]; ok {
				h.adjustThreatCountLocked(agent, -1)
				copied := *agent
				agentSnapshot = &copied
			}
		}
		t.Status = models.Acknowledged
		event = eventFromThreat(*t)
	case models.EventKindEvidence:
		e, ok := h.evidence[ref.ID]
		if !ok {
			h.mu.Unlock()
			return models.Event{}, ErrEventNotFound
		}
		e.Status = models.Acknowledged
		event = eventFromEvidence(*e)
	default:
		h.mu.Unlock()
		return models.Event{}, ErrEventNotFound
	}
	event.Seq = h.seqs[event.ID]
	var threatCopy *models.Threat
	var evidenceCopy *models.Evidence
	if ref.Kind == models.EventKindThreat {
		copied := *h.threats[ref.ID]
		threatCopy = &copied
	} else {
		copied := *h.evidence[ref.ID]
		evidenceCopy = &copied
	}
	h.mu.Unlock()

	log.Printf("INFO Event %s acknowledged", event.ID)
	if threatCopy != nil {
		h.persistThreat(ctx, *threatCopy)
	}
	if evidenceCopy != nil {
		h.persistEvidence(ctx, *evidenceCopy)
	}
	h.persistEvent(ctx, event)
	if agentSnapshot != nil {
		h.persistAgent(ctx, *agentSnapshot)
	}
	return event, nil
}
