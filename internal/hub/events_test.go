package hub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nervecenter-backend/internal/models"
)

func mustRef(t *testing.T, s string) models.EventRef {
	t.Helper()
	ref, err := models.ParseEventRef(s)
	require.NoError(t, err)
	return ref
}

func TestEvents_MergesThreatsAndEvidence(t *testing.T) {
	h := New(newStubStore(), nil)
	ctx := context.Background()

	threat, _, _ := h.CreateThreat(ctx, ThreatInput{Name: "scan"})
	ev, _, _, err := h.CreateEvidence(ctx, EvidenceInput{
		AgentID: "a1", Type: "net", Severity: models.SeverityLow,
		Title: "probe", Description: "d",
	})
	require.NoError(t, err)

	events := h.Events(0)
	require.Len(t, events, 2)

	ids := []string{events[0].ID, events[1].ID}
	assert.Contains(t, ids, "threat-"+threat.ID)
	assert.Contains(t, ids, "evidence-"+ev.ID)
}

func TestEvents_NewestFirstWithStableTieBreak(t *testing.T) {
	h := New(newStubStore(), nil)
	ctx := context.Background()

	// Create several records in one tight loop so timestamps collide at
	// clock granularity; insertion order must still be honored.
	for i := 0; i < 5; i++ {
		h.CreateThreat(ctx, ThreatInput{Name: "t"})
	}

	events := h.Events(0)
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		assert.False(t, prev.Timestamp.Before(cur.Timestamp))
		if prev.Timestamp.Equal(cur.Timestamp) {
			assert.Greater(t, prev.Seq, cur.Seq)
		}
	}
}

func TestEvents_LimitCapsOutput(t *testing.T) {
	h := New(newStubStore(), nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		h.CreateThreat(ctx, ThreatInput{})
	}

	assert.Len(t, h.Events(3), 3)
	assert.Len(t, h.Events(0), 10)
}

func TestEvent_Detail(t *testing.T) {
	h := New(newStubStore(), nil)

	threat, createdEvent, _ := h.CreateThreat(context.Background(), ThreatInput{
		Name: "beacon", Type: "c2_traffic", Severity: models.SeverityCritical,
	})

	event, err := h.Event(mustRef(t, createdEvent.ID))
	require.NoError(t, err)
	assert.Equal(t, "threat-"+threat.ID, event.ID)
	assert.Equal(t, "beacon", event.Title)
	assert.Equal(t, "c2_traffic", event.Details.GetString("threat_type"))
}

func TestEvent_LegacyPrefixAccepted(t *testing.T) {
	h := New(newStubStore(), nil)

	threat, _, _ := h.CreateThreat(context.Background(), ThreatInput{})

	event, err := h.Event(mustRef(t, "event-threat-"+threat.ID))
	require.NoError(t, err)
	assert.Equal(t, "threat-"+threat.ID, event.ID)
}

func TestEvent_NotFound(t *testing.T) {
	h := New(newStubStore(), nil)

	_, err := h.Event(models.EventRef{Kind: models.EventKindThreat, ID: "ghost"})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestAcknowledgeEvent_ThreatDecrementsCounter(t *testing.T) {
	h := New(newStubStore(), nil)
	ctx := context.Background()

	threat, _, _ := h.CreateThreat(ctx, ThreatInput{AgentID: "a1"})

	agent, _ := h.GetAgent("a1")
	require.Equal(t, 1, agent.Threats)

	event, err := h.AcknowledgeEvent(ctx, mustRef(t, "threat-"+threat.ID))
	require.NoError(t, err)
	assert.Equal(t, models.Acknowledged, event.Status)

	agent, _ = h.GetAgent("a1")
	assert.Equal(t, 0, agent.Threats)
}

func TestAcknowledgeEvent_Idempotent(t *testing.T) {
	h := New(newStubStore(), nil)
	ctx := context.Background()

	h.CreateThreat(ctx, ThreatInput{AgentID: "a1"})
	threat, _, _ := h.CreateThreat(ctx, ThreatInput{AgentID: "a1"})
	ref := mustRef(t, "threat-"+threat.ID)

	_, err := h.AcknowledgeEvent(ctx, ref)
	require.NoError(t, err)

	// Second acknowledgment succeeds without double-decrementing.
	event, err := h.AcknowledgeEvent(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, models.Acknowledged, event.Status)

	agent, _ := h.GetAgent("a1")
	assert.Equal(t, 1, agent.Threats)
}

func TestAcknowledgeEvent_Evidence(t *testing.T) {
	h := New(newStubStore(), nil)
	ctx := context.Background()

	ev, _, _, err := h.CreateEvidence(ctx, EvidenceInput{
		AgentID: "a1", Type: "net", Severity: models.SeverityLow,
		Title: "t", Description: "d",
	})
	require.NoError(t, err)

	event, err := h.AcknowledgeEvent(ctx, mustRef(t, "evidence-"+ev.ID))
	require.NoError(t, err)
	assert.Equal(t, models.Acknowledged, event.Status)

	// Evidence acknowledgment never touches the threat counter.
	agent, _ := h.GetAgent("a1")
	assert.Equal(t, 0, agent.Threats)
}

func TestAcknowledgeEvent_Unknown(t *testing.T) {
	h := New(newStubStore(), nil)

	_, err := h.AcknowledgeEvent(context.Background(), models.EventRef{
		Kind: models.EventKindEvidence, ID: "ghost",
	})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestAcknowledgeEvent_WriteThroughCounts(t *testing.T) {
	store := newStubStore()
	h := New(store, nil)
	ctx := context.Background()

	threat, _, _ := h.CreateThreat(ctx, ThreatInput{AgentID: "a1"})
	before := store.count("threat")

	_, err := h.AcknowledgeEvent(ctx, mustRef(t, "threat-"+threat.ID))
	require.NoError(t, err)

	assert.Equal(t, before+1, store.count("threat"))
	assert.GreaterOrEqual(t, store.count("event"), 2)
}
