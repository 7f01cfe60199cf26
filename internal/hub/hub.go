// Package hub owns the coordination state: the agent registry, the bounded
// per-agent metric history, the threat/evidence collections and the derived
// event timeline. All collections sit behind one mutex so a handler's
// compound mutations (registry update plus ring append, threat insert plus
// counter bump) are a single critical section; durable writes and bus
// publishes happen outside the lock on snapshot copies and never fail the
// triggering operation.
package hub

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"nervecenter-backend/internal/metrics"
	"nervecenter-backend/internal/models"
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrEventNotFound = errors.New("event not found")
)

// ValidationError reports required fields missing from a request.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Persistence is the write-through port to the durable store. Every method
// is best-effort from the hub's point of view: a failure is logged and
// counted, never propagated to the caller of the triggering operation.
type Persistence interface {
	SaveAgent(ctx context.Context, agent *models.Agent) error
	SaveThreat(ctx context.Context, threat *models.Threat) error
	SaveEvidence(ctx context.Context, ev *models.Evidence) error
	SaveEvent(ctx context.Context, event *models.Event) error
	SaveSystemHealth(ctx context.Context, sample *models.SystemHealthSample) error
}

// Publisher pushes derived events to the bus for downstream consumers.
type Publisher interface {
	PublishEvent(event *models.Event) error
}

type Hub struct {
	mu       sync.Mutex
	agents   map[string]*models.Agent
	samples  map[string][]models.MetricSample
	threats  map[string]*models.Threat
	evidence map[string]*models.Evidence
	health   map[string]models.SystemHealthSample
	seqs     map[string]int // EventRef.String() -> insertion sequence
	nextSeq  int

	store   Persistence
	bus     Publisher
	started time.Time
}

// New returns an empty hub. store may be nil in tests; bus is optional.
func New(store Persistence, bus Publisher) *Hub {
	return &Hub{
		agents:   make(map[string]*models.Agent),
		samples:  make(map[string][]models.MetricSample),
		threats:  make(map[string]*models.Threat),
		evidence: make(map[string]*models.Evidence),
		health:   make(map[string]models.SystemHealthSample),
		seqs:     make(map[string]int),
		store:    store,
		bus:      bus,
		started:  time.Now().UTC(),
	}
}

// Uptime reports how long the hub has been running.
func (h *Hub) Uptime() time.Duration {
	return time.Since(h.started)
}

// ResetState clears all in-memory collections. Administrative use only.
func (h *Hub) ResetState() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.agents = make(map[string]*models.Agent)
	h.samples = make(map[string][]models.MetricSample)
	h.threats = make(map[string]*models.Threat)
	h.evidence = make(map[string]*models.Evidence)
	h.health = make(map[string]models.SystemHealthSample)
	h.seqs = make(map[string]int)
	log.Println("INFO Hub state reset")
}

func (h *Hub) persistAgent(ctx context.Context, agent models.Agent) bool {
	if h.store == nil {
		return false
	}
	if err := h.store.SaveAgent(ctx, &agent); err != nil {
		log.Printf("WARN Agent write-through failed for %s: %v", agent.ID, err)
		metrics.StoreFailures.WithLabelValues("agent").Inc()
		return false
	}
	return true
}

func (h *Hub) persistThreat(ctx context.Context, threat models.Threat) bool {
	if h.store == nil {
		return false
	}
	if err := h.store.SaveThreat(ctx, &threat); err != nil {
		log.Printf("WARN Threat write-through failed for %s: %v", threat.ID, err)
		metrics.StoreFailures.WithLabelValues("threat").Inc()
		return false
	}
	return true
}

func (h *Hub) persistEvidence(ctx context.Context, ev models.Evidence) bool {
	if h.store == nil {
		return false
	}
	if err := h.store.SaveEvidence(ctx, &ev); err != nil {
		log.Printf("WARN Evidence write-through failed for %s: %v", ev.ID, err)
		metrics.StoreFailures.WithLabelValues("evidence").Inc()
		return false
	}
	return true
}

func (h *Hub) persistEvent(ctx context.Context, event models.Event) bool {
	if h.store == nil {
		return false
	}
	if err := h.store.SaveEvent(ctx, &event); err != nil {
		log.Printf("WARN Event write-through failed for %s: %v", event.ID, err)
		metrics.StoreFailures.WithLabelValues("event").Inc()
		return false
	}
	return true
}

func (h *Hub) persistSystemHealth(ctx context.Context, sample models.SystemHealthSample) bool {
	if h.store == nil {
		return false
	}
	if err := h.store.SaveSystemHealth(ctx, &sample); err != nil {
		log.Printf("WARN System health write-through failed for %s: %v", sample.Component, err)
		metrics.StoreFailures.WithLabelValues("system_health").Inc()
		return false
	}
	return true
}

func (h *Hub) publishEvent(event models.Event) {
	if h.bus == nil {
		return
	}
	if err := h.bus.PublishEvent(&event); err != nil {
		log.Printf("WARN Event publish failed for %s: %v", event.ID, err)
	}
}
