package hub

import (
	"context"
	"errors"
	"sync"

	"nervecenter-backend/internal/models"
)

// stubStore records write-throughs and can be flipped into failure mode to
// exercise the degrade-to-available path.
type stubStore struct {
	mu     sync.Mutex
	fail   bool
	agents []models.Agent
	saves  map[string]int
}

func newStubStore() *stubStore {
	return &stubStore{saves: make(map[string]int)}
}

func (s *stubStore) record(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store unreachable")
	}
	s.saves[kind]++
	return nil
}

func (s *stubStore) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[kind]
}

func (s *stubStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *stubStore) SaveAgent(ctx context.Context, agent *models.Agent) error {
	if err := s.record("agent"); err != nil {
		return err
	}
	s.mu.Lock()
	s.agents = append(s.agents, *agent)
	s.mu.Unlock()
	return nil
}

func (s *stubStore) SaveThreat(ctx context.Context, threat *models.Threat) error {
	return s.record("threat")
}

func (s *stubStore) SaveEvidence(ctx context.Context, ev *models.Evidence) error {
	return s.record("evidence")
}

func (s *stubStore) SaveEvent(ctx context.Context, event *models.Event) error {
	return s.record("event")
}

func (s *stubStore) SaveSystemHealth(ctx context.Context, sample *models.SystemHealthSample) error {
	return s.record("system_health")
}

// stubBus captures published events.
type stubBus struct {
	mu     sync.Mutex
	events []models.Event
}

func (b *stubBus) PublishEvent(event *models.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, *event)
	return nil
}

func (b *stubBus) published() []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Event, len(b.events))
	copy(out, b.events)
	return out
}
