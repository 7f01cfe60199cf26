// Package storage is the write-through persistence coordinator. The hub
// favors availability: when Postgres is unreachable every Save* returns an
// ErrUnavailable-wrapped failure that callers log and ignore, the
// in-memory state stays authoritative, and reconnection is attempted
// lazily on the next call rather than by a background retry loop.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"nervecenter-backend/internal/models"
)

// ErrUnavailable wraps every failure caused by an unreachable store.
var ErrUnavailable = errors.New("durable store unavailable")

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

type Storage struct {
	mu        sync.Mutex
	dsn       string
	db        *sqlx.DB
	connected bool
}

func New(dsn string) *Storage {
	return &Storage{dsn: dsn}
}

// Connect dials Postgres with bounded retry and ensures the schema exists.
// Returns false when the store stays unreachable; the hub runs degraded in
// that case and Save* calls keep retrying lazily.
func (s *Storage) Connect(ctx context.Context) bool {
	var lastErr error
	for i := 0; i < connectAttempts; i++ {
		if err := s.connectOnce(ctx); err != nil {
			lastErr = err
			log.Printf("WARN DB connection attempt %d failed: %v", i+1, err)
			select {
			case <-ctx.Done():
				return false
			case <-time.After(connectBackoff):
			}
			continue
		}
		log.Println("INFO Connected to database")
		return true
	}
	log.Printf("WARN Database unreachable after %d attempts, running degraded: %v", connectAttempts, lastErr)
	return false
}

func (s *Storage) connectOnce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected && s.db != nil {
		return nil
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", s.dsn)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("ensure schema: %w", err)
	}
	if s.db != nil {
		s.db.Close()
	}
	s.db = db
	s.connected = true
	return nil
}

// acquire returns the live handle, reconnecting lazily when the previous
// attempt marked the store down.
func (s *Storage) acquire(ctx context.Context) (*sqlx.DB, error) {
	s.mu.Lock()
	if s.connected && s.db != nil {
		db := s.db
		s.mu.Unlock()
		return db, nil
	}
	s.mu.Unlock()

	if err := s.connectOnce(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	log.Println("INFO Database reconnected")
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	return db, nil
}

// fail marks the store down when the error looks like a lost connection so
// the next call reconnects, and normalizes the returned error.
func (s *Storage) fail(ctx context.Context, op string, err error) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db != nil {
		if pingErr := db.PingContext(ctx); pingErr != nil {
			s.mu.Lock()
			s.connected = false
			s.mu.Unlock()
			return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Storage) SaveAgent(ctx context.Context, agent *models.Agent) error {
	db, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO agents (id, name, hostname, status, rank, cpu, memory, threats, last_seen, ip_address, os_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, hostname = EXCLUDED.hostname, status = EXCLUDED.status,
			rank = EXCLUDED.rank, cpu = EXCLUDED.cpu, memory = EXCLUDED.memory,
			threats = EXCLUDED.threats, last_seen = EXCLUDED.last_seen,
			ip_address = EXCLUDED.ip_address, os_type = EXCLUDED.os_type
	`
	if _, err := db.ExecContext(ctx, query,
		agent.ID, agent.Name, agent.Hostname, agent.Status, agent.Rank,
		agent.CPU, agent.Memory, agent.Threats, agent.LastSeen,
		agent.IPAddress, agent.OSType,
	); err != nil {
		return s.fail(ctx, "save agent", err)
	}
	return nil
}

func (s *Storage) SaveThreat(ctx context.Context, threat *models.Threat) error {
	db, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	var agentInfo []byte
	if threat.AgentInfo != nil {
		if agentInfo, err = json.Marshal(threat.AgentInfo); err != nil {
			return fmt.Errorf("save threat: %w", err)
		}
	}
	query := `
		INSERT INTO threats (id, name, type, severity, description, status, detected_at, agent_id, agent_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET status = EXCLUDED.status
	`
	if _, err := db.ExecContext(ctx, query,
		threat.ID, threat.Name, threat.Type, threat.Severity, threat.Description,
		threat.Status, threat.DetectedAt, nullIfEmpty(threat.AgentID), agentInfo,
	); err != nil {
		return s.fail(ctx, "save threat", err)
	}
	return nil
}

func (s *Storage) SaveEvidence(ctx context.Context, ev *models.Evidence) error {
	db, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO evidences (id, agent_id, type, severity, title, description, raw_data, status, confidence, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id)
		DO UPDATE SET status = EXCLUDED.status
	`
	if _, err := db.ExecContext(ctx, query,
		ev.ID, ev.AgentID, ev.Type, ev.Severity, ev.Title, ev.Description,
		ev.RawData, ev.Status, ev.Confidence, ev.Timestamp,
	); err != nil {
		return s.fail(ctx, "save evidence", err)
	}
	return nil
}

func (s *Storage) SaveEvent(ctx context.Context, event *models.Event) error {
	db, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO events (id, kind, severity, title, description, agent_id, ts, status, confidence, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id)
		DO UPDATE SET status = EXCLUDED.status
	`
	if _, err := db.ExecContext(ctx, query,
		event.ID, event.Type, event.Severity, event.Title, event.Description,
		nullIfEmpty(event.AgentID), event.Timestamp, event.Status, event.Confidence, event.Details,
	); err != nil {
		return s.fail(ctx, "save event", err)
	}
	return nil
}

func (s *Storage) SaveSystemHealth(ctx context.Context, sample *models.SystemHealthSample) error {
	db, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO system_health (component, status, cpu, memory, disk, network, uptime_seconds, last_check)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (component)
		DO UPDATE SET status = EXCLUDED.status, cpu = EXCLUDED.cpu, memory = EXCLUDED.memory,
			disk = EXCLUDED.disk, network = EXCLUDED.network,
			uptime_seconds = EXCLUDED.uptime_seconds, last_check = EXCLUDED.last_check
	`
	if _, err := db.ExecContext(ctx, query,
		sample.Component, sample.Status, sample.CPU, sample.Memory,
		sample.Disk, sample.Network, sample.UptimeSeconds, sample.LastCheck,
	); err != nil {
		return s.fail(ctx, "save system health", err)
	}
	return nil
}

// HealthCheck pings the store. This is the only place the degrade-to-
// available policy becomes visible to operators.
func (s *Storage) HealthCheck(ctx context.Context) models.DatabaseHealth {
	db, err := s.acquire(ctx)
	if err != nil {
		return models.DatabaseHealth{Status: "unavailable", Detail: err.Error()}
	}
	if err := db.PingContext(ctx); err != nil {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		return models.DatabaseHealth{Status: "unavailable", Detail: err.Error()}
	}
	return models.DatabaseHealth{Status: models.HealthHealthy}
}

// Reset truncates every table. Administrative use only.
func (s *Storage) Reset(ctx context.Context) error {
	db, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	query := `TRUNCATE events, threats, evidences, agents, system_health`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return s.fail(ctx, "reset", err)
	}
	log.Println("INFO Database reset to clean state")
	return nil
}

func (s *Storage) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
		s.connected = false
	}
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
