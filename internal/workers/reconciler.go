package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"nervecenter-backend/internal/cache"
	"nervecenter-backend/internal/hub"
	"nervecenter-backend/internal/models"
)

// StartHeartbeatReconciler periodically marks agents offline when their
// presence key has expired and no report has arrived within offlineAfter.
func StartHeartbeatReconciler(ctx context.Context, h *hub.Hub, presence cache.Client, offlineAfter, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reconcileOnce(ctx, h, presence, offlineAfter)
			}
		}
	}()
	log.Println("INFO Heartbeat reconciler started")
}

func reconcileOnce(ctx context.Context, h *hub.Hub, presence cache.Client, offlineAfter time.Duration) {
	now := time.Now().UTC()
	for _, agent := range h.ListAgents() {
		if agent.Status == models.AgentOffline {
			continue
		}

		seen := agent.LastSeen
		if presence != nil {
			cached, err := presence.LastSeen(agent.ID)
			switch {
			case err == nil:
				seen = cached
			case errors.Is(err, redis.Nil):
				// Key expired; fall back to the in-memory timestamp.
			default:
				log.Printf("WARN Heartbeat reconciler cache error for %s: %v", agent.ID, err)
			}
		}

		if now.Sub(seen) > offlineAfter {
			if h.MarkAgentOffline(ctx, agent.ID) {
				log.Printf("INFO Agent %s marked offline (last seen %s)", agent.ID, seen.Format(time.RFC3339))
			}
		}
	}
}
