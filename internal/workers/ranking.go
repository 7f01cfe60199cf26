package workers

import (
	"context"
	"log"
	"time"

	"nervecenter-backend/internal/hub"
	"nervecenter-backend/internal/models"
)

// PromotionPolicy decides whether an agent earns a rank promotion this
// cycle. A nil policy makes the cycle observe-only.
type PromotionPolicy func(agent models.Agent) bool

// DefaultPromotionPolicy promotes active agents that have detected threats
// while keeping a high performance score (100 minus cpu load).
func DefaultPromotionPolicy(agent models.Agent) bool {
	performance := 100 - agent.CPU
	return agent.Status == models.AgentActive && agent.Threats > 0 && performance > 80
}

// StartRankingCycle periodically re-evaluates agent ranks against policy.
func StartRankingCycle(ctx context.Context, h *hub.Hub, interval time.Duration, policy PromotionPolicy) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runRankingCycle(ctx, h, policy)
			}
		}
	}()
	log.Println("INFO Ranking cycle started")
}

func runRankingCycle(ctx context.Context, h *hub.Hub, policy PromotionPolicy) {
	if policy == nil {
		return
	}
	for _, agent := range h.ListAgents() {
		if agent.Rank >= models.RankMax {
			continue
		}
		if policy(agent) {
			h.PromoteAgent(ctx, agent.ID)
		}
	}
}
