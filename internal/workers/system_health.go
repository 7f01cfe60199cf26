// Package workers hosts the hub's background cycles: the system health
// sampler, the heartbeat reconciler and the agent ranking pass. Each cycle
// runs on its own ticker and exits when the context is cancelled.
package workers

import (
	"context"
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"nervecenter-backend/internal/hub"
	"nervecenter-backend/internal/metrics"
	"nervecenter-backend/internal/models"
)

// HealthChecker probes the durable store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) models.DatabaseHealth
}

// StartSystemHealthCycle periodically refreshes component health rows for
// the hub process, the database and the agent network.
func StartSystemHealthCycle(ctx context.Context, h *hub.Hub, checker HealthChecker, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runHealthCycle(ctx, h, checker)
			}
		}
	}()
	log.Println("INFO System health cycle started")
}

func runHealthCycle(ctx context.Context, h *hub.Hub, checker HealthChecker) {
	now := time.Now().UTC()
	uptime := int64(h.Uptime().Seconds())
	total, active, activeThreats := h.Counts()
	metrics.AgentsConnected.Set(float64(active))

	hostCPU, hostMem, hostDisk := hostUsage()

	coordStatus := models.HealthHealthy
	switch {
	case activeThreats > 50:
		coordStatus = models.HealthCritical
	case activeThreats > 20:
		coordStatus = models.HealthWarning
	}
	h.UpsertSystemHealth(ctx, models.SystemHealthSample{
		Component:     "coordination",
		Status:        coordStatus,
		CPU:           hostCPU,
		Memory:        hostMem,
		Disk:          hostDisk,
		Network:       hostThroughput(),
		UptimeSeconds: uptime,
		LastCheck:     now,
	})

	dbStatus := models.HealthCritical
	if checker != nil {
		if dh := checker.HealthCheck(ctx); dh.Status == models.HealthHealthy {
			dbStatus = models.HealthHealthy
		}
	}
	h.UpsertSystemHealth(ctx, models.SystemHealthSample{
		Component:     "database",
		Status:        dbStatus,
		UptimeSeconds: uptime,
		LastCheck:     now,
	})

	snapshot := h.NetworkMetrics()
	avgLoad := snapshot.TotalThroughput / float64(max(total, 1))
	netStatus := models.HealthHealthy
	switch {
	case avgLoad > 90:
		netStatus = models.HealthCritical
	case avgLoad > 75:
		netStatus = models.HealthWarning
	}
	h.UpsertSystemHealth(ctx, models.SystemHealthSample{
		Component:     "network",
		Status:        netStatus,
		Network:       snapshot.TotalThroughput,
		UptimeSeconds: uptime,
		LastCheck:     now,
	})
}

// hostUsage samples the hub host itself. Probe errors degrade to zero
// readings rather than skipping the row.
func hostUsage() (cpuPct, memPct, diskPct float64) {
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		diskPct = du.UsedPercent
	}
	return cpuPct, memPct, diskPct
}

func hostThroughput() float64 {
	counters, err := gnet.IOCounters(false)
	if err != nil || len(counters) == 0 {
		return 0
	}
	// Coarse total in MB since boot; good enough for a health row.
	return float64(counters[0].BytesSent+counters[0].BytesRecv) / (1024 * 1024)
}
