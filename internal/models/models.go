package models

import "time"

// Agent statuses.
const (
	AgentActive  = "active"
	AgentWarning = "warning"
	AgentOffline = "offline"
)

// Finding lifecycle statuses.
const (
	ThreatActive = "active"
	EvidenceOpen = "open"
	Acknowledged = "acknowledged"
	Resolved     = "resolved"
)

// Component health statuses.
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Severity levels for threats and evidence.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Agent rank bounds. Rank is a coarse trust/performance score.
const (
	RankMin = 0
	RankMax = 4
)

// Agent is the hub's summary state for one reporting endpoint.
// Field names match the frontend contract (lastSeen, ipAddress, osType).
type Agent struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Hostname  string    `json:"hostname" db:"hostname"`
	Status    string    `json:"status" db:"status"`
	Rank      int       `json:"rank" db:"rank"`
	CPU       float64   `json:"cpu" db:"cpu"`
	Memory    float64   `json:"memory" db:"memory"`
	LastSeen  time.Time `json:"lastSeen" db:"last_seen"`
	Threats   int       `json:"threats" db:"threats"`
	IPAddress string    `json:"ipAddress" db:"ip_address"`
	OSType    string    `json:"osType" db:"os_type"`
}

// MetricSample is one resource report from an agent, held in a bounded
// per-agent ring of the most recent samples.
type MetricSample struct {
	AgentID   string    `json:"agent_id" db:"agent_id"`
	CPU       float64   `json:"cpu" db:"cpu"`
	Memory    float64   `json:"memory" db:"memory"`
	Disk      float64   `json:"disk" db:"disk"`
	Network   float64   `json:"network" db:"network"`
	Processes int       `json:"processes" db:"processes"`
	Timestamp time.Time `json:"timestamp" db:"ts"`
}

// AgentInfo is the agent snapshot captured on a threat at creation time.
// It is immutable afterwards even if the agent record changes.
type AgentInfo struct {
	Hostname  string `json:"hostname"`
	OSType    string `json:"os_type"`
	IPAddress string `json:"ip_address"`
}

// Threat is a discrete security finding.
type Threat struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Type        string     `json:"type" db:"type"`
	Severity    string     `json:"severity" db:"severity"`
	Description string     `json:"description" db:"description"`
	Status      string     `json:"status" db:"status"`
	DetectedAt  time.Time  `json:"detected_at" db:"detected_at"`
	AgentID     string     `json:"agent_id,omitempty" db:"agent_id"`
	AgentInfo   *AgentInfo `json:"agent_info,omitempty" db:"-"`
}

// Evidence is supporting forensic detail for a finding.
type Evidence struct {
	ID          string    `json:"id" db:"id"`
	AgentID     string    `json:"agent_id" db:"agent_id"`
	Type        string    `json:"type" db:"type"`
	Severity    string    `json:"severity" db:"severity"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	RawData     Document  `json:"raw_data" db:"raw_data"`
	Status      string    `json:"status" db:"status"`
	Confidence  float64   `json:"confidence" db:"confidence"`
	Timestamp   time.Time `json:"timestamp" db:"ts"`
}

// Event is the unified read-only timeline projection over threats and
// evidence. ID carries the composite form ("threat-<id>" / "evidence-<id>")
// used at the HTTP boundary; Seq is the insertion sequence that breaks
// timestamp ties and is not serialized.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AgentID     string    `json:"agent_id"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Confidence  float64   `json:"confidence"`
	Details     Document  `json:"details"`
	Seq         int       `json:"-"`
}

// SystemHealthSample is the live health row for one hub component.
// Writes are upserts keyed by component name.
type SystemHealthSample struct {
	Component     string    `json:"component" db:"component"`
	Status        string    `json:"status" db:"status"`
	CPU           float64   `json:"cpu" db:"cpu"`
	Memory        float64   `json:"memory" db:"memory"`
	Disk          float64   `json:"disk" db:"disk"`
	Network       float64   `json:"network" db:"network"`
	UptimeSeconds int64     `json:"uptime_seconds" db:"uptime_seconds"`
	LastCheck     time.Time `json:"last_check" db:"last_check"`
}

// DatabaseHealth is the durable store's health check result.
type DatabaseHealth struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// AgentNetwork is one agent's slice of the derived network snapshot.
type AgentNetwork struct {
	AgentID   string  `json:"agent_id"`
	Hostname  string  `json:"hostname"`
	Network   float64 `json:"network"`
	Processes int     `json:"processes"`
}

// NetworkSnapshot is the on-read aggregation served by /network-metrics.
type NetworkSnapshot struct {
	Timestamp       time.Time      `json:"timestamp"`
	TotalThroughput float64        `json:"total_throughput"`
	Agents          []AgentNetwork `json:"agents"`
}
