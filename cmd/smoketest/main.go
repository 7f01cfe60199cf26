// Smoke test against a running hub. Walks the full agent lifecycle:
// register, report metrics, raise a threat, file evidence, read the event
// feed and acknowledge. Exits nonzero on the first failure.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
)

var baseURL string

func main() {
	flag.StringVar(&baseURL, "url", "http://localhost:8000", "hub base URL")
	flag.Parse()

	fmt.Println("=== Nerve Center Smoke Test ===")

	// 1. Service banner
	fmt.Println("1. Checking service...")
	var banner map[string]any
	getJSON("/", &banner)
	fmt.Printf("✓ Service up: %v\n", banner["message"])

	// 2. Register an agent
	fmt.Println("2. Registering agent...")
	var reg struct {
		Success bool   `json:"success"`
		AgentID string `json:"agent_id"`
	}
	postJSON("/agents/register", map[string]any{
		"id": "smoke-agent", "hostname": "smoke-host", "os_type": "linux",
	}, &reg)
	if !reg.Success {
		log.Fatal("agent registration reported failure")
	}
	fmt.Printf("✓ Agent registered: %s\n", reg.AgentID)

	// 3. Report metrics
	fmt.Println("3. Reporting metrics...")
	var metricsResp struct {
		Success bool `json:"success"`
	}
	postJSON("/agents/smoke-agent/metrics", map[string]any{
		"cpu": 95.0, "memory": 60.0, "disk": 30.0, "network": 12.5, "processes": 120,
	}, &metricsResp)
	if !metricsResp.Success {
		log.Fatal("metrics ingestion reported failure")
	}
	fmt.Println("✓ Metrics accepted")

	// 4. Raise a threat
	fmt.Println("4. Raising threat...")
	var threat struct {
		Success   bool   `json:"success"`
		ThreatID  string `json:"threat_id"`
		EventID   string `json:"event_id"`
		SavedToDB bool   `json:"saved_to_db"`
	}
	postJSON("/threats", map[string]any{
		"agent_id": "smoke-agent", "type": "cpu_anomaly",
		"severity": "high", "name": "Smoke test threat",
	}, &threat)
	if !threat.Success {
		log.Fatal("threat creation reported failure")
	}
	fmt.Printf("✓ Threat created: %s (durable: %v)\n", threat.ThreatID, threat.SavedToDB)

	// 5. File evidence
	fmt.Println("5. Filing evidence...")
	var evidence struct {
		Success bool   `json:"success"`
		EventID string `json:"event_id"`
	}
	postJSON("/evidence", map[string]any{
		"agent_id": "smoke-agent", "type": "process_anomaly", "severity": "medium",
		"title": "Smoke test evidence", "description": "generated by smoke test",
	}, &evidence)
	if !evidence.Success {
		log.Fatal("evidence creation reported failure")
	}
	fmt.Printf("✓ Evidence filed: %s\n", evidence.EventID)

	// 6. Read the event feed
	fmt.Println("6. Reading event feed...")
	var events []map[string]any
	getJSON("/events", &events)
	if len(events) < 2 {
		log.Fatalf("expected at least 2 events, got %d", len(events))
	}
	fmt.Printf("✓ Event feed has %d events\n", len(events))

	// 7. Acknowledge the threat
	fmt.Println("7. Acknowledging threat...")
	var ack struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	postJSON("/events/"+threat.EventID+"/acknowledge", nil, &ack)
	if !ack.Success || ack.Data.Status != "acknowledged" {
		log.Fatalf("acknowledge failed: success=%v status=%s", ack.Success, ack.Data.Status)
	}
	fmt.Println("✓ Threat acknowledged")

	// 8. Health check
	fmt.Println("8. Checking health...")
	var health map[string]any
	getJSON("/health", &health)
	fmt.Printf("✓ Health: %v (database: %v)\n", health["status"], health["database"])

	fmt.Println("=== All checks passed ===")
}

func getJSON(path string, out any) {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		log.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("GET %s: decode: %v", path, err)
	}
}

func postJSON(path string, body any, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("POST %s: encode: %v", path, err)
		}
	}
	resp, err := http.Post(baseURL+path, "application/json", &buf)
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("POST %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("POST %s: decode: %v", path, err)
	}
}
