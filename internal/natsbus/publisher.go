// Package natsbus publishes derived events to NATS for downstream
// consumers (dashboards, relays). Publishing is best-effort with the same
// degrade policy as the durable store: a failure is logged by the caller
// and never fails the triggering request.
package natsbus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"nervecenter-backend/internal/models"
)

const subjectPrefix = "hub.events."

// wireEvent is the msgpack envelope put on the bus. Details travel as a
// JSON blob so consumers without the Document type can still decode them.
type wireEvent struct {
	V           int     `msgpack:"v"`
	ID          string  `msgpack:"id"`
	Type        string  `msgpack:"type"`
	Severity    string  `msgpack:"severity"`
	Title       string  `msgpack:"title"`
	Description string  `msgpack:"description"`
	AgentID     string  `msgpack:"agent_id"`
	TS          int64   `msgpack:"ts"`
	Status      string  `msgpack:"status"`
	Confidence  float64 `msgpack:"confidence"`
	Details     []byte  `msgpack:"details"`
}

type Client struct {
	nc *nats.Conn
}

// Connect establishes the NATS connection with unlimited reconnects.
func Connect(url string) (*Client, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(1 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("WARN NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("INFO NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Printf("INFO Connected to NATS at %s", nc.ConnectedUrl())
	return &Client{nc: nc}, nil
}

// PublishEvent pushes one derived event to hub.events.<kind>.
func (c *Client) PublishEvent(event *models.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	payload, err := msgpack.Marshal(wireEvent{
		V:           1,
		ID:          event.ID,
		Type:        event.Type,
		Severity:    event.Severity,
		Title:       event.Title,
		Description: event.Description,
		AgentID:     event.AgentID,
		TS:          event.Timestamp.UnixMilli(),
		Status:      event.Status,
		Confidence:  event.Confidence,
		Details:     details,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return c.nc.Publish(subjectPrefix+event.Type, payload)
}

// Close drains and closes the NATS connection.
func (c *Client) Close() error {
	return c.nc.Drain()
}
