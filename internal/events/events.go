// Package events publishes fulfillment domain events. Publication is best
// effort from the orchestrator's point of view; durable delivery comes from
// the Postgres outbox and its relay when a database is configured.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderFulfilled         = "order.fulfilled"
	TypeOrderFulfillmentFailed = "order.fulfillment_failed"
)

// Event is the wire shape published to Kafka and stored in the outbox.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	CaseID        string    `json:"case_id"`
	Product       string    `json:"product_type"`
	Jurisdiction  string    `json:"jurisdiction"`
	DocumentCount int       `json:"document_count,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher is implemented by Kafka, Outbox and Memory.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// withDefaults fills the id and timestamp when the caller left them empty.
func withDefaults(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return e
}

// Memory records events in process.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, withDefaults(event))
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
