// Package events provides event bus abstractions for fanning out workflow
// lifecycle and audit notifications to external subscribers.
package events

import (
	"encoding/json"
	"time"

	"context"
)

// EventType identifies the kind of domain event being published.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow.started"
	EventWorkflowCompleted EventType = "workflow.completed"
	EventWorkflowFailed    EventType = "workflow.failed"
	EventDocumentCreated   EventType = "document.created"
	EventDocumentUpdated   EventType = "document.updated"
	EventDocumentDeleted   EventType = "document.deleted"
	EventAuditAppended     EventType = "audit.appended"
)

// Event is the envelope published onto the event bus.
type Event struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	TenantID    string          `json:"tenantId"`
	AggregateID string          `json:"aggregateId"`
	Version     int             `json:"version"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Marshal serializes the event to JSON.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal deserializes an event from JSON.
func Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Handler processes a single event delivered to a subscriber.
type Handler func(ctx context.Context, event *Event) error

// EventBus publishes and subscribes to domain events.
type EventBus interface {
	Publish(ctx context.Context, event *Event) error
	PublishBatch(ctx context.Context, events []*Event) error
	Subscribe(ctx context.Context, eventTypes []EventType, handler Handler) error
	Unsubscribe() error
	Close() error
}
