// Package audit implements the append-only AuditEvent trail invoked by the
// repository kernel on every mutation, grounded on the teacher's
// audit_logger.go: a buffered, batch-flushing writer plus a before/after
// diffing helper (CompareChanges). The kernel attaches full before/after
// snapshots to each event; it does not call CompareChanges.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

// EventType enumerates the mutation kinds the repository kernel emits.
type EventType string

const (
	EventCreate     EventType = "CREATE"
	EventUpdate     EventType = "UPDATE"
	EventDelete     EventType = "DELETE"
	EventHardDelete EventType = "HARD_DELETE"
)

// Event is the append-only record per spec.md §3.5.
type Event struct {
	EventType    EventType              `bson:"event_type" json:"eventType"`
	ActorUserID  string                 `bson:"actor_user_id" json:"actorUserId"`
	TenantID     string                 `bson:"tenant_id" json:"tenantId"`
	ResourceType string                 `bson:"resource_type" json:"resourceType"`
	ResourceID   string                 `bson:"resource_id" json:"resourceId"`
	Before       map[string]interface{} `bson:"before,omitempty" json:"before,omitempty"`
	After        map[string]interface{} `bson:"after,omitempty" json:"after,omitempty"`
	Reason       string                 `bson:"reason,omitempty" json:"reason,omitempty"`
	Timestamp    time.Time              `bson:"timestamp" json:"timestamp"`
}

// EventBuilder is a fluent constructor for Event, following the teacher's
// AuditEntryBuilder.
type EventBuilder struct {
	event Event
}

// NewEventBuilder starts building an event for the given tenant and type.
func NewEventBuilder(tenantID string, eventType EventType) *EventBuilder {
	return &EventBuilder{event: Event{
		TenantID:  tenantID,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}}
}

func (b *EventBuilder) WithActor(userID string) *EventBuilder {
	b.event.ActorUserID = userID
	return b
}

func (b *EventBuilder) WithResource(resourceType, resourceID string) *EventBuilder {
	b.event.ResourceType = resourceType
	b.event.ResourceID = resourceID
	return b
}

func (b *EventBuilder) WithBefore(before map[string]interface{}) *EventBuilder {
	b.event.Before = before
	return b
}

func (b *EventBuilder) WithAfter(after map[string]interface{}) *EventBuilder {
	b.event.After = after
	return b
}

func (b *EventBuilder) WithReason(reason string) *EventBuilder {
	b.event.Reason = reason
	return b
}

// Build finalizes the event.
func (b *EventBuilder) Build() Event {
	return b.event
}

// CompareChanges diffs old and new by marshaling both to JSON and comparing
// key by key, following the teacher's CompareChanges helper. Keys present
// in old but absent (or changed) in new are reported in oldValues; keys
// present in new that are absent or changed from old are reported in
// newValues. Unchanged keys are omitted from both.
func CompareChanges(old, new interface{}) (oldValues, newValues map[string]interface{}) {
	oldMap := toMap(old)
	newMap := toMap(new)

	oldValues = make(map[string]interface{})
	newValues = make(map[string]interface{})

	for k, ov := range oldMap {
		nv, ok := newMap[k]
		if !ok || !equalJSON(ov, nv) {
			oldValues[k] = ov
		}
	}

	for k, nv := range newMap {
		ov, ok := oldMap[k]
		if !ok || !equalJSON(ov, nv) {
			newValues[k] = nv
		}
	}

	return oldValues, newValues
}

func toMap(v interface{}) map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

func equalJSON(a, b interface{}) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

// Sink persists a batch of events. Implementations write to the
// audit_events collection (or, in tests, to an in-memory slice).
type Sink interface {
	WriteBatch(ctx context.Context, events []Event) error
}
