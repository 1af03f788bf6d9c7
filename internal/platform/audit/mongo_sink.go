package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoSink writes events to the append-only audit_events collection
// (§6.2), following the teacher's PostgresAuditLogger but targeting Mongo
// per the repository kernel's document store.
type MongoSink struct {
	collection *mongo.Collection
}

// NewMongoSink wraps the audit_events collection.
func NewMongoSink(collection *mongo.Collection) *MongoSink {
	return &MongoSink{collection: collection}
}

// WriteBatch inserts events in a single InsertMany call.
func (s *MongoSink) WriteBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, len(events))
	for i, e := range events {
		docs[i] = e
	}

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("inserting audit batch: %w", err)
	}
	return nil
}

var _ Sink = (*MongoSink)(nil)
