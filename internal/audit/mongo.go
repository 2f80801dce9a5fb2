package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	auditDatabase   = "migration_audit"
	auditCollection = "migration_events"
)

// MongoSink persists audit events to MongoDB so run history survives
// restarts and `migrate status` can report on past runs.
type MongoSink struct {
	client *mongo.Client
}

func NewMongoSink(client *mongo.Client) *MongoSink {
	return &MongoSink{client: client}
}

func (m *MongoSink) Log(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	coll := m.client.Database(auditDatabase).Collection(auditCollection)
	if _, err := coll.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// LatestRun returns the events of the most recently started run in
// chronological order.
func (m *MongoSink) LatestRun(ctx context.Context) ([]Event, error) {
	coll := m.client.Database(auditDatabase).Collection(auditCollection)

	opts := options.FindOne().SetSort(bson.M{"timestamp": -1})
	var last Event
	err := coll.FindOne(ctx, bson.M{"type": MigrationStarted}, opts).Decode(&last)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest run: %w", err)
	}

	cursor, err := coll.Find(ctx, bson.M{"runId": last.RunID},
		options.Find().SetSort(bson.M{"timestamp": 1}))
	if err != nil {
		return nil, fmt.Errorf("load run events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode run events: %w", err)
	}
	return events, nil
}

func (m *MongoSink) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
