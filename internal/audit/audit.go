// Package audit receives migration lifecycle events. The core holds no
// durable state of its own; whatever needs to survive a restart is the
// sink's responsibility.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle transition.
type EventType string

const (
	MigrationStarted        EventType = "MIGRATION_STARTED"
	MigrationCompleted      EventType = "MIGRATION_COMPLETED"
	MigrationFailed         EventType = "MIGRATION_FAILED"
	MigrationRollback       EventType = "MIGRATION_ROLLBACK"
	TableMigrationCompleted EventType = "TABLE_MIGRATION_COMPLETED"
)

// Event is one audit record. Details carries the triggering
// configuration or per-table summary counts.
type Event struct {
	ID        string                 `bson:"_id" json:"id"`
	RunID     string                 `bson:"runId" json:"runId"`
	Type      EventType              `bson:"type" json:"type"`
	Service   string                 `bson:"service,omitempty" json:"service,omitempty"`
	Table     string                 `bson:"table,omitempty" json:"table,omitempty"`
	Details   map[string]interface{} `bson:"details,omitempty" json:"details,omitempty"`
	Timestamp time.Time              `bson:"timestamp" json:"timestamp"`
}

// NewEvent stamps identity and time onto an event.
func NewEvent(runID string, typ EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		RunID:     runID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
}

// Logger is the audit collaborator consumed by the orchestrator.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// MemorySink keeps events in process memory. Used in tests and as the
// CLI fallback when no audit store is configured.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Log(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything logged so far.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
