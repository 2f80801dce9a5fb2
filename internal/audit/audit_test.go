package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySinkRecordsEvents(t *testing.T) {
	sink := NewMemorySink()

	e := NewEvent("run-1", MigrationStarted)
	require.NoError(t, sink.Log(context.Background(), e))

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, MigrationStarted, events[0].Type)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestEmitterFansOutToSubscribers(t *testing.T) {
	sink := NewMemorySink()
	emitter := NewEmitter(sink)

	sub := emitter.Subscribe()
	require.NoError(t, emitter.Emit(context.Background(), NewEvent("run-2", TableMigrationCompleted)))

	got := <-sub
	assert.Equal(t, TableMigrationCompleted, got.Type)
	assert.Len(t, sink.Events(), 1)

	emitter.Close()
	_, open := <-sub
	assert.False(t, open)
}

func TestEmitterWithoutSink(t *testing.T) {
	emitter := NewEmitter(nil)
	assert.NoError(t, emitter.Emit(context.Background(), NewEvent("run-3", MigrationCompleted)))
}
