package audit

import (
	"context"
	"sync"
)

// Emitter fans lifecycle events out to an audit sink and any number of
// in-process subscribers. Slow subscribers never block the migration;
// their events are dropped instead.
type Emitter struct {
	sink Logger

	mu   sync.Mutex
	subs []chan Event
}

func NewEmitter(sink Logger) *Emitter {
	return &Emitter{sink: sink}
}

// Subscribe returns a buffered channel receiving every event emitted
// after the call.
func (e *Emitter) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

func (e *Emitter) Emit(ctx context.Context, event Event) error {
	e.mu.Lock()
	for _, ch := range e.subs {
		select {
		case ch <- event:
		default:
		}
	}
	e.mu.Unlock()

	if e.sink == nil {
		return nil
	}
	return e.sink.Log(ctx, event)
}

// Close closes all subscriber channels.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		close(ch)
	}
	e.subs = nil
}
