package event

import (
	"context"
	"log"
)

// Recorder persists domain events.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// Log is the append-only event history a LogRecorder writes to.
type Log interface {
	AppendEvent(ctx context.Context, evt DomainEvent) error
}

// LogRecorder implements Recorder by appending to a Log. If a Publisher
// is set, the event is also published after the append succeeds.
type LogRecorder struct {
	log Log
	bus Publisher
}

// NewLogRecorder creates a LogRecorder backed by l.
func NewLogRecorder(l Log) *LogRecorder {
	return &LogRecorder{log: l}
}

// SetPublisher attaches an event bus. Events are published after writes.
func (r *LogRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Record appends evt and publishes it.
func (r *LogRecorder) Record(ctx context.Context, evt DomainEvent) error {
	if err := r.log.AppendEvent(ctx, evt); err != nil {
		return err
	}
	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}

// Publish records evt and logs a failure. It lets a LogRecorder stand in
// wherever a Publisher is expected.
func (r *LogRecorder) Publish(ctx context.Context, evt DomainEvent) {
	if err := r.Record(ctx, evt); err != nil {
		log.Printf("event recording failed: %v", err)
	}
}
