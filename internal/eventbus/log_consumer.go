package eventbus

import (
	"context"
	"log"

	"github.com/matthewbaird/caseforms/internal/event"
)

// LogConsumer logs all domain events for observability.
type LogConsumer struct {
	logger *log.Logger
}

func NewLogConsumer(l *log.Logger) *LogConsumer {
	if l == nil {
		l = log.Default()
	}
	return &LogConsumer{logger: l}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	entities := make([]string, len(evt.AffectedEntities))
	for i, ref := range evt.AffectedEntities {
		entities[i] = ref.Kind + ":" + ref.ID
	}
	c.logger.Printf("event: %s [%s/%s] %s entities=%v",
		evt.EventType, evt.Category, evt.Weight, evt.Summary, entities)
	return nil
}
