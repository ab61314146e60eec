package eventbus

import (
	"context"

	"github.com/matthewbaird/caseforms/internal/event"
)

// ReloadFunc refreshes whatever is cached for a definition.
type ReloadFunc func(ctx context.Context, definitionID string) error

// ReloadConsumer calls a ReloadFunc whenever a whole definition is saved or
// deleted. Item edits made through an authoring session update that
// session directly and are not reloaded.
type ReloadConsumer struct {
	reload ReloadFunc
}

// NewReloadConsumer creates a consumer that calls fn on structural changes.
func NewReloadConsumer(fn ReloadFunc) *ReloadConsumer {
	return &ReloadConsumer{reload: fn}
}

// Reloads reports whether events of type t replace a whole definition.
func Reloads(t string) bool {
	return t == "definition_saved" || t == "definition_deleted"
}

func (c *ReloadConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	if evt.DefinitionID == "" || !Reloads(evt.EventType) {
		return nil
	}
	return c.reload(ctx, evt.DefinitionID)
}
