// Package event defines the domain events emitted while form definitions
// are saved and authored.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ref points at one entity an event concerns.
type Ref struct {
	Kind string `json:"kind"` // "definition", "item"
	ID   string `json:"id"`
	Role string `json:"role"` // "subject", "context", "related"
}

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string          `json:"id"`
	EventType        string          `json:"eventType"`
	OccurredAt       time.Time       `json:"occurredAt"`
	DefinitionID     string          `json:"definitionId"`
	AffectedEntities []Ref           `json:"affectedEntities"`
	Summary          string          `json:"summary"`
	Category         string          `json:"category"` // "definition", "item"
	Weight           string          `json:"weight"`   // "major", "minor", "info"
	Polarity         string          `json:"polarity"` // "positive", "negative", "neutral"
	Payload          json.RawMessage `json:"payload"`
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func definitionRef(id string) Ref {
	return Ref{Kind: "definition", ID: id, Role: "context"}
}

func itemRef(linkID, role string) Ref {
	return Ref{Kind: "item", ID: linkID, Role: role}
}

// ── Definition events ────────────────────────────────────────────────────────

// DefinitionSavedPayload carries event-specific data for DefinitionSaved.
type DefinitionSavedPayload struct {
	DefinitionID string `json:"definition_id"`
	Title        string `json:"title"`
	ItemCount    int    `json:"item_count"`
	Created      bool   `json:"created"`
}

func NewDefinitionSaved(p DefinitionSavedPayload) DomainEvent {
	verb := "updated"
	if p.Created {
		verb = "created"
	}
	return DomainEvent{
		ID:               newID(),
		EventType:        "definition_saved",
		OccurredAt:       time.Now(),
		DefinitionID:     p.DefinitionID,
		AffectedEntities: []Ref{{Kind: "definition", ID: p.DefinitionID, Role: "subject"}},
		Summary:          fmt.Sprintf("Definition %s %s with %d items", short(p.DefinitionID), verb, p.ItemCount),
		Category:         "definition",
		Weight:           "major",
		Polarity:         "positive",
		Payload:          mustJSON(p),
	}
}

// DefinitionDeletedPayload carries event-specific data for DefinitionDeleted.
type DefinitionDeletedPayload struct {
	DefinitionID string `json:"definition_id"`
}

func NewDefinitionDeleted(p DefinitionDeletedPayload) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        "definition_deleted",
		OccurredAt:       time.Now(),
		DefinitionID:     p.DefinitionID,
		AffectedEntities: []Ref{{Kind: "definition", ID: p.DefinitionID, Role: "subject"}},
		Summary:          fmt.Sprintf("Definition %s deleted", short(p.DefinitionID)),
		Category:         "definition",
		Weight:           "major",
		Polarity:         "neutral",
		Payload:          mustJSON(p),
	}
}

// ── Item events ──────────────────────────────────────────────────────────────

// ItemDeletedPayload carries event-specific data for ItemDeleted.
type ItemDeletedPayload struct {
	DefinitionID string   `json:"definition_id"`
	LinkID       string   `json:"link_id"`
	Removed      []string `json:"removed"` // the item and its descendants
	Revision     int64    `json:"revision"`
}

func NewItemDeleted(p ItemDeletedPayload) DomainEvent {
	refs := []Ref{definitionRef(p.DefinitionID), itemRef(p.LinkID, "subject")}
	for _, id := range p.Removed {
		if id != p.LinkID {
			refs = append(refs, itemRef(id, "related"))
		}
	}
	return DomainEvent{
		ID:               newID(),
		EventType:        "item_deleted",
		OccurredAt:       time.Now(),
		DefinitionID:     p.DefinitionID,
		AffectedEntities: refs,
		Summary:          fmt.Sprintf("Item %s deleted (%d removed)", p.LinkID, len(p.Removed)),
		Category:         "item",
		Weight:           "minor",
		Polarity:         "neutral",
		Payload:          mustJSON(p),
	}
}

// ItemDeleteBlockedPayload carries event-specific data for ItemDeleteBlocked.
// Blockers maps a dependency kind to the linkIds holding a rule on the item.
type ItemDeleteBlockedPayload struct {
	DefinitionID string              `json:"definition_id"`
	LinkID       string              `json:"link_id"`
	Blockers     map[string][]string `json:"blockers"`
}

func NewItemDeleteBlocked(p ItemDeleteBlockedPayload) DomainEvent {
	refs := []Ref{definitionRef(p.DefinitionID), itemRef(p.LinkID, "subject")}
	n := 0
	for _, ids := range p.Blockers {
		for _, id := range ids {
			refs = append(refs, itemRef(id, "related"))
			n++
		}
	}
	return DomainEvent{
		ID:               newID(),
		EventType:        "item_delete_blocked",
		OccurredAt:       time.Now(),
		DefinitionID:     p.DefinitionID,
		AffectedEntities: refs,
		Summary:          fmt.Sprintf("Delete of %s blocked by %d rule(s)", p.LinkID, n),
		Category:         "item",
		Weight:           "info",
		Polarity:         "negative",
		Payload:          mustJSON(p),
	}
}

// ItemRenamedPayload carries event-specific data for ItemRenamed.
type ItemRenamedPayload struct {
	DefinitionID string `json:"definition_id"`
	From         string `json:"from"`
	To           string `json:"to"`
	Revision     int64  `json:"revision"`
}

func NewItemRenamed(p ItemRenamedPayload) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        "item_renamed",
		OccurredAt:       time.Now(),
		DefinitionID:     p.DefinitionID,
		AffectedEntities: []Ref{definitionRef(p.DefinitionID), itemRef(p.To, "subject")},
		Summary:          fmt.Sprintf("Item %s renamed to %s", p.From, p.To),
		Category:         "item",
		Weight:           "minor",
		Polarity:         "neutral",
		Payload:          mustJSON(p),
	}
}

// ItemInsertedPayload carries event-specific data for ItemInserted.
type ItemInsertedPayload struct {
	DefinitionID string `json:"definition_id"`
	LinkID       string `json:"link_id"`
	Parent       string `json:"parent,omitempty"` // empty for the root
	Index        int    `json:"index"`
	Revision     int64  `json:"revision"`
}

func NewItemInserted(p ItemInsertedPayload) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        "item_inserted",
		OccurredAt:       time.Now(),
		DefinitionID:     p.DefinitionID,
		AffectedEntities: []Ref{definitionRef(p.DefinitionID), itemRef(p.LinkID, "subject")},
		Summary:          fmt.Sprintf("Item %s inserted", p.LinkID),
		Category:         "item",
		Weight:           "minor",
		Polarity:         "positive",
		Payload:          mustJSON(p),
	}
}

// ItemMovedPayload carries event-specific data for ItemMoved.
type ItemMovedPayload struct {
	DefinitionID string `json:"definition_id"`
	LinkID       string `json:"link_id"`
	Parent       string `json:"parent,omitempty"`
	Index        int    `json:"index"`
	Revision     int64  `json:"revision"`
}

func NewItemMoved(p ItemMovedPayload) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        "item_moved",
		OccurredAt:       time.Now(),
		DefinitionID:     p.DefinitionID,
		AffectedEntities: []Ref{definitionRef(p.DefinitionID), itemRef(p.LinkID, "subject")},
		Summary:          fmt.Sprintf("Item %s moved", p.LinkID),
		Category:         "item",
		Weight:           "info",
		Polarity:         "neutral",
		Payload:          mustJSON(p),
	}
}
