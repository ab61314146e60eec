// Package store persists form definitions and the domain events recorded
// against them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/matthewbaird/caseforms/internal/event"
	"github.com/matthewbaird/caseforms/internal/form"
)

var (
	ErrNotFound = errors.New("not found")
	ErrNoID     = errors.New("definition has no id")
)

// Summary describes a stored definition without its items.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Items     int       `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is the definition repository used by the HTTP service.
type Store interface {
	// Save inserts or replaces def by its ID and reports whether it was new.
	Save(ctx context.Context, def *form.Definition) (created bool, err error)
	// Get returns a copy of the stored definition or ErrNotFound.
	Get(ctx context.Context, id string) (*form.Definition, error)
	// List returns every definition, most recently updated first.
	List(ctx context.Context) ([]Summary, error)
	// Delete removes a definition and its events, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// AppendEvent records a domain event.
	AppendEvent(ctx context.Context, evt event.DomainEvent) error
	// Events returns the events of one definition in the order recorded.
	Events(ctx context.Context, definitionID string) ([]event.DomainEvent, error)

	Close() error
}

func countItems(def *form.Definition) int {
	n := 0
	def.Walk(func(*form.Item, []*form.Item) bool {
		n++
		return true
	})
	return n
}

func summarize(def *form.Definition, created, updated time.Time) Summary {
	return Summary{
		ID:        def.ID,
		Title:     def.Title,
		Status:    def.Status,
		Items:     countItems(def),
		CreatedAt: created,
		UpdatedAt: updated,
	}
}
