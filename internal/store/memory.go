package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/matthewbaird/caseforms/internal/event"
	"github.com/matthewbaird/caseforms/internal/form"
)

type memoryEntry struct {
	def     *form.Definition
	created time.Time
	updated time.Time
}

// Memory is a Store kept in process memory.
type Memory struct {
	mu     sync.RWMutex
	defs   map[string]*memoryEntry
	events map[string][]event.DomainEvent
	now    func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		defs:   make(map[string]*memoryEntry),
		events: make(map[string][]event.DomainEvent),
		now:    time.Now,
	}
}

func (m *Memory) Save(_ context.Context, def *form.Definition) (bool, error) {
	if def.ID == "" {
		return false, ErrNoID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.defs[def.ID]; ok {
		e.def = def.Clone()
		e.updated = now
		return false, nil
	}
	m.defs[def.ID] = &memoryEntry{def: def.Clone(), created: now, updated: now}
	return true, nil
}

func (m *Memory) Get(_ context.Context, id string) (*form.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.defs[id]
	if !ok {
		return nil, fmt.Errorf("definition %s: %w", id, ErrNotFound)
	}
	return e.def.Clone(), nil
}

func (m *Memory) List(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.defs))
	for _, e := range m.defs {
		out = append(out, summarize(e.def, e.created, e.updated))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[id]; !ok {
		return fmt.Errorf("definition %s: %w", id, ErrNotFound)
	}
	delete(m.defs, id)
	delete(m.events, id)
	return nil
}

func (m *Memory) AppendEvent(_ context.Context, evt event.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[evt.DefinitionID] = append(m.events[evt.DefinitionID], evt)
	return nil
}

func (m *Memory) Events(_ context.Context, definitionID string) ([]event.DomainEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]event.DomainEvent{}, m.events[definitionID]...), nil
}

func (m *Memory) Close() error { return nil }
