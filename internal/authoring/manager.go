package authoring

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matthewbaird/caseforms/internal/form"
)

// Store loads and saves definitions for the sessions a Manager opens.
type Store interface {
	Get(ctx context.Context, id string) (*form.Definition, error)
	Save(ctx context.Context, def *form.Definition) (created bool, err error)
}

// Manager keeps one Session per definition id, so HTTP edits and live
// evaluators of the same definition share a tree and index.
type Manager struct {
	store    Store
	opts     []Option
	notFound error

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager opens sessions backed by store. notFound is the error store
// returns for a missing id; sessions for such ids are dropped on Reload.
// Every session is created with opts plus a commit hook that saves to store.
func NewManager(store Store, notFound error, opts ...Option) *Manager {
	return &Manager{
		store:    store,
		opts:     opts,
		notFound: notFound,
		sessions: make(map[string]*Session),
	}
}

// Session returns the open session for id, loading the definition on
// first use.
func (m *Manager) Session(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	def, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	opts := append([]Option{}, m.opts...)
	opts = append(opts, WithCommit(func(ctx context.Context, snap *Snapshot) error {
		_, err := m.store.Save(ctx, snap.Definition)
		return err
	}))
	s, err := NewSession(def, opts...)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}
	m.sessions[id] = s
	return s, nil
}

// Reload refreshes an open session from the store. A definition that no
// longer exists closes its session. Ids without a session are ignored.
func (m *Manager) Reload(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	def, err := m.store.Get(ctx, id)
	if m.notFound != nil && errors.Is(err, m.notFound) {
		m.Forget(id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload %s: %w", id, err)
	}
	return s.Replace(def)
}

// Forget closes the session for id.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
	}
}

// Open reports how many sessions are open.
func (m *Manager) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
