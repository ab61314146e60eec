package authoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/matthewbaird/caseforms/internal/depindex"
	"github.com/matthewbaird/caseforms/internal/event"
	"github.com/matthewbaird/caseforms/internal/expr"
	"github.com/matthewbaird/caseforms/internal/form"
	"github.com/matthewbaird/caseforms/internal/integrity"
)

// State is a step of the delete flow.
type State int

const (
	Idle State = iota
	Checking
	Blocked
	Allowed
	Deleted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case Blocked:
		return "blocked"
	case Allowed:
		return "allowed"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrNotBlocked = errors.New("no blocked delete to dismiss")
	ErrBusy       = errors.New("a delete is waiting to be dismissed")
)

// Snapshot is one committed revision of the definition with the index built
// from it. Snapshots are shared between goroutines and must not be mutated.
type Snapshot struct {
	Definition *form.Definition
	Index      *depindex.Index
	Revision   int64
}

// CommitFunc is called with each new snapshot before it becomes visible.
// An error aborts the edit.
type CommitFunc func(ctx context.Context, snap *Snapshot) error

// Session owns the working copy of one definition.
type Session struct {
	mu       sync.Mutex
	state    State
	pending  *integrity.Report
	snap     atomic.Pointer[Snapshot]
	rebuilds atomic.Int64
	watchers map[int]func(*Snapshot)
	nextW    int

	reg        expr.Registry
	pub        event.Publisher
	commit     CommitFunc
	transition func(from, to State)
	logger     *log.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithFunctions sets the registry expressions are checked against.
func WithFunctions(reg expr.Registry) Option {
	return func(s *Session) { s.reg = reg }
}

// WithPublisher sends item events to p after each edit or blocked delete.
func WithPublisher(p event.Publisher) Option {
	return func(s *Session) { s.pub = p }
}

// WithCommit persists each snapshot before it is published.
func WithCommit(fn CommitFunc) Option {
	return func(s *Session) { s.commit = fn }
}

// WithTransitionHook observes every delete-flow state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(s *Session) { s.transition = fn }
}

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// NewSession validates def and builds its first snapshot. def is copied;
// later changes to it are not seen by the session.
func NewSession(def *form.Definition, opts ...Option) (*Session, error) {
	s := &Session{
		reg:      expr.Builtins(),
		logger:   log.Default(),
		watchers: make(map[int]func(*Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	cp := def.Clone()
	idx, err := Validate(cp, s.reg)
	if err != nil {
		return nil, err
	}
	s.snap.Store(&Snapshot{Definition: cp, Index: idx, Revision: 1})
	return s, nil
}

// Snapshot returns the latest committed snapshot without locking.
func (s *Session) Snapshot() *Snapshot {
	return s.snap.Load()
}

// State returns the current delete-flow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the report of a blocked delete, if any.
func (s *Session) Pending() *integrity.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Rebuilds counts the index rebuilds committed since the session opened.
func (s *Session) Rebuilds() int64 {
	return s.rebuilds.Load()
}

// Watch registers fn to be called with every new snapshot, and with nil
// once the session is closed. fn runs while the session is locked and must
// not block or call back into the session. The returned func unregisters it.
func (s *Session) Watch(fn func(*Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextW
	s.nextW++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.watchers {
		w(nil)
		delete(s.watchers, id)
	}
}

func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	if s.transition != nil && from != to {
		s.transition(from, to)
	}
}

func (s *Session) publish(ctx context.Context, evt event.DomainEvent) {
	if s.pub != nil {
		s.pub.Publish(ctx, evt)
	}
}

// RequestDelete runs the delete flow for linkID. When any rule outside the
// item's subtree references the item or a descendant, the session moves to
// Blocked and returns the report together with an *integrity.Violation;
// the author must Dismiss it before the next delete. Otherwise the subtree
// is removed, the index is rebuilt once and the session returns to Idle.
func (s *Session) RequestDelete(ctx context.Context, linkID string) (*integrity.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Blocked {
		return s.pending, ErrBusy
	}

	s.setState(Checking)
	cur := s.snap.Load()
	item := cur.Index.Item(linkID)
	if item == nil {
		s.setState(Idle)
		return nil, fmt.Errorf("delete %q: %w", linkID, form.ErrItemNotFound)
	}
	decision := integrity.CanDeleteTree(item, cur.Index)
	report := integrity.NewReport(decision, cur.Index)
	if !decision.Allowed {
		s.pending = report
		s.setState(Blocked)
		s.publish(ctx, event.NewItemDeleteBlocked(event.ItemDeleteBlockedPayload{
			DefinitionID: cur.Definition.ID,
			LinkID:       linkID,
			Blockers:     blockerIDs(decision.Blockers),
		}))
		return report, decision.Err()
	}

	s.setState(Allowed)
	var removed []string
	next, err := s.edit(ctx, func(def *form.Definition) error {
		it, err := def.Remove(linkID)
		if err != nil {
			return err
		}
		form.Walk([]*form.Item{it}, func(d *form.Item, _ []*form.Item) bool {
			removed = append(removed, d.LinkID)
			return true
		})
		return nil
	})
	if err != nil {
		s.setState(Idle)
		return report, fmt.Errorf("delete %q: %w", linkID, err)
	}
	s.setState(Deleted)
	s.publish(ctx, event.NewItemDeleted(event.ItemDeletedPayload{
		DefinitionID: next.Definition.ID,
		LinkID:       linkID,
		Removed:      removed,
		Revision:     next.Revision,
	}))
	s.setState(Idle)
	return report, nil
}

// Dismiss acknowledges a blocked delete and returns the session to Idle.
func (s *Session) Dismiss() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Blocked {
		return ErrNotBlocked
	}
	s.pending = nil
	s.setState(Idle)
	return nil
}

// Rename changes an item's linkId when nothing references it. A blocked
// rename returns the report and an *integrity.Violation.
func (s *Session) Rename(ctx context.Context, oldLinkID, newLinkID string) (*integrity.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snap.Load()
	item := cur.Index.Item(oldLinkID)
	if item == nil {
		return nil, fmt.Errorf("rename %q: %w", oldLinkID, form.ErrItemNotFound)
	}
	decision := integrity.CanRename(item, cur.Index)
	report := integrity.NewReport(decision, cur.Index)
	if !decision.Allowed {
		return report, decision.Err()
	}
	next, err := s.edit(ctx, func(def *form.Definition) error {
		return def.Rename(oldLinkID, newLinkID)
	})
	if err != nil {
		return report, err
	}
	s.publish(ctx, event.NewItemRenamed(event.ItemRenamedPayload{
		DefinitionID: next.Definition.ID,
		From:         oldLinkID,
		To:           newLinkID,
		Revision:     next.Revision,
	}))
	return report, nil
}

// Insert adds item under parent ("" for the root) at index.
func (s *Session) Insert(ctx context.Context, parent string, index int, item *form.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.edit(ctx, func(def *form.Definition) error {
		return def.Insert(parent, index, item.Clone())
	})
	if err != nil {
		return err
	}
	s.publish(ctx, event.NewItemInserted(event.ItemInsertedPayload{
		DefinitionID: next.Definition.ID,
		LinkID:       item.LinkID,
		Parent:       parent,
		Index:        index,
		Revision:     next.Revision,
	}))
	return nil
}

// Move relocates linkID under parent ("" for the root) at index.
func (s *Session) Move(ctx context.Context, linkID, parent string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.edit(ctx, func(def *form.Definition) error {
		return def.Move(linkID, parent, index)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, event.NewItemMoved(event.ItemMovedPayload{
		DefinitionID: next.Definition.ID,
		LinkID:       linkID,
		Parent:       parent,
		Index:        index,
		Revision:     next.Revision,
	}))
	return nil
}

// Replace swaps in a definition saved elsewhere. It is validated and
// indexed like an edit but not passed to the commit hook. A definition
// equal to the current one leaves the snapshot as it is.
func (s *Session) Replace(def *form.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reflect.DeepEqual(s.snap.Load().Definition, def) {
		return nil
	}
	cp := def.Clone()
	idx, err := Validate(cp, s.reg)
	if err != nil {
		return err
	}
	s.store(&Snapshot{Definition: cp, Index: idx, Revision: s.snap.Load().Revision + 1})
	return nil
}

// edit applies fn to a copy of the current definition, validates it, builds
// the index once and commits. The caller holds s.mu.
func (s *Session) edit(ctx context.Context, fn func(def *form.Definition) error) (*Snapshot, error) {
	cur := s.snap.Load()
	def := cur.Definition.Clone()
	if err := fn(def); err != nil {
		return nil, err
	}
	idx, err := Validate(def, s.reg)
	if err != nil {
		return nil, err
	}
	next := &Snapshot{Definition: def, Index: idx, Revision: cur.Revision + 1}
	if s.commit != nil {
		if err := s.commit(ctx, next); err != nil {
			return nil, fmt.Errorf("commit revision %d: %w", next.Revision, err)
		}
	}
	s.store(next)
	return next, nil
}

func (s *Session) store(next *Snapshot) {
	s.snap.Store(next)
	s.rebuilds.Add(1)
	s.logger.Printf("authoring: %s revision %d (%d items)", next.Definition.ID, next.Revision, len(next.Index.LinkIDs()))
	for _, w := range s.watchers {
		w(next)
	}
}

func blockerIDs(d depindex.Dependents) map[string][]string {
	out := make(map[string][]string)
	for _, k := range depindex.Kinds {
		for _, it := range d.Of(k) {
			out[k.String()] = append(out[k.String()], it.LinkID)
		}
	}
	return out
}
