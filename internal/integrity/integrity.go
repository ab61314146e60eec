// Package integrity decides whether an authoring edit would leave a rule
// pointing at an item that no longer exists, and explains why when it would.
package integrity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matthewbaird/caseforms/internal/depindex"
	"github.com/matthewbaird/caseforms/internal/form"
)

// Action is the edit being checked.
type Action string

const (
	ActionDelete Action = "delete"
	ActionRename Action = "rename"
)

// Decision is the outcome of an integrity check. Allowed is true iff
// Blockers is empty.
type Decision struct {
	LinkID   string              `json:"linkId"`
	Action   Action              `json:"action"`
	Allowed  bool                `json:"allowed"`
	Blockers depindex.Dependents `json:"blockers"`
}

// Err returns a *Violation when the edit is blocked.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &Violation{LinkID: d.LinkID, Action: d.Action, Blockers: d.Blockers}
}

// Violation is returned for an edit that would break a reference. It is
// always blocking; there is no forced path.
type Violation struct {
	LinkID   string
	Action   Action
	Blockers depindex.Dependents
}

func (v *Violation) Error() string {
	var parts []string
	for _, k := range depindex.Kinds {
		if n := len(v.Blockers.Of(k)); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	return fmt.Sprintf("cannot %s %q: referenced by %s rule(s)", v.Action, v.LinkID, strings.Join(parts, ", "))
}

// CanDelete checks whether item may be removed: allowed iff no autofill,
// enableWhen or bound rule references its linkId.
func CanDelete(item *form.Item, idx *depindex.Index) Decision {
	return decide(item.LinkID, ActionDelete, idx.Dependents(item.LinkID))
}

// CanRename has the same contract as CanDelete. References are never
// rewritten, so a referenced item keeps its linkId.
func CanRename(item *form.Item, idx *depindex.Index) Decision {
	return decide(item.LinkID, ActionRename, idx.Dependents(item.LinkID))
}

// CanDeleteTree checks item and every descendant, since removing a group
// removes its subtree. References from inside the subtree do not block.
func CanDeleteTree(item *form.Item, idx *depindex.Index) Decision {
	inside := make(map[string]bool)
	var ids []string
	form.Walk([]*form.Item{item}, func(it *form.Item, _ []*form.Item) bool {
		inside[it.LinkID] = true
		ids = append(ids, it.LinkID)
		return true
	})
	var merged depindex.Dependents
	seen := [3]map[string]bool{{}, {}, {}}
	for _, id := range ids {
		d := idx.Dependents(id)
		for _, k := range depindex.Kinds {
			for _, dep := range d.Of(k) {
				if inside[dep.LinkID] || seen[k][dep.LinkID] {
					continue
				}
				seen[k][dep.LinkID] = true
				switch k {
				case depindex.KindAutofill:
					merged.Autofill = append(merged.Autofill, dep)
				case depindex.KindEnableWhen:
					merged.EnableWhen = append(merged.EnableWhen, dep)
				case depindex.KindBound:
					merged.Bound = append(merged.Bound, dep)
				}
			}
		}
	}
	sortByDocument(&merged, idx)
	return decide(item.LinkID, ActionDelete, merged)
}

func decide(linkID string, action Action, blockers depindex.Dependents) Decision {
	return Decision{
		LinkID:   linkID,
		Action:   action,
		Allowed:  blockers.Empty(),
		Blockers: blockers,
	}
}

func sortByDocument(d *depindex.Dependents, idx *depindex.Index) {
	pos := make(map[string]int)
	for i, id := range idx.LinkIDs() {
		pos[id] = i
	}
	for _, list := range []*[]*form.Item{&d.Autofill, &d.EnableWhen, &d.Bound} {
		items := *list
		sort.SliceStable(items, func(i, j int) bool {
			return pos[items[i].LinkID] < pos[items[j].LinkID]
		})
	}
}
