package form

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrDuplicateLink = errors.New("duplicate linkId")
	ErrNotContainer  = errors.New("item cannot contain children")
)

// WalkFunc is called for each item in document order with the chain of
// ancestors from the root. The ancestors slice is only valid during the
// call. Returning false skips the item's children.
type WalkFunc func(item *Item, ancestors []*Item) bool

// Walk visits items depth-first in document order.
func Walk(items []*Item, fn WalkFunc) {
	walk(items, nil, fn)
}

func walk(items []*Item, ancestors []*Item, fn WalkFunc) {
	for _, it := range items {
		if it == nil {
			continue
		}
		if !fn(it, ancestors) {
			continue
		}
		if len(it.Items) > 0 {
			walk(it.Items, append(ancestors, it), fn)
		}
	}
}

// Walk visits every item of the definition in document order.
func (d *Definition) Walk(fn WalkFunc) {
	Walk(d.Items, fn)
}

// Find returns the item with linkID and a copy of its ancestor chain.
func (d *Definition) Find(linkID string) (*Item, []*Item) {
	var (
		found *Item
		path  []*Item
	)
	d.Walk(func(it *Item, ancestors []*Item) bool {
		if found != nil {
			return false
		}
		if it.LinkID == linkID {
			found = it
			path = slices.Clone(ancestors)
			return false
		}
		return true
	})
	return found, path
}

// LinkIDs returns every linkId in document order.
func (d *Definition) LinkIDs() []string {
	var ids []string
	d.Walk(func(it *Item, _ []*Item) bool {
		ids = append(ids, it.LinkID)
		return true
	})
	return ids
}

// Clone returns a deep copy of the definition. Literal values (answers,
// initial values) are shared; they are never mutated in place.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	out := *d
	out.Constants = maps.Clone(d.Constants)
	out.Items = CloneItems(d.Items)
	return &out
}

// CloneItems deep-copies an item list.
func CloneItems(items []*Item) []*Item {
	if items == nil {
		return nil
	}
	out := make([]*Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// Clone deep-copies the item and its subtree.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	out := *it
	out.Items = CloneItems(it.Items)
	out.EnableWhen = slices.Clone(it.EnableWhen)
	if it.AutofillValues != nil {
		out.AutofillValues = make([]AutofillRule, len(it.AutofillValues))
		for i, r := range it.AutofillValues {
			r.AutofillWhen = slices.Clone(r.AutofillWhen)
			out.AutofillValues[i] = r
		}
	}
	if it.Bounds != nil {
		b := *it.Bounds
		if b.Min != nil {
			v := *b.Min
			b.Min = &v
		}
		if b.Max != nil {
			v := *b.Max
			b.Max = &v
		}
		out.Bounds = &b
	}
	if it.Initial != nil {
		in := *it.Initial
		out.Initial = &in
	}
	out.PickListOptions = slices.Clone(it.PickListOptions)
	return &out
}

// ── Structural edits ────────────────────────────────────────────────────────
//
// Edits mutate the definition in place. Callers own rebuilding any derived
// dependency index afterwards.

// siblings returns a pointer to the child list that parentLinkID owns, or
// the root list when parentLinkID is empty.
func (d *Definition) siblings(parentLinkID string) (*[]*Item, error) {
	if parentLinkID == "" {
		return &d.Items, nil
	}
	parent, _ := d.Find(parentLinkID)
	if parent == nil {
		return nil, fmt.Errorf("parent %q: %w", parentLinkID, ErrItemNotFound)
	}
	if !parent.Traits().Children {
		return nil, fmt.Errorf("parent %q (%s): %w", parentLinkID, parent.Kind, ErrNotContainer)
	}
	return &parent.Items, nil
}

// Insert places item under parentLinkID ("" for the root) at index. An
// index outside the child list appends.
func (d *Definition) Insert(parentLinkID string, index int, item *Item) error {
	if item == nil || item.LinkID == "" {
		return errors.New("insert: item requires a linkId")
	}
	existing := make(map[string]bool)
	d.Walk(func(it *Item, _ []*Item) bool {
		existing[it.LinkID] = true
		return true
	})
	var dup string
	Walk([]*Item{item}, func(it *Item, _ []*Item) bool {
		if dup == "" && existing[it.LinkID] {
			dup = it.LinkID
		}
		existing[it.LinkID] = true
		return dup == ""
	})
	if dup != "" {
		return fmt.Errorf("insert %q: %w", dup, ErrDuplicateLink)
	}
	list, err := d.siblings(parentLinkID)
	if err != nil {
		return fmt.Errorf("insert %q: %w", item.LinkID, err)
	}
	if index < 0 || index > len(*list) {
		index = len(*list)
	}
	*list = slices.Insert(*list, index, item)
	return nil
}

// Remove detaches the item with linkID (and its subtree) and returns it.
func (d *Definition) Remove(linkID string) (*Item, error) {
	item, ancestors := d.Find(linkID)
	if item == nil {
		return nil, fmt.Errorf("remove %q: %w", linkID, ErrItemNotFound)
	}
	list := &d.Items
	if len(ancestors) > 0 {
		list = &ancestors[len(ancestors)-1].Items
	}
	i := slices.Index(*list, item)
	*list = slices.Delete(*list, i, i+1)
	return item, nil
}

// Move relocates linkID under newParent ("" for the root) at index.
func (d *Definition) Move(linkID, newParent string, index int) error {
	item, _ := d.Find(linkID)
	if item == nil {
		return fmt.Errorf("move %q: %w", linkID, ErrItemNotFound)
	}
	if newParent != "" {
		if newParent == linkID {
			return fmt.Errorf("move %q: cannot move an item into itself", linkID)
		}
		_, path := d.Find(newParent)
		for _, a := range path {
			if a.LinkID == linkID {
				return fmt.Errorf("move %q: cannot move an item into its own descendant %q", linkID, newParent)
			}
		}
	}
	if _, err := d.siblings(newParent); err != nil {
		return fmt.Errorf("move %q: %w", linkID, err)
	}
	if _, err := d.Remove(linkID); err != nil {
		return err
	}
	list, _ := d.siblings(newParent)
	if index < 0 || index > len(*list) {
		index = len(*list)
	}
	*list = slices.Insert(*list, index, item)
	return nil
}

// Rename changes an item's linkId. References to the old linkId are not
// rewritten; callers check referential integrity first.
func (d *Definition) Rename(oldLinkID, newLinkID string) error {
	if newLinkID == "" {
		return fmt.Errorf("rename %q: new linkId is empty", oldLinkID)
	}
	item, _ := d.Find(oldLinkID)
	if item == nil {
		return fmt.Errorf("rename %q: %w", oldLinkID, ErrItemNotFound)
	}
	if oldLinkID == newLinkID {
		return nil
	}
	if other, _ := d.Find(newLinkID); other != nil {
		return fmt.Errorf("rename %q to %q: %w", oldLinkID, newLinkID, ErrDuplicateLink)
	}
	item.LinkID = newLinkID
	return nil
}

// Tree renders the item hierarchy with box-drawing characters.
//
//	intake
//	├── name [STRING]
//	└── household [GROUP]
//	    └── size [INTEGER]
func (d *Definition) Tree() string {
	var sb strings.Builder
	title := d.Title
	if title == "" {
		title = d.ID
	}
	sb.WriteString(title)
	sb.WriteString("\n")
	buildTree(&sb, d.Items, "")
	return sb.String()
}

func buildTree(sb *strings.Builder, items []*Item, prefix string) {
	for i, it := range items {
		connector, childPrefix := "├── ", "│   "
		if i == len(items)-1 {
			connector, childPrefix = "└── ", "    "
		}
		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(it.LinkID)
		sb.WriteString(" [")
		sb.WriteString(string(it.Kind))
		sb.WriteString("]")
		if it.DataCollectedAbout != AboutNone {
			sb.WriteString(" (")
			sb.WriteString(string(it.DataCollectedAbout))
			sb.WriteString(")")
		}
		sb.WriteString("\n")
		buildTree(sb, it.Items, prefix+childPrefix)
	}
}
