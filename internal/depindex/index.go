// Package depindex builds the reverse-dependency index of a form
// definition: for every referenced name, the items whose rules read it,
// partitioned by rule kind, plus each item's ancestor chain.
package depindex

import (
	"slices"
	"sort"

	"github.com/matthewbaird/caseforms/internal/expr"
	"github.com/matthewbaird/caseforms/internal/form"
)

// Kind partitions dependents by the rule that creates the reference.
type Kind int

const (
	KindAutofill Kind = iota
	KindEnableWhen
	KindBound
)

func (k Kind) String() string {
	switch k {
	case KindAutofill:
		return "autofill"
	case KindEnableWhen:
		return "enableWhen"
	case KindBound:
		return "bound"
	default:
		return "unknown"
	}
}

// Kinds lists every dependency kind in report order.
var Kinds = []Kind{KindAutofill, KindEnableWhen, KindBound}

// Dependents are the items whose rules reference one name, in document
// order and without duplicates.
type Dependents struct {
	Autofill   []*form.Item `json:"autofillDependents"`
	EnableWhen []*form.Item `json:"enableWhenDependents"`
	Bound      []*form.Item `json:"boundDependents"`
}

// Of returns the list for one kind.
func (d Dependents) Of(k Kind) []*form.Item {
	switch k {
	case KindAutofill:
		return d.Autofill
	case KindEnableWhen:
		return d.EnableWhen
	case KindBound:
		return d.Bound
	}
	return nil
}

// Empty reports whether all three lists are empty.
func (d Dependents) Empty() bool {
	return len(d.Autofill) == 0 && len(d.EnableWhen) == 0 && len(d.Bound) == 0
}

// Len is the total number of dependents across kinds.
func (d Dependents) Len() int {
	return len(d.Autofill) + len(d.EnableWhen) + len(d.Bound)
}

func (d *Dependents) add(k Kind, it *form.Item) {
	list := d.listFor(k)
	if n := len(*list); n > 0 && (*list)[n-1] == it {
		return
	}
	*list = append(*list, it)
}

func (d *Dependents) listFor(k Kind) *[]*form.Item {
	switch k {
	case KindEnableWhen:
		return &d.EnableWhen
	case KindBound:
		return &d.Bound
	default:
		return &d.Autofill
	}
}

// Index is the derived dependency graph of one definition. It is
// immutable once built; rebuild it after every structural edit.
type Index struct {
	deps      map[string]*Dependents
	refs      map[string][3][]string // item linkId -> referenced names per kind
	ancestors map[string][]string
	items     map[string]*form.Item
	order     map[string]int
	linkIDs   []string
}

// Build walks def once and returns its dependency index. Expressions that
// fail to parse contribute no references; Validate reports them.
func Build(def *form.Definition) *Index {
	idx := &Index{
		deps:      make(map[string]*Dependents),
		refs:      make(map[string][3][]string),
		ancestors: make(map[string][]string),
		items:     make(map[string]*form.Item),
		order:     make(map[string]int),
	}
	def.Walk(func(it *form.Item, ancestors []*form.Item) bool {
		if _, dup := idx.items[it.LinkID]; dup {
			return true
		}
		idx.order[it.LinkID] = len(idx.linkIDs)
		idx.linkIDs = append(idx.linkIDs, it.LinkID)
		idx.items[it.LinkID] = it

		path := make([]string, len(ancestors))
		for i, a := range ancestors {
			path[i] = a.LinkID
		}
		idx.ancestors[it.LinkID] = path

		refs := References(it)
		idx.refs[it.LinkID] = refs
		for _, k := range Kinds {
			for _, name := range refs[k] {
				d := idx.deps[name]
				if d == nil {
					d = &Dependents{}
					idx.deps[name] = d
				}
				d.add(k, it)
			}
		}
		return true
	})
	return idx
}

// References returns the names an item's rules read, per Kind, sorted and
// de-duplicated. The initial rule counts as an autofill reference.
func References(it *form.Item) [3][]string {
	var sets [3]map[string]struct{}
	for i := range sets {
		sets[i] = make(map[string]struct{})
	}
	add := func(k Kind, names ...string) {
		for _, n := range names {
			if n != "" {
				sets[k][n] = struct{}{}
			}
		}
	}
	addExpr := func(k Kind, text string) {
		if text == "" {
			return
		}
		if vars, err := expr.CollectVariables(text); err == nil {
			add(k, vars...)
		}
	}
	addConditions := func(k Kind, conds []form.Condition) {
		for _, c := range conds {
			add(k, c.Question, c.AnswerLinkID)
			addExpr(k, c.AnswerExpression)
		}
	}

	addConditions(KindEnableWhen, it.EnableWhen)
	for _, r := range it.AutofillValues {
		addExpr(KindAutofill, r.ValueExpression)
		add(KindAutofill, r.ValueLinkID)
		addConditions(KindAutofill, r.AutofillWhen)
	}
	if in := it.Initial; in != nil {
		addExpr(KindAutofill, in.Expression)
		add(KindAutofill, in.LinkID)
	}
	if b := it.Bounds; b != nil {
		for _, bv := range []*form.BoundValue{b.Min, b.Max} {
			if bv != nil {
				addExpr(KindBound, bv.Expression)
				add(KindBound, bv.LinkID)
			}
		}
	}

	var out [3][]string
	for k, set := range sets {
		if len(set) == 0 {
			continue
		}
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		out[k] = names
	}
	return out
}

// Dependents returns the items whose rules reference linkID.
func (idx *Index) Dependents(linkID string) Dependents {
	if d := idx.deps[linkID]; d != nil {
		return *d
	}
	return Dependents{}
}

// Referenced reports whether any rule references linkID.
func (idx *Index) Referenced(linkID string) bool {
	return !idx.Dependents(linkID).Empty()
}

// ReferencedNames returns every name some rule references, sorted.
func (idx *Index) ReferencedNames() []string {
	names := make([]string, 0, len(idx.deps))
	for n := range idx.deps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ReferencesOf returns the names the item's rules read for one kind.
func (idx *Index) ReferencesOf(linkID string, k Kind) []string {
	return idx.refs[linkID][k]
}

// Ancestors returns the ancestor linkIds of linkID from the root.
func (idx *Index) Ancestors(linkID string) []string {
	return idx.ancestors[linkID]
}

// Path returns the ancestor linkIds followed by linkID itself.
func (idx *Index) Path(linkID string) []string {
	if _, ok := idx.items[linkID]; !ok {
		return nil
	}
	return append(slices.Clone(idx.ancestors[linkID]), linkID)
}

// Item returns the indexed item with linkID, or nil.
func (idx *Index) Item(linkID string) *form.Item {
	return idx.items[linkID]
}

// LinkIDs returns every indexed linkId in document order.
func (idx *Index) LinkIDs() []string {
	return slices.Clone(idx.linkIDs)
}

// Affected returns the items that transitively depend on any of the
// changed names, in document order. A changed item is included only when
// it depends on itself through a chain of rules.
func (idx *Index) Affected(changed ...string) []*form.Item {
	seen := make(map[string]bool)
	queue := slices.Clone(changed)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		d := idx.deps[name]
		if d == nil {
			continue
		}
		for _, k := range Kinds {
			for _, it := range d.Of(k) {
				if !seen[it.LinkID] {
					seen[it.LinkID] = true
					queue = append(queue, it.LinkID)
				}
			}
		}
	}
	out := make([]*form.Item, 0, len(seen))
	for _, id := range idx.linkIDs {
		if seen[id] {
			out = append(out, idx.items[id])
		}
	}
	return out
}
