package engine

import (
	"github.com/matthewbaird/caseforms/internal/form"
)

// State is the derived view of a form after one full evaluation pass.
type State struct {
	Items         []*form.Item              `json:"-"`
	Removed       []string                  `json:"removed"`
	Disabled      []string                  `json:"disabled"`
	Enabled       []string                  `json:"enabled"`
	Initial       map[string]any            `json:"initial"`
	Autofill      map[string]any            `json:"autofill"`
	AutofillRules map[string]int            `json:"autofillRules"`
	ReadOnly      []string                  `json:"readOnly"`
	Bounds        map[string]ResolvedBounds `json:"bounds"`
	Answers       map[string]any            `json:"answers"`
	Violations    []Violation               `json:"violations"`
}

// Evaluate runs every pass over in for subject: items that do not concern
// the subject are pruned, initial values fill the answers, the disabled set
// and autofill are computed together until they agree, then bounds and
// answer validation run over the result. A nil subject prunes nothing.
func (e *Engine) Evaluate(in Input, subject *Subject) *State {
	items := form.CloneItems(in.Definition.Items)
	if subject != nil {
		items = ApplyDataCollectedAbout(in.Definition.Items, *subject)
	}
	def := *in.Definition
	def.Items = items
	pass := in
	pass.Definition = &def

	kept := make(Set)
	var order []string
	def.Walk(func(it *form.Item, _ []*form.Item) bool {
		kept.Add(it.LinkID)
		order = append(order, it.LinkID)
		return true
	})

	st := &State{Items: items, Removed: []string{}, Disabled: []string{}, Enabled: []string{}, ReadOnly: []string{}}
	all := make(Set)
	in.Definition.Walk(func(it *form.Item, _ []*form.Item) bool {
		all.Add(it.LinkID)
		if !kept.Has(it.LinkID) {
			st.Removed = append(st.Removed, it.LinkID)
		}
		return true
	})

	answers := make(map[string]any, len(in.Answers))
	for k, v := range in.Answers {
		if all.Has(k) && !kept.Has(k) {
			continue
		}
		answers[k] = v
	}
	pass.Answers = answers

	always := e.InitialValues(pass, form.InitialAlways)
	st.Initial = e.InitialValues(pass, form.InitialIfEmpty)
	for k, v := range always {
		if in.Initialize || Empty(answers[k]) {
			st.Initial[k] = v
		}
	}
	for k, v := range st.Initial {
		answers[k] = v
	}

	// Autofilled values can enable or disable items, which changes what
	// autofill may run. Repeat until the disabled set settles, at most
	// once per item.
	disabled := e.DisabledLinkIDs(pass)
	auto := e.ApplyAutofill(pass, disabled)
	for range len(order) {
		merged := pass
		merged.Answers = auto.Answers
		next := e.DisabledLinkIDs(merged)
		if next.Equal(disabled) {
			break
		}
		disabled = next
		auto = e.ApplyAutofill(pass, disabled)
	}
	st.Autofill = auto.Values
	st.AutofillRules = auto.Rules
	st.Answers = auto.Answers
	pass.Answers = auto.Answers

	st.Bounds = e.Bounds(pass)
	st.Violations = e.validate(pass, disabled, st.Bounds)
	if st.Violations == nil {
		st.Violations = []Violation{}
	}

	for _, id := range order {
		if disabled.Has(id) {
			st.Disabled = append(st.Disabled, id)
		} else {
			st.Enabled = append(st.Enabled, id)
		}
		if auto.ReadOnly.Has(id) {
			st.ReadOnly = append(st.ReadOnly, id)
		}
	}
	return st
}
