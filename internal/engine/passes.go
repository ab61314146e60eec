package engine

import (
	"fmt"

	"github.com/matthewbaird/caseforms/internal/form"
)

// DisabledLinkIDs walks the tree in document order and returns every item
// whose enableWhen rule does not match, together with all descendants of
// such items. Answers of items found disabled earlier in the walk are
// treated as absent by later conditions.
func (e *Engine) DisabledLinkIDs(in Input) Set {
	disabled := make(Set)
	ctx := e.context(in, in.Answers, nil)
	disable := func(root *form.Item) {
		form.Walk([]*form.Item{root}, func(it *form.Item, _ []*form.Item) bool {
			disabled.Add(it.LinkID)
			delete(ctx, it.LinkID)
			return true
		})
	}
	in.Definition.Walk(func(it *form.Item, _ []*form.Item) bool {
		if len(it.EnableWhen) == 0 {
			return true
		}
		var enabled bool
		ok := e.guard(it.LinkID, "enableWhen", func() error {
			var err error
			enabled, err = e.matchAll(in, it.LinkID, it.EnableWhen, it.EnableBehavior, ctx)
			return err
		})
		if ok && enabled {
			return true
		}
		disable(it)
		return false
	})
	return disabled
}

// InitialValues returns the values of initial rules with the given
// behavior. IF_EMPTY rules only apply to items without a current answer.
func (e *Engine) InitialValues(in Input, behavior form.InitialBehavior) map[string]any {
	out := make(map[string]any)
	ctx := e.context(in, in.Answers, nil)
	in.Definition.Walk(func(it *form.Item, _ []*form.Item) bool {
		rule := it.Initial
		if rule == nil || rule.EffectiveBehavior() != behavior {
			return true
		}
		if behavior == form.InitialIfEmpty && !Empty(in.Answers[it.LinkID]) {
			return true
		}
		var v any
		ok := e.guard(it.LinkID, "initial", func() error {
			var err error
			v, err = e.source(in, it.LinkID, rule.Expression, rule.LinkID, rule.Value, ctx)
			return err
		})
		if ok {
			out[it.LinkID] = v
		}
		return true
	})
	return out
}

// AutofillResult is the outcome of ApplyAutofill.
type AutofillResult struct {
	Values   map[string]any `json:"values"`  // linkId -> autofilled value
	Rules    map[string]int `json:"rules"`   // linkId -> index of the applied rule
	ReadOnly Set            `json:"-"`       // items locked by autofillReadonly
	Answers  map[string]any `json:"answers"` // input answers merged with Values
}

// ApplyAutofill evaluates each enabled item's autofill rules in list order
// and applies the first rule whose conditions match. Later rules are not
// consulted even if they also match. Items are processed in document
// order so an autofilled value is visible to rules further down the form.
func (e *Engine) ApplyAutofill(in Input, disabled Set) AutofillResult {
	res := AutofillResult{
		Values:   make(map[string]any),
		Rules:    make(map[string]int),
		ReadOnly: make(Set),
		Answers:  copyAnswers(in.Answers),
	}
	ctx := e.context(in, in.Answers, disabled)
	in.Definition.Walk(func(it *form.Item, _ []*form.Item) bool {
		if disabled.Has(it.LinkID) {
			return false
		}
		for i, rule := range it.AutofillValues {
			var (
				matched bool
				value   any
			)
			ok := e.guard(it.LinkID, fmt.Sprintf("autofillValues[%d]", i), func() error {
				var err error
				matched, err = e.matchAll(in, it.LinkID, rule.AutofillWhen, rule.AutofillBehavior, ctx)
				if err != nil || !matched {
					return err
				}
				value, err = e.source(in, it.LinkID, rule.ValueExpression, rule.ValueLinkID, rule.Value, ctx)
				return err
			})
			if !matched {
				continue
			}
			if ok {
				res.Values[it.LinkID] = value
				res.Rules[it.LinkID] = i
				res.Answers[it.LinkID] = value
				ctx[it.LinkID] = value
				if rule.AutofillReadonly {
					res.ReadOnly.Add(it.LinkID)
				}
			}
			break
		}
		return true
	})
	return res
}

// ResolvedBounds are an item's min and max after evaluation. A nil side
// is unbounded.
type ResolvedBounds struct {
	Min any `json:"min,omitempty"`
	Max any `json:"max,omitempty"`
}

// Bounds resolves the min and max of every item that declares bounds.
func (e *Engine) Bounds(in Input) map[string]ResolvedBounds {
	out := make(map[string]ResolvedBounds)
	ctx := e.context(in, in.Answers, nil)
	in.Definition.Walk(func(it *form.Item, _ []*form.Item) bool {
		if it.Bounds == nil {
			return true
		}
		var rb ResolvedBounds
		if bv := it.Bounds.Min; bv != nil {
			e.guard(it.LinkID, "bounds.min", func() error {
				var err error
				rb.Min, err = e.source(in, it.LinkID, bv.Expression, bv.LinkID, bv.Value, ctx)
				return err
			})
		}
		if bv := it.Bounds.Max; bv != nil {
			e.guard(it.LinkID, "bounds.max", func() error {
				var err error
				rb.Max, err = e.source(in, it.LinkID, bv.Expression, bv.LinkID, bv.Value, ctx)
				return err
			})
		}
		out[it.LinkID] = rb
		return true
	})
	return out
}
