// Package engine computes the derived state of a form from its definition,
// dependency index, current answers and local constants: which items are
// disabled, their initial and autofilled values, resolved bounds, and
// which items apply to the subject at all.
//
// Every per-item rule runs behind an error and panic boundary. A failing
// rule counts as a condition that did not match or a value that was not
// produced; it is logged and evaluation of sibling items continues.
package engine

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/matthewbaird/caseforms/internal/depindex"
	"github.com/matthewbaird/caseforms/internal/expr"
	"github.com/matthewbaird/caseforms/internal/form"
)

// Input is one evaluation pass's view of a form. Definition and Index
// must describe the same tree; the engine does not detect a stale index.
type Input struct {
	Definition *form.Definition
	Index      *depindex.Index
	Answers    map[string]any
	Constants  map[string]any
	// Initialize marks the pass that opens or resets a form. Only then do
	// ALWAYS initial values replace existing answers; on later passes every
	// initial value only fills an empty answer.
	Initialize bool
}

// Set is a set of linkIds.
type Set map[string]struct{}

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id.
func (s Set) Add(id string) { s[id] = struct{}{} }

// Equal reports whether s and o hold the same ids.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Engine evaluates form rules. The zero value is not usable; call New.
type Engine struct {
	evaluator     *expr.Evaluator
	logger        *log.Logger
	warnUndefined bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger routes rule failures and warnings to l.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithWarnUndefined logs identifiers that are neither items nor constants
// each time an expression reads them.
func WithWarnUndefined(on bool) Option {
	return func(e *Engine) { e.warnUndefined = on }
}

// WithFunctions replaces the built-in function registry.
func WithFunctions(reg expr.Registry) Option {
	return func(e *Engine) { e.evaluator = &expr.Evaluator{Functions: reg} }
}

// New creates an engine with the built-in functions and the standard logger.
func New(opts ...Option) *Engine {
	e := &Engine{
		evaluator: expr.NewEvaluator(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Functions returns the registry expressions are evaluated with.
func (e *Engine) Functions() expr.Registry {
	return e.evaluator.Functions
}

func (e *Engine) logf(format string, args ...any) {
	e.logger.Printf("engine: "+format, args...)
}

// guard runs fn for one item's rule, turning errors and panics into a
// logged false.
func (e *Engine) guard(linkID, rule string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logf("%s %s: panic: %v", linkID, rule, r)
			ok = false
		}
	}()
	if err := fn(); err != nil {
		e.logf("%s %s: %v", linkID, rule, err)
		return false
	}
	return true
}

// context builds a fresh evaluation context: definition constants, then
// input constants, then answers. Answers of excluded items are left out.
func (e *Engine) context(in Input, answers map[string]any, exclude Set) expr.Context {
	ctx := make(expr.Context, len(answers)+len(in.Constants))
	if in.Definition != nil {
		for k, v := range in.Definition.Constants {
			ctx[k] = v
		}
	}
	for k, v := range in.Constants {
		ctx[k] = v
	}
	for k, v := range answers {
		if exclude.Has(k) {
			continue
		}
		ctx[k] = v
	}
	return ctx
}

// eval parses and evaluates an expression for the item linkID.
func (e *Engine) eval(in Input, linkID, text string, ctx expr.Context) (any, error) {
	node, err := expr.Parse(text)
	if err != nil {
		return nil, err
	}
	v, missing, err := e.evaluator.EvaluateTrace(node, ctx)
	if err != nil {
		return nil, err
	}
	if e.warnUndefined {
		var unknown []string
		for _, name := range missing {
			if e.undefined(in, name) {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			e.logf("%s: undefined %s in %q, using default", linkID, strings.Join(unknown, ", "), text)
		}
	}
	return v, nil
}

// undefined reports whether name is neither an item nor a known constant.
// Items without answers are not undefined.
func (e *Engine) undefined(in Input, name string) bool {
	if in.Index != nil && in.Index.Item(name) != nil {
		return false
	}
	if in.Index == nil && in.Definition != nil {
		if it, _ := in.Definition.Find(name); it != nil {
			return false
		}
	}
	if in.Definition != nil {
		if _, ok := in.Definition.Constants[name]; ok {
			return false
		}
	}
	_, ok := in.Constants[name]
	return !ok
}

// source resolves a value given as exactly one of an expression, a linkId
// or a literal.
func (e *Engine) source(in Input, linkID, expression, ref string, literal any, ctx expr.Context) (any, error) {
	switch {
	case expression != "":
		return e.eval(in, linkID, expression, ctx)
	case ref != "":
		return ctx[ref], nil
	default:
		return literal, nil
	}
}

func copyAnswers(answers map[string]any) map[string]any {
	out := make(map[string]any, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	return out
}

// Empty reports whether an answer counts as missing: nil, "", or an empty
// list.
func Empty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return expr.ToString(v)
}
