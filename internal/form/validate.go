package form

import (
	"fmt"
	"strings"

	"github.com/matthewbaird/caseforms/internal/expr"
)

// Problem is one authoring defect in a definition.
type Problem struct {
	LinkID  string // item the problem belongs to, if any
	Field   string // e.g. "enableWhen[0].answerExpression"
	Message string
	Err     error // underlying error, e.g. *expr.ParseError
}

func (p Problem) String() string {
	var b strings.Builder
	if p.LinkID != "" {
		b.WriteString(p.LinkID)
	}
	if p.Field != "" {
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(p.Field)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(p.Message)
	return b.String()
}

// ValidationError lists every authoring defect found in a definition.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "invalid definition"
	case 1:
		return "invalid definition: " + e.Problems[0].String()
	}
	return fmt.Sprintf("invalid definition: %s (and %d more)", e.Problems[0].String(), len(e.Problems)-1)
}

// Unwrap exposes the underlying errors so errors.As can find a
// *expr.ParseError inside a validation failure.
func (e *ValidationError) Unwrap() []error {
	var errs []error
	for _, p := range e.Problems {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	return errs
}

// Add records a problem.
func (e *ValidationError) Add(p Problem) {
	e.Problems = append(e.Problems, p)
}

// OrNil returns e when it holds problems and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

// Validate checks a decoded definition for authoring defects: duplicate or
// empty linkIds, unknown kinds, fields that are not meaningful for an
// item's kind, references that do not resolve, malformed expressions, calls
// to functions missing from reg, and constants that clash with linkIds.
func Validate(def *Definition, reg expr.Registry) error {
	v := &validator{
		reg:   reg,
		items: make(map[string]*Item),
		errs:  &ValidationError{},
	}
	def.Walk(func(it *Item, _ []*Item) bool {
		if it.LinkID == "" {
			v.errs.Add(Problem{Field: "linkId", Message: fmt.Sprintf("%s item has an empty linkId", it.Kind)})
			return true
		}
		if _, dup := v.items[it.LinkID]; dup {
			v.errs.Add(Problem{LinkID: it.LinkID, Message: "duplicate linkId", Err: ErrDuplicateLink})
			return true
		}
		v.items[it.LinkID] = it
		return true
	})
	for name := range def.Constants {
		if _, clash := v.items[name]; clash {
			v.errs.Add(Problem{LinkID: name, Field: "constants", Message: "constant has the same name as an item"})
		}
	}
	v.constants = def.Constants

	def.Walk(func(it *Item, _ []*Item) bool {
		v.item(it)
		return true
	})
	return v.errs.OrNil()
}

type validator struct {
	reg       expr.Registry
	items     map[string]*Item
	constants map[string]any
	errs      *ValidationError
}

func (v *validator) resolves(name string) bool {
	if _, ok := v.items[name]; ok {
		return true
	}
	_, ok := v.constants[name]
	return ok
}

func (v *validator) problem(it *Item, field, format string, args ...any) {
	v.errs.Add(Problem{LinkID: it.LinkID, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) item(it *Item) {
	traits, ok := it.Kind.Traits()
	if !ok {
		v.problem(it, "kind", "unknown kind %q", it.Kind)
		return
	}
	if len(it.Items) > 0 && !traits.Children {
		v.problem(it, "item", "%s items cannot contain children", it.Kind)
	}
	if len(it.PickListOptions) > 0 && !traits.Options {
		v.problem(it, "pickListOptions", "%s items do not accept options", it.Kind)
	}
	if it.Bounds != nil && !traits.Bounds {
		v.problem(it, "bounds", "%s items do not accept bounds", it.Kind)
	}
	if len(it.AutofillValues) > 0 && !traits.Answer {
		v.problem(it, "autofillValues", "%s items carry no answer to autofill", it.Kind)
	}
	if it.Initial != nil && !traits.Answer {
		v.problem(it, "initial", "%s items carry no answer to initialize", it.Kind)
	}
	if it.Required && !traits.Answer {
		v.problem(it, "required", "%s items carry no answer to require", it.Kind)
	}
	if !it.DataCollectedAbout.Valid() {
		v.problem(it, "dataCollectedAbout", "unknown value %q", it.DataCollectedAbout)
	}

	codes := make(map[string]bool)
	for i, opt := range it.PickListOptions {
		if opt.Code == "" {
			v.problem(it, fmt.Sprintf("pickListOptions[%d]", i), "option has an empty code")
		} else if codes[opt.Code] {
			v.problem(it, fmt.Sprintf("pickListOptions[%d]", i), "duplicate option code %q", opt.Code)
		}
		codes[opt.Code] = true
	}

	for i, c := range it.EnableWhen {
		v.condition(it, fmt.Sprintf("enableWhen[%d]", i), c)
	}
	for i, r := range it.AutofillValues {
		field := fmt.Sprintf("autofillValues[%d]", i)
		v.sources(it, field, r.ValueExpression, r.Value, r.ValueLinkID)
		for j, c := range r.AutofillWhen {
			v.condition(it, fmt.Sprintf("%s.autofillWhen[%d]", field, j), c)
		}
	}
	if it.Bounds != nil {
		if it.Bounds.Min != nil {
			v.sources(it, "bounds.min", it.Bounds.Min.Expression, it.Bounds.Min.Value, it.Bounds.Min.LinkID)
		}
		if it.Bounds.Max != nil {
			v.sources(it, "bounds.max", it.Bounds.Max.Expression, it.Bounds.Max.Value, it.Bounds.Max.LinkID)
		}
	}
	if in := it.Initial; in != nil {
		v.sources(it, "initial", in.Expression, in.Value, in.LinkID)
		if b := in.EffectiveBehavior(); b != InitialAlways && b != InitialIfEmpty {
			v.problem(it, "initial.behavior", "unknown behavior %q", in.Behavior)
		}
	}
}

// sources checks a value that comes from exactly one of an expression, a
// literal or another item's answer.
func (v *validator) sources(it *Item, field, expression string, literal any, linkID string) {
	n := 0
	for _, set := range []bool{expression != "", literal != nil, linkID != ""} {
		if set {
			n++
		}
	}
	if n != 1 {
		v.problem(it, field, "exactly one of expression, value or linkId is required, got %d", n)
	}
	if linkID != "" && !v.resolves(linkID) {
		v.problem(it, field+".linkId", "reference to unknown linkId %q", linkID)
	}
	if expression != "" {
		v.expression(it, field+".expression", expression)
	}
}

func (v *validator) condition(it *Item, field string, c Condition) {
	if c.Question == "" {
		v.problem(it, field+".question", "condition has no question")
	} else if !v.resolves(c.Question) {
		v.problem(it, field+".question", "reference to unknown linkId %q", c.Question)
	}
	if !c.Operator.Valid() {
		v.problem(it, field+".operator", "unknown operator %q", c.Operator)
	}
	n := 0
	for _, set := range []bool{c.Answer != nil, c.AnswerLinkID != "", c.AnswerExpression != ""} {
		if set {
			n++
		}
	}
	switch {
	case c.Operator == OpExists:
		if c.AnswerLinkID != "" || c.AnswerExpression != "" {
			v.problem(it, field, "EXISTS compares against a boolean answer only")
		}
		if _, isBool := c.Answer.(bool); c.Answer != nil && !isBool {
			v.problem(it, field+".answer", "EXISTS answer must be a boolean")
		}
	case n != 1:
		v.problem(it, field, "exactly one of answer, answerLinkId or answerExpression is required, got %d", n)
	}
	if c.AnswerLinkID != "" && !v.resolves(c.AnswerLinkID) {
		v.problem(it, field+".answerLinkId", "reference to unknown linkId %q", c.AnswerLinkID)
	}
	if c.AnswerExpression != "" {
		v.expression(it, field+".answerExpression", c.AnswerExpression)
	}
}

func (v *validator) expression(it *Item, field, text string) {
	node, err := expr.Check(text, v.reg)
	if err != nil {
		v.errs.Add(Problem{LinkID: it.LinkID, Field: field, Message: err.Error(), Err: err})
		return
	}
	for _, name := range expr.Variables(node) {
		if !v.resolves(name) {
			msg := fmt.Sprintf("reference to unknown linkId %q", name)
			if s := expr.SuggestFrom(name, v.names(), 2); s != "" {
				msg += " (" + s + ")"
			}
			v.problem(it, field, "%s", msg)
		}
	}
}

func (v *validator) names() []string {
	names := make([]string, 0, len(v.items)+len(v.constants))
	for name := range v.items {
		names = append(names, name)
	}
	for name := range v.constants {
		names = append(names, name)
	}
	return names
}
