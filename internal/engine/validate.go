package engine

import (
	"fmt"

	"github.com/matthewbaird/caseforms/internal/form"
)

// Violation codes.
const (
	CodeRequired = "REQUIRED"
	CodeBelowMin = "BELOW_MIN"
	CodeAboveMax = "ABOVE_MAX"
)

// Violation is a problem with one answer.
type Violation struct {
	LinkID  string `json:"linkId"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validate reports required items without an answer and answers outside
// their resolved bounds. Disabled items are skipped.
func (e *Engine) Validate(in Input, disabled Set) []Violation {
	return e.validate(in, disabled, e.Bounds(in))
}

func (e *Engine) validate(in Input, disabled Set, bounds map[string]ResolvedBounds) []Violation {
	var out []Violation
	in.Definition.Walk(func(it *form.Item, _ []*form.Item) bool {
		if disabled.Has(it.LinkID) {
			return false
		}
		answer := in.Answers[it.LinkID]
		if Empty(answer) {
			if it.Required && it.Traits().Answer {
				out = append(out, Violation{LinkID: it.LinkID, Code: CodeRequired, Message: fmt.Sprintf("%s is required", it.DisplayLabel())})
			}
			return true
		}
		rb, ok := bounds[it.LinkID]
		if !ok {
			return true
		}
		if c, ok := order(answer, rb.Min); ok && c < 0 {
			out = append(out, Violation{LinkID: it.LinkID, Code: CodeBelowMin,
				Message: fmt.Sprintf("%s must be at least %s", it.DisplayLabel(), describe(rb.Min))})
		}
		if c, ok := order(answer, rb.Max); ok && c > 0 {
			out = append(out, Violation{LinkID: it.LinkID, Code: CodeAboveMax,
				Message: fmt.Sprintf("%s must be at most %s", it.DisplayLabel(), describe(rb.Max))})
		}
		return true
	})
	return out
}
