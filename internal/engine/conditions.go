package engine

import (
	"fmt"
	"strings"

	"github.com/matthewbaird/caseforms/internal/expr"
	"github.com/matthewbaird/caseforms/internal/form"
)

// matchAll combines conditions with behavior. An empty list matches.
func (e *Engine) matchAll(in Input, linkID string, conds []form.Condition, behavior form.Behavior, ctx expr.Context) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}
	anyOf := behavior == form.BehaviorAny
	for _, c := range conds {
		ok, err := e.match(in, linkID, c, ctx)
		if err != nil {
			return false, err
		}
		if anyOf && ok {
			return true, nil
		}
		if !anyOf && !ok {
			return false, nil
		}
	}
	return !anyOf, nil
}

func (e *Engine) match(in Input, linkID string, c form.Condition, ctx expr.Context) (bool, error) {
	left, present := ctx[c.Question]
	if c.Operator == form.OpExists {
		want := true
		if b, ok := c.Answer.(bool); ok {
			want = b
		}
		return (present && !Empty(left)) == want, nil
	}
	right, err := e.source(in, linkID, c.AnswerExpression, c.AnswerLinkID, c.Answer, ctx)
	if err != nil {
		return false, fmt.Errorf("comparand for %s: %w", c.Question, err)
	}
	return compare(c.Operator, left, right)
}

// compare applies op to an answer and its comparand.
func compare(op form.Operator, left, right any) (bool, error) {
	switch op {
	case form.OpEqual:
		return equal(left, right), nil
	case form.OpNotEqual:
		return !equal(left, right), nil
	case form.OpGreaterThan, form.OpGreaterThanEqual, form.OpLessThan, form.OpLessThanEqual:
		c, ok := order(left, right)
		if !ok {
			return false, nil
		}
		switch op {
		case form.OpGreaterThan:
			return c > 0, nil
		case form.OpGreaterThanEqual:
			return c >= 0, nil
		case form.OpLessThan:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case form.OpIncludes:
		return includes(left, right), nil
	case form.OpIn:
		return includes(right, left), nil
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

// number reports v as a float when it is numeric or a numeric string.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		if strings.TrimSpace(x) == "" {
			return 0, false
		}
	}
	return expr.ToNumber(v)
}

func equal(a, b any) bool {
	if Empty(a) || Empty(b) {
		return Empty(a) && Empty(b)
	}
	if ab, ok := a.(bool); ok {
		return ab == expr.Truthy(b)
	}
	if bb, ok := b.(bool); ok {
		return bb == expr.Truthy(a)
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	return expr.ToString(a) == expr.ToString(b)
}

// order compares two answers numerically when both are numbers and
// lexically when both are strings (ISO dates and times order correctly).
// Missing values do not order.
func order(a, b any) (int, bool) {
	if Empty(a) || Empty(b) {
		return 0, false
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// includes reports whether container holds v. Strings contain substrings.
func includes(container, v any) bool {
	switch c := container.(type) {
	case []any:
		for _, el := range c {
			if equal(el, v) {
				return true
			}
		}
	case []string:
		for _, el := range c {
			if equal(el, v) {
				return true
			}
		}
	case string:
		s := expr.ToString(v)
		return s != "" && strings.Contains(c, s)
	}
	return false
}
