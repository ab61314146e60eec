package expr

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Context maps variable names (linkIds and local constants) to their
// current values. A Context is built fresh for every evaluation pass.
type Context map[string]any

// Evaluator evaluates parsed expressions against a Context using a fixed
// function registry.
type Evaluator struct {
	Functions Registry
}

// NewEvaluator returns an evaluator backed by a copy of the built-in
// function registry.
func NewEvaluator() *Evaluator {
	return &Evaluator{Functions: Builtins()}
}

var defaultEvaluator = NewEvaluator()

// Evaluate evaluates node against ctx with the built-in functions.
func Evaluate(node Node, ctx Context) (any, error) {
	return defaultEvaluator.Evaluate(node, ctx)
}

// EvaluateString parses text and evaluates it against ctx.
func EvaluateString(text string, ctx Context) (any, error) {
	node, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return Evaluate(node, ctx)
}

// Evaluate evaluates node against ctx. Identifiers missing from ctx
// resolve to nil, which reads as 0, "" or false depending on use.
func (e *Evaluator) Evaluate(node Node, ctx Context) (any, error) {
	v, _, err := e.EvaluateTrace(node, ctx)
	return v, err
}

// EvaluateTrace is like Evaluate but also returns the sorted names of
// identifiers that were consulted and absent from ctx.
func (e *Evaluator) EvaluateTrace(node Node, ctx Context) (any, []string, error) {
	s := &evalState{ev: e, ctx: ctx}
	v, err := s.eval(node)
	var missing []string
	for name := range s.missing {
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return v, missing, err
}

type evalState struct {
	ev      *Evaluator
	ctx     Context
	missing map[string]struct{}
}

func (s *evalState) eval(node Node) (any, error) {
	switch n := node.(type) {
	case *NumberLit:
		return n.Value, nil
	case *StringLit:
		return n.Value, nil
	case *BoolLit:
		return n.Value, nil
	case *NullLit:
		return nil, nil
	case *Ident:
		v, ok := s.ctx[n.Name]
		if !ok {
			if s.missing == nil {
				s.missing = make(map[string]struct{})
			}
			s.missing[n.Name] = struct{}{}
			return nil, nil
		}
		return normalize(v), nil
	case *UnaryExpr:
		v, err := s.eval(n.Operand)
		if err != nil {
			return nil, err
		}
		f, err := numberOperand(n, v)
		if err != nil {
			return nil, err
		}
		return -f, nil
	case *BinaryExpr:
		left, err := s.eval(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := s.eval(n.Right)
		if err != nil {
			return nil, err
		}
		return applyBinary(n, left, right)
	case *CallExpr:
		fn, ok := s.ev.Functions[n.Name]
		if !ok {
			return nil, evalErrorf(n, "unknown function %q", n.Name)
		}
		if err := fn.checkArity(len(n.Args)); err != nil {
			return nil, evalErrorf(n, "%s: %v", n.Name, err)
		}
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			v, err := s.eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		out, err := fn.Call(args)
		if err != nil {
			return nil, &EvaluationError{Message: "calling " + n.Name, Pos: n.Pos(), Err: err}
		}
		return out, nil
	case nil:
		return nil, &EvaluationError{Message: "nil expression"}
	default:
		return nil, evalErrorf(node, "unsupported node %s", node.nodeType())
	}
}

func applyBinary(n *BinaryExpr, left, right any) (any, error) {
	if n.Op == OpAdd {
		_, ls := left.(string)
		_, rs := right.(string)
		if ls || rs {
			return ToString(left) + ToString(right), nil
		}
	}
	l, err := numberOperand(n, left)
	if err != nil {
		return nil, err
	}
	r, err := numberOperand(n, right)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpDiv:
		if r == 0 {
			return nil, evalErrorf(n, "division by zero")
		}
		return l / r, nil
	default:
		return nil, evalErrorf(n, "unsupported operator %s", n.Op)
	}
}

func numberOperand(n Node, v any) (float64, error) {
	f, ok := ToNumber(v)
	if !ok {
		return 0, evalErrorf(n, "cannot use %s as a number", describeValue(v))
	}
	return f, nil
}

// ── Value coercion ──────────────────────────────────────────────────────────

// normalize converts the numeric types answers arrive as into float64.
func normalize(v any) any {
	if f, ok := numeric(v); ok {
		return f
	}
	return v
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// ToNumber coerces v to a number. nil is 0, booleans are 0 or 1 and
// numeric strings are parsed. Other values report ok=false.
func ToNumber(v any) (float64, bool) {
	if f, ok := numeric(v); ok {
		return f, true
	}
	switch x := v.(type) {
	case nil:
		return 0, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// ToString renders v the way expressions concatenate it. nil is "".
func ToString(v any) string {
	if f, ok := numeric(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Truthy reports whether v counts as true: non-zero numbers, non-empty
// strings and collections, and true.
func Truthy(v any) bool {
	if f, ok := numeric(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

func describeValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", x)
	}
}
