package expr

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Function is a named built-in callable from expressions.
type Function struct {
	Name    string
	MinArgs int
	MaxArgs int // -1 means variadic
	Call    func(args []any) (any, error)
}

func (f Function) checkArity(n int) error {
	if n < f.MinArgs {
		return fmt.Errorf("expected at least %d argument(s), got %d", f.MinArgs, n)
	}
	if f.MaxArgs >= 0 && n > f.MaxArgs {
		return fmt.Errorf("expected at most %d argument(s), got %d", f.MaxArgs, n)
	}
	return nil
}

// Registry maps function names to their implementation. Registries are
// treated as read-only once handed to an Evaluator.
type Registry map[string]Function

// Names returns the registered function names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtins returns a copy of the default function registry.
func Builtins() Registry {
	r := make(Registry, len(builtins))
	for _, f := range builtins {
		r[f.Name] = f
	}
	return r
}

var builtins = []Function{
	{Name: "formatMinutes", MinArgs: 1, MaxArgs: 1, Call: formatMinutes},
	{Name: "sum", MinArgs: 0, MaxArgs: -1, Call: sum},
	{Name: "min", MinArgs: 1, MaxArgs: -1, Call: fold(math.Min)},
	{Name: "max", MinArgs: 1, MaxArgs: -1, Call: fold(math.Max)},
	{Name: "round", MinArgs: 1, MaxArgs: 2, Call: round},
	{Name: "floor", MinArgs: 1, MaxArgs: 1, Call: unary(math.Floor)},
	{Name: "ceil", MinArgs: 1, MaxArgs: 1, Call: unary(math.Ceil)},
	{Name: "abs", MinArgs: 1, MaxArgs: 1, Call: unary(math.Abs)},
	{Name: "concat", MinArgs: 0, MaxArgs: -1, Call: concat},
	{Name: "coalesce", MinArgs: 1, MaxArgs: -1, Call: coalesce},
}

// formatMinutes renders a minute count as "H hours M minutes". Missing or
// non-positive input yields "0 minutes".
func formatMinutes(args []any) (any, error) {
	f, ok := ToNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("cannot format %s as minutes", describeValue(args[0]))
	}
	total := int(math.Round(f))
	if total <= 0 {
		return "0 minutes", nil
	}
	hours, minutes := total/60, total%60
	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	return strings.Join(parts, " "), nil
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func numbers(args []any) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, ok := ToNumber(a)
		if !ok {
			return nil, fmt.Errorf("argument %d: cannot use %s as a number", i+1, describeValue(a))
		}
		out[i] = f
	}
	return out, nil
}

func sum(args []any) (any, error) {
	nums, err := numbers(args)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return total, nil
}

func fold(f func(a, b float64) float64) func([]any) (any, error) {
	return func(args []any) (any, error) {
		nums, err := numbers(args)
		if err != nil {
			return nil, err
		}
		acc := nums[0]
		for _, n := range nums[1:] {
			acc = f(acc, n)
		}
		return acc, nil
	}
}

func unary(f func(float64) float64) func([]any) (any, error) {
	return func(args []any) (any, error) {
		nums, err := numbers(args)
		if err != nil {
			return nil, err
		}
		return f(nums[0]), nil
	}
}

func round(args []any) (any, error) {
	nums, err := numbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 1 {
		return math.Round(nums[0]), nil
	}
	scale := math.Pow(10, math.Trunc(nums[1]))
	return math.Round(nums[0]*scale) / scale, nil
}

func concat(args []any) (any, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(ToString(a))
	}
	return b.String(), nil
}

// coalesce returns the first argument that is neither null nor "".
func coalesce(args []any) (any, error) {
	for _, a := range args {
		if a == nil {
			continue
		}
		if s, ok := a.(string); ok && s == "" {
			continue
		}
		return a, nil
	}
	return nil, nil
}
