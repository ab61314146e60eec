package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eval(t *testing.T, src string, ctx Context) any {
	t.Helper()
	v, err := EvaluateString(src, ctx)
	require.NoError(t, err, src)
	return v
}

func TestEvaluate_Arithmetic(t *testing.T) {
	ctx := Context{"a": 3, "b": 4.5, "c": "2"}
	assert.Equal(t, 12.0, eval(t, "a * 2 + b + 1.5", ctx))
	assert.Equal(t, 1.5, eval(t, "a / c", ctx))
	assert.Equal(t, -7.5, eval(t, "-(a + b)", ctx))
	assert.Equal(t, 6.0, eval(t, "a × c", ctx))
}

func TestEvaluate_SizedIntegers(t *testing.T) {
	ctx := Context{
		"i8": int8(-2), "i16": int16(300), "u8": uint8(7),
		"u16": uint16(1000), "u32": uint32(70000), "u64": uint64(5),
	}
	assert.Equal(t, 298.0, eval(t, "i8 + i16", ctx))
	assert.Equal(t, 71007.0, eval(t, "u8 + u16 + u32", ctx))
	assert.Equal(t, 10.0, eval(t, "u64 * 2", ctx))
}

func TestEvaluate_MissingIdentifiersDefault(t *testing.T) {
	assert.Equal(t, 5.0, eval(t, "missing + 5", Context{}))
	assert.Nil(t, eval(t, "missing", Context{}))
	assert.Equal(t, "x", eval(t, `missing + "x"`, Context{}))
}

func TestEvaluate_StringConcatenation(t *testing.T) {
	ctx := Context{"first": "Ada", "n": 2}
	assert.Equal(t, "Ada Lovelace", eval(t, `first + " " + "Lovelace"`, ctx))
	assert.Equal(t, "n=2", eval(t, `"n=" + n`, ctx))
	assert.Equal(t, "true!", eval(t, `true + "!"`, ctx))
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	_, err := EvaluateString("a / (b - 2)", Context{"a": 1, "b": 2})
	var eerr *EvaluationError
	require.True(t, errors.As(err, &eerr))
	assert.Contains(t, eerr.Message, "division by zero")
}

func TestEvaluate_NonNumericOperand(t *testing.T) {
	_, err := EvaluateString("a * 2", Context{"a": "abc"})
	var eerr *EvaluationError
	require.ErrorAs(t, err, &eerr)
	assert.Contains(t, eerr.Message, `"abc"`)
}

func TestEvaluate_UnknownFunction(t *testing.T) {
	_, err := EvaluateString("nope(1)", Context{})
	var eerr *EvaluationError
	require.ErrorAs(t, err, &eerr)
	assert.Contains(t, eerr.Message, "unknown function")
}

func TestEvaluate_Arity(t *testing.T) {
	_, err := EvaluateString("abs(1, 2)", Context{})
	var eerr *EvaluationError
	require.ErrorAs(t, err, &eerr)
}

func TestEvaluate_Trace(t *testing.T) {
	node := MustParse("a + b + sum(c, a)")
	v, missing, err := NewEvaluator().EvaluateTrace(node, Context{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, []string{"b", "c"}, missing)
}

func TestEvaluate_CustomRegistry(t *testing.T) {
	ev := &Evaluator{Functions: Registry{
		"double": {Name: "double", MinArgs: 1, MaxArgs: 1, Call: func(args []any) (any, error) {
			f, _ := ToNumber(args[0])
			return f * 2, nil
		}},
	}}
	v, err := ev.Evaluate(MustParse("double(x)"), Context{"x": 21})
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	_, err = ev.Evaluate(MustParse("sum(x)"), Context{"x": 1})
	assert.Error(t, err)
}

func TestEvaluate_Deterministic(t *testing.T) {
	node := MustParse(`concat(name, ": ", formatMinutes(h * 60 + m)) + "!"`)
	ctx := Context{"name": "visit", "h": 1, "m": 5}
	first, err := Evaluate(node, ctx)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Evaluate(node, ctx)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "visit: 1 hour 5 minutes!", first)
}

func TestBuiltins(t *testing.T) {
	ctx := Context{"a": 2, "b": 7, "e": ""}
	cases := map[string]any{
		"sum()":                0.0,
		"sum(a, b, 1)":         10.0,
		"min(b, a, 5)":         2.0,
		"max(b, a, 5)":         7.0,
		"round(2.5)":           3.0,
		"round(1.2345, 2)":     1.23,
		"floor(b / a)":         3.0,
		"ceil(b / a)":          4.0,
		"abs(a - b)":           5.0,
		`concat("x", a, true)`: "x2true",
		`coalesce(e, z, b)`:    7.0,
		`coalesce(e, z)`:       nil,
	}
	for src, want := range cases {
		assert.Equal(t, want, eval(t, src, ctx), src)
	}
}

func TestBuiltins_ReturnsCopy(t *testing.T) {
	r := Builtins()
	delete(r, "sum")
	_, ok := Builtins()["sum"]
	assert.True(t, ok)
}

func TestFormatMinutes(t *testing.T) {
	cases := []struct {
		ctx  Context
		want string
	}{
		{Context{"h": 2, "m": 30}, "2 hours 30 minutes"},
		{Context{"h": 1, "m": 1}, "1 hour 1 minute"},
		{Context{"h": 3}, "3 hours"},
		{Context{"m": 45}, "45 minutes"},
		{Context{}, "0 minutes"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, eval(t, "formatMinutes(h * 60 + m)", tc.ctx))
	}
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy([]any{}))
	assert.True(t, Truthy(1.5))
	assert.True(t, Truthy("no"))
	assert.True(t, Truthy(true))
}
