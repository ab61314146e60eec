package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Precedence(t *testing.T) {
	node := MustParse("a + b * c - d / 2")
	assert.Equal(t, "((a + (b * c)) - (d / 2))", node.String())
}

func TestParser_Grouping(t *testing.T) {
	node := MustParse("(a + b) × c")
	bin, ok := node.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, OpMul, bin.Op)
	assert.Equal(t, "(a + b)", bin.Left.String())
}

func TestParser_UnaryMinus(t *testing.T) {
	node := MustParse("-a - -2")
	assert.Equal(t, "(-a - -2)", node.String())
}

func TestParser_Call(t *testing.T) {
	node := MustParse(`formatMinutes(hours * 60 + minutes)`)
	call, ok := node.(*CallExpr)
	require.True(t, ok)
	assert.Equal(t, "formatMinutes", call.Name)
	require.Len(t, call.Args, 1)

	node = MustParse("coalesce()")
	assert.Empty(t, node.(*CallExpr).Args)

	node = MustParse(`concat(a, " ", b)`)
	assert.Len(t, node.(*CallExpr).Args, 3)
}

func TestParser_Literals(t *testing.T) {
	assert.Equal(t, 1.5, MustParse("1.5").(*NumberLit).Value)
	assert.Equal(t, "x", MustParse(`"x"`).(*StringLit).Value)
	assert.True(t, MustParse("true").(*BoolLit).Value)
	_, ok := MustParse("null").(*NullLit)
	assert.True(t, ok)
}

func TestParser_StringRoundTrip(t *testing.T) {
	for _, src := range []string{
		"a + b",
		"sum(a, b, `odd name`) / 2",
		"`true` + x.y",
		`concat("h", -n)`,
	} {
		node := MustParse(src)
		again, err := Parse(node.String())
		require.NoError(t, err, src)
		assert.Equal(t, node.String(), again.String(), src)
	}
}

func TestParser_Errors(t *testing.T) {
	cases := []struct {
		input string
		msg   string
	}{
		{"", "empty expression"},
		{"a +", "expected a value"},
		{"(a + b", "expected )"},
		{"a b", "after end of expression"},
		{"f(a,", "expected a value"},
	}
	for _, tc := range cases {
		_, err := Parse(tc.input)
		require.Error(t, err, tc.input)
		var perr *ParseError
		require.True(t, errors.As(err, &perr), tc.input)
		assert.Contains(t, perr.Message, tc.msg, tc.input)
	}
}

func TestParser_ErrorPosition(t *testing.T) {
	_, err := Parse("a +\n  )")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, 3, perr.Col)
}

func TestCheck_UnknownFunction(t *testing.T) {
	_, err := Check("formatMinute(a)", Builtins())
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "unknown function 'formatMinute'")
	assert.Equal(t, "did you mean 'formatMinutes'?", perr.Suggestion)
	assert.Equal(t, 1, perr.Col)
}

func TestCheck_Arity(t *testing.T) {
	_, err := Check("1 + round(a, 2, 3)", Builtins())
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "at most 2")
	assert.Equal(t, 5, perr.Col)

	node, err := Check("round(a, 2)", Builtins())
	require.NoError(t, err)
	assert.NotNil(t, node)
}

func TestSuggestFrom(t *testing.T) {
	assert.Equal(t, "did you mean 'sum'?", SuggestFrom("sun", []string{"sum", "min"}, 2))
	assert.Equal(t, "", SuggestFrom("zzzzzz", []string{"sum"}, 2))
	assert.Equal(t, 3, Levenshtein("kitten", "sitting"))
}

func TestCheckFunctions_Node(t *testing.T) {
	err := CheckFunctions(MustParse("sum(a, mx(b))"), Builtins())
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 7, perr.Pos)
	assert.Equal(t, "did you mean 'max'?", perr.Suggestion)

	assert.NoError(t, CheckFunctions(MustParse("a + 1"), Builtins()))
}
