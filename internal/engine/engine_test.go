package engine

import (
	"bytes"
	"log"
	"testing"

	"github.com/matthewbaird/caseforms/internal/depindex"
	"github.com/matthewbaird/caseforms/internal/expr"
	"github.com/matthewbaird/caseforms/internal/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietEngine(t *testing.T, opts ...Option) (*Engine, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append([]Option{WithLogger(log.New(&buf, "", 0))}, opts...)
	return New(opts...), &buf
}

func input(def *form.Definition, answers map[string]any) Input {
	return Input{Definition: def, Index: depindex.Build(def), Answers: answers}
}

func TestDisabledLinkIDs(t *testing.T) {
	def := &form.Definition{Items: []*form.Item{
		{LinkID: "size", Kind: form.KindInteger},
		{LinkID: "kids", Kind: form.KindGroup,
			EnableWhen: []form.Condition{{Question: "size", Operator: form.OpGreaterThan, Answer: 1.0}},
			Items: []*form.Item{
				{LinkID: "count", Kind: form.KindInteger},
				{LinkID: "ages", Kind: form.KindString},
			}},
		{LinkID: "ask", Kind: form.KindString,
			EnableWhen: []form.Condition{{Question: "count", Operator: form.OpExists}}},
		{LinkID: "either", Kind: form.KindString, EnableBehavior: form.BehaviorAny,
			EnableWhen: []form.Condition{
				{Question: "size", Operator: form.OpEqual, Answer: 5.0},
				{Question: "size", Operator: form.OpLessThan, Answer: 2.0},
			}},
	}}
	e, _ := quietEngine(t)

	got := e.DisabledLinkIDs(input(def, map[string]any{"size": 1, "count": 3}))
	assert.Equal(t, []string{"ages", "ask", "count", "kids"}, got.Sorted(),
		"disabled group disables its subtree and hides its answers from later conditions")

	got = e.DisabledLinkIDs(input(def, map[string]any{"size": 3, "count": 3}))
	assert.Equal(t, []string{"either"}, got.Sorted())

	got = e.DisabledLinkIDs(input(def, map[string]any{"size": 5, "count": 3}))
	assert.Empty(t, got)
}

func TestDisabledLinkIDs_FailureIsolation(t *testing.T) {
	def := &form.Definition{Items: []*form.Item{
		{LinkID: "a", Kind: form.KindInteger},
		{LinkID: "broken", Kind: form.KindString,
			EnableWhen: []form.Condition{{Question: "a", Operator: form.OpEqual, AnswerExpression: "a / 0"}}},
		{LinkID: "unknownFn", Kind: form.KindString,
			EnableWhen: []form.Condition{{Question: "a", Operator: form.OpEqual, AnswerExpression: "nope(a)"}}},
		{LinkID: "fine", Kind: form.KindString,
			EnableWhen: []form.Condition{{Question: "a", Operator: form.OpEqual, AnswerExpression: "1 + 1"}}},
	}}
	e, logs := quietEngine(t)
	got := e.DisabledLinkIDs(input(def, map[string]any{"a": 2}))
	assert.Equal(t, []string{"broken", "unknownFn"}, got.Sorted())
	assert.Contains(t, logs.String(), "engine: broken enableWhen")
	assert.Contains(t, logs.String(), "division by zero")
}

func TestGuard_RecoversPanics(t *testing.T) {
	reg := expr.Builtins()
	reg["explode"] = expr.Function{Name: "explode", MaxArgs: 0, Call: func([]any) (any, error) { panic("boom") }}
	def := &form.Definition{Items: []*form.Item{
		{LinkID: "a", Kind: form.KindString, AutofillValues: []form.AutofillRule{{ValueExpression: "explode()"}}},
		{LinkID: "b", Kind: form.KindString, AutofillValues: []form.AutofillRule{{Value: "ok"}}},
	}}
	e, logs := quietEngine(t, WithFunctions(reg))
	res := e.ApplyAutofill(input(def, nil), Set{})
	assert.Equal(t, map[string]any{"b": "ok"}, res.Values)
	assert.Contains(t, logs.String(), "panic: boom")
}

// Two rules both match; only the first one in list order applies.
func TestApplyAutofill_FirstMatchWins(t *testing.T) {
	def := &form.Definition{Items: []*form.Item{
		{LinkID: "income", Kind: form.KindCurrency},
		{LinkID: "band", Kind: form.KindString, AutofillValues: []form.AutofillRule{
			{Value: "low", AutofillWhen: []form.Condition{{Question: "income", Operator: form.OpLessThan, Answer: 1000.0}}},
			{Value: "very low", AutofillWhen: []form.Condition{{Question: "income", Operator: form.OpLessThan, Answer: 500.0}}},
			{Value: "other"},
		}},
	}}
	e, _ := quietEngine(t)

	res := e.ApplyAutofill(input(def, map[string]any{"income": 100}), Set{})
	assert.Equal(t, "low", res.Values["band"])
	assert.Equal(t, 0, res.Rules["band"])

	res = e.ApplyAutofill(input(def, map[string]any{"income": 5000}), Set{})
	assert.Equal(t, "other", res.Values["band"])
	assert.Equal(t, 2, res.Rules["band"])
}

func TestApplyAutofill_ChainsAndSkipsDisabled(t *testing.T) {
	def := &form.Definition{Items: []*form.Item{
		{LinkID: "hours", Kind: form.KindInteger},
		{LinkID: "minutes", Kind: form.KindInteger},
		{LinkID: "total", Kind: form.KindInteger, AutofillValues: []form.AutofillRule{{ValueExpression: "hours * 60 + minutes", AutofillReadonly: true}}},
		{LinkID: "label", Kind: form.KindString, AutofillValues: []form.AutofillRule{{ValueExpression: "formatMinutes(total)"}}},
		{LinkID: "off", Kind: form.KindString, AutofillValues: []form.AutofillRule{{Value: "never"}}},
	}}
	e, _ := quietEngine(t)
	res := e.ApplyAutofill(input(def, map[string]any{"hours": 2, "minutes": 5}), Set{"off": {}})
	assert.Equal(t, 125.0, res.Values["total"])
	assert.Equal(t, "2 hours 5 minutes", res.Values["label"])
	assert.NotContains(t, res.Values, "off")
	assert.True(t, res.ReadOnly.Has("total"))
	assert.Equal(t, 2, res.Answers["hours"])
	assert.Equal(t, "2 hours 5 minutes", res.Answers["label"])
}

func TestApplyAutofill_ValueErrorStopsAtMatchedRule(t *testing.T) {
	def := &form.Definition{Items: []*form.Item{
		{LinkID: "x", Kind: form.KindInteger, AutofillValues: []form.AutofillRule{
			{ValueExpression: "1 / 0"},
			{Value: 7.0},
		}},
	}}
	e, _ := quietEngine(t)
	res := e.ApplyAutofill(input(def, nil), Set{})
	assert.NotContains(t, res.Values, "x")
}

func TestInitialValues(t *testing.T) {
	def := &form.Definition{
		Constants: map[string]any{"defaultRate": 12.5},
		Items: []*form.Item{
			{LinkID: "rate", Kind: form.KindCurrency, Initial: &form.Initial{Expression: "defaultRate * 2"}},
			{LinkID: "status", Kind: form.KindChoice, Initial: &form.Initial{Value: "NEW", Behavior: form.InitialIfEmpty}},
			{LinkID: "copy", Kind: form.KindCurrency, Initial: &form.Initial{LinkID: "rate", Behavior: form.InitialIfEmpty}},
		},
	}
	e, _ := quietEngine(t)
	in := input(def, map[string]any{"status": "OPEN", "rate": 3})

	assert.Equal(t, map[string]any{"rate": 25.0}, e.InitialValues(in, form.InitialAlways))
	assert.Equal(t, map[string]any{"copy": 3}, e.InitialValues(in, form.InitialIfEmpty))

	in.Answers = nil
	assert.Equal(t, map[string]any{"status": "NEW", "copy": nil}, e.InitialValues(in, form.InitialIfEmpty))
}

func TestBoundsAndValidate(t *testing.T) {
	def := &form.Definition{Items: []*form.Item{
		{LinkID: "size", Kind: form.KindInteger, Required: true,
			Bounds: &form.Bounds{Min: &form.BoundValue{Value: 1.0}, Max: &form.BoundValue{Value: 12.0}}},
		{LinkID: "kids", Kind: form.KindInteger,
			Bounds: &form.Bounds{Max: &form.BoundValue{Expression: "size - 1"}}},
		{LinkID: "visit", Kind: form.KindDate,
			Bounds: &form.Bounds{Min: &form.BoundValue{LinkID: "intake"}}},
		{LinkID: "intake", Kind: form.KindDate},
		{LinkID: "name", Kind: form.KindString, Required: true},
	}}
	e, _ := quietEngine(t)
	in := input(def, map[string]any{"size": 3, "kids": 4, "intake": "2024-05-01", "visit": "2024-04-30"})

	b := e.Bounds(in)
	assert.Equal(t, ResolvedBounds{Min: 1.0, Max: 12.0}, b["size"])
	assert.Equal(t, ResolvedBounds{Max: 2.0}, b["kids"])
	assert.Equal(t, ResolvedBounds{Min: "2024-05-01"}, b["visit"])

	v := e.Validate(in, Set{})
	require.Len(t, v, 3)
	assert.Equal(t, Violation{LinkID: "kids", Code: CodeAboveMax, Message: "kids must be at most 2"}, v[0])
	assert.Equal(t, CodeBelowMin, v[1].Code)
	assert.Equal(t, "visit", v[1].LinkID)
	assert.Equal(t, Violation{LinkID: "name", Code: CodeRequired, Message: "name is required"}, v[2])

	assert.Len(t, e.Validate(in, Set{"kids": {}, "visit": {}, "name": {}}), 0)
}

func TestWarnUndefined(t *testing.T) {
	def := &form.Definition{Items: []*form.Item{
		{LinkID: "hours", Kind: form.KindInteger},
		{LinkID: "label", Kind: form.KindString, AutofillValues: []form.AutofillRule{{ValueExpression: "formatMinutes(hour * 60 + hours)"}}},
	}}
	e, logs := quietEngine(t, WithWarnUndefined(true))
	res := e.ApplyAutofill(input(def, nil), Set{})
	assert.Equal(t, "0 minutes", res.Values["label"])
	assert.Contains(t, logs.String(), "undefined hour")
	assert.NotContains(t, logs.String(), "undefined hours")

	e, logs = quietEngine(t)
	e.ApplyAutofill(input(def, nil), Set{})
	assert.Empty(t, logs.String())
}

func TestCompare(t *testing.T) {
	cases := []struct {
		op          form.Operator
		left, right any
		want        bool
	}{
		{form.OpEqual, 3, "3", true},
		{form.OpEqual, "a", "A", false},
		{form.OpEqual, nil, "", true},
		{form.OpEqual, true, "yes", true},
		{form.OpNotEqual, 1.5, 2, true},
		{form.OpGreaterThan, "2024-02-01", "2024-01-31", true},
		{form.OpGreaterThanEqual, 2, 2.0, true},
		{form.OpLessThan, nil, 5, false},
		{form.OpLessThanEqual, "10", 9, false},
		{form.OpIncludes, []any{"A", "B"}, "B", true},
		{form.OpIncludes, "hello world", "wor", true},
		{form.OpIn, "B", []any{"A", "B"}, true},
		{form.OpIn, "C", []any{"A", "B"}, false},
	}
	for _, tc := range cases {
		got, err := compare(tc.op, tc.left, tc.right)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %v %v", tc.op, tc.left, tc.right)
	}
	_, err := compare("LIKE", 1, 1)
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	e, _ := quietEngine(t)
	ctx := expr.Context{"a": "x", "empty": ""}
	in := Input{Definition: &form.Definition{}}
	ok, err := e.match(in, "t", form.Condition{Question: "a", Operator: form.OpExists}, ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = e.match(in, "t", form.Condition{Question: "empty", Operator: form.OpExists}, ctx)
	assert.False(t, ok)
	ok, _ = e.match(in, "t", form.Condition{Question: "missing", Operator: form.OpExists, Answer: false}, ctx)
	assert.True(t, ok)
}

func TestEmpty(t *testing.T) {
	assert.True(t, Empty(nil))
	assert.True(t, Empty(""))
	assert.True(t, Empty([]any{}))
	assert.False(t, Empty(0))
	assert.False(t, Empty(false))
}
